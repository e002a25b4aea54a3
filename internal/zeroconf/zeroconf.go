// Package zeroconf advertises the prismd control API as an mDNS/DNS-SD
// service so the prism CLI can find a daemon on the LAN without
// configuration.
package zeroconf

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/grandcat/zeroconf"
)

// Service manages mDNS service registration.
type Service struct {
	name   string // instance name, e.g. "prism"
	port   int
	txt    []string
	server *zeroconf.Server
}

// New creates a zeroconf Service advertising _prism._tcp on the given port.
// txt carries daemon properties (version, bus geometry) for browsers.
func New(name string, port int, txt []string) *Service {
	return &Service{
		name: name,
		port: port,
		txt:  txt,
	}
}

// Start registers the mDNS service and blocks until ctx is cancelled, at
// which point it shuts down the server cleanly.
func (s *Service) Start(ctx context.Context) error {
	server, err := zeroconf.Register(
		s.name,        // instance name
		"_prism._tcp", // service type
		"local.",      // domain
		s.port,        // port
		s.txt,         // TXT records
		nil,           // ifaces, nil means all interfaces
	)
	if err != nil {
		return fmt.Errorf("zeroconf register: %w", err)
	}
	s.server = server
	slog.Info("zeroconf: registered mDNS service",
		"name", s.name,
		"port", s.port,
		"txt", s.txt,
	)

	<-ctx.Done()

	server.Shutdown()
	slog.Info("zeroconf: mDNS service unregistered")
	return nil
}
