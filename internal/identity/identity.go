// Package identity resolves process ids to human-readable owners.
//
// Clients attach to the bus as bare pids; for the directory to be useful an
// operator needs "Spotify", not "84213". Helpers and sandboxed workers are
// collapsed onto their owning process by walking the /proc parent chain.
package identity

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/petitstrawberry/prism/internal/models"
)

// Identity describes one resolved process.
type Identity struct {
	PID            int32
	Name           string
	ExecutablePath string
}

// Resolver looks up process information from the proc filesystem.
// The zero value is not usable; use NewResolver.
type Resolver struct {
	root string
}

// NewResolver returns a Resolver backed by /proc.
func NewResolver() *Resolver { return &Resolver{root: "/proc"} }

// NewResolverAt returns a Resolver backed by an alternate proc root.
// This variant is exported for testing.
func NewResolverAt(root string) *Resolver { return &Resolver{root: root} }

// Lookup resolves a pid to its name and executable path. Returns false when
// the process does not exist or /proc is unreadable.
func (r *Resolver) Lookup(pid int32) (Identity, bool) {
	if pid <= 0 {
		return Identity{}, false
	}

	id := Identity{PID: pid}

	if data, err := os.ReadFile(r.procPath(pid, "comm")); err == nil {
		id.Name = strings.TrimSpace(string(data))
	}
	if path, err := os.Readlink(r.procPath(pid, "exe")); err == nil {
		id.ExecutablePath = path
		if id.Name == "" {
			id.Name = filepath.Base(path)
		}
	}

	if id.Name == "" && id.ExecutablePath == "" {
		return Identity{}, false
	}
	return id, true
}

// ParentPID returns the parent of pid, or 0 if it cannot be determined.
func (r *Resolver) ParentPID(pid int32) int32 {
	data, err := os.ReadFile(r.procPath(pid, "stat"))
	if err != nil {
		return 0
	}

	// /proc/<pid>/stat: "pid (comm) state ppid ...". comm may contain
	// spaces and parentheses, so parse from the last ')'.
	s := string(data)
	close := strings.LastIndexByte(s, ')')
	if close < 0 || close+2 >= len(s) {
		return 0
	}
	fields := strings.Fields(s[close+2:])
	if len(fields) < 2 {
		return 0
	}
	ppid, err := strconv.ParseInt(fields[1], 10, 32)
	if err != nil {
		return 0
	}
	return int32(ppid)
}

// ResponsiblePID walks the parent chain to find the process responsible for
// pid: the topmost ancestor that is not init. Loops in the chain stop the
// walk; the best candidate seen so far is returned.
func (r *Resolver) ResponsiblePID(pid int32) int32 {
	if pid <= 0 {
		return 0
	}

	current := pid
	lastGood := pid
	visited := map[int32]bool{pid: true}

	for {
		parent := r.ParentPID(current)
		if parent <= 1 || visited[parent] {
			return lastGood
		}
		visited[parent] = true
		lastGood = parent
		current = parent
	}
}

// Enrich fills the identity fields of directory entries in place. Entries
// whose pid cannot be resolved are left as-is.
func (r *Resolver) Enrich(clients []models.ClientEntry) {
	for i := range clients {
		c := &clients[i]
		if id, ok := r.Lookup(c.PID); ok {
			c.ProcessName = id.Name
		}
		if rp := r.ResponsiblePID(c.PID); rp > 0 && rp != c.PID {
			c.ResponsiblePID = rp
			if id, ok := r.Lookup(rp); ok {
				c.ResponsibleName = id.Name
			}
		}
	}
}

func (r *Resolver) procPath(pid int32, file string) string {
	return filepath.Join(r.root, fmt.Sprint(pid), file)
}
