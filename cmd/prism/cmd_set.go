package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/petitstrawberry/prism/internal/models"
)

// parsePairOffset accepts either an even channel offset ("4") or an explicit
// adjacent pair ("4-5") and returns the offset.
func parsePairOffset(s string) (int, error) {
	if l, r, ok := strings.Cut(s, "-"); ok {
		left, err := strconv.Atoi(l)
		if err != nil {
			return 0, fmt.Errorf("invalid channel pair %q", s)
		}
		right, err := strconv.Atoi(r)
		if err != nil {
			return 0, fmt.Errorf("invalid channel pair %q", s)
		}
		if right != left+1 {
			return 0, fmt.Errorf("channel pair %q must be adjacent (e.g. 4-5)", s)
		}
		return left, nil
	}
	offset, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid channel offset %q", s)
	}
	return offset, nil
}

func parsePID(s string) (int32, error) {
	if s == "all" {
		return models.BroadcastPID, nil
	}
	pid, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid pid %q", s)
	}
	return int32(pid), nil
}

func runSet(cmd *cobra.Command, args []string) error {
	pid, err := parsePID(args[0])
	if err != nil {
		return err
	}
	offset, err := parsePairOffset(args[1])
	if err != nil {
		return err
	}

	ctx, cancel := cliContext()
	defer cancel()

	res, err := apiClient().SetRouting(ctx, models.RoutingUpdate{PID: pid, ChannelOffset: offset})
	if err != nil {
		return err
	}
	fmt.Printf("routed %d client(s) to channels %s\n", res.Updated, channelLabel(offset))
	return nil
}

func runSetApp(cmd *cobra.Command, args []string) error {
	name := args[0]
	offset, err := parsePairOffset(args[1])
	if err != nil {
		return err
	}

	ctx, cancel := cliContext()
	defer cancel()
	client := apiClient()

	dir, err := client.Clients(ctx)
	if err != nil {
		return err
	}

	// One routing update per matching pid; a pid can own several clients, so
	// dedupe first.
	pids := make(map[int32]bool)
	for _, c := range dir.Clients {
		if strings.EqualFold(c.ResponsibleName, name) || strings.EqualFold(c.ProcessName, name) {
			pids[c.PID] = true
		}
	}
	if len(pids) == 0 {
		return fmt.Errorf("no attached clients match application %q", name)
	}

	total := 0
	for pid := range pids {
		res, err := client.SetRouting(ctx, models.RoutingUpdate{PID: pid, ChannelOffset: offset})
		if err != nil {
			return err
		}
		total += res.Updated
	}
	fmt.Printf("routed %d client(s) of %s to channels %s\n", total, name, channelLabel(offset))
	return nil
}
