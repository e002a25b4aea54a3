package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/petitstrawberry/prism/internal/models"
)

func cliContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}

// stdoutIsTerminal gates the header row so piped output stays machine friendly.
func stdoutIsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func channelLabel(offset int) string {
	if offset == 0 {
		return "-"
	}
	return fmt.Sprintf("%d-%d", offset, offset+1)
}

func runClients(cmd *cobra.Command, args []string) error {
	ctx, cancel := cliContext()
	defer cancel()

	dir, err := apiClient().Clients(ctx)
	if err != nil {
		return err
	}

	sort.Slice(dir.Clients, func(i, j int) bool { return dir.Clients[i].PID < dir.Clients[j].PID })

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()
	if stdoutIsTerminal() {
		fmt.Fprintln(w, "PID\tCLIENT\tCHANNELS\tPROCESS\tAPP")
	}
	for _, c := range dir.Clients {
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\n",
			c.PID, c.ClientID, channelLabel(c.ChannelOffset), c.ProcessName, c.ResponsibleName)
	}
	return nil
}

func runApps(cmd *cobra.Command, args []string) error {
	ctx, cancel := cliContext()
	defer cancel()

	dir, err := apiClient().Clients(ctx)
	if err != nil {
		return err
	}

	// Group clients under their responsible application. Clients without a
	// resolved identity group under their own process name, or the pid as a
	// last resort.
	groups := make(map[string][]models.ClientEntry)
	for _, c := range dir.Clients {
		name := c.ResponsibleName
		if name == "" {
			name = c.ProcessName
		}
		if name == "" {
			name = "pid " + strconv.Itoa(int(c.PID))
		}
		groups[name] = append(groups[name], c)
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()
	for _, name := range names {
		fmt.Fprintf(w, "%s\n", name)
		for _, c := range groups[name] {
			fmt.Fprintf(w, "  pid %d\tclient %d\tchannels %s\n",
				c.PID, c.ClientID, channelLabel(c.ChannelOffset))
		}
	}
	return nil
}

func runInfo(cmd *cobra.Command, args []string) error {
	ctx, cancel := cliContext()
	defer cancel()

	info, err := apiClient().Info(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()
	fmt.Fprintf(w, "version\t%s\n", info.Version)
	fmt.Fprintf(w, "sample rate\t%g Hz\n", info.SampleRate)
	fmt.Fprintf(w, "bus channels\t%d\n", info.BusChannels)
	fmt.Fprintf(w, "ring frames\t%d\n", info.RingFrames)
	fmt.Fprintf(w, "frame size\t%d\n", info.FrameSize)
	fmt.Fprintf(w, "active clients\t%d\n", info.ActiveClients)
	if info.Mock {
		fmt.Fprintf(w, "mode\tmock\n")
	}
	return nil
}
