package main

import (
	"github.com/spf13/cobra"

	"github.com/petitstrawberry/prism/internal/control"
)

// --- Global Command Variables ---
var (
	daemonAddr string

	rootCmd = &cobra.Command{
		Use:   "prism",
		Short: "Control the prismd multi-client audio router",
		Long: `prism inspects and controls a running prismd: list attached audio
clients, assign them to bus channel pairs, and monitor what is on the bus.`,
		SilenceUsage: true,
	}

	// --- Directory ---
	clientsCmd = &cobra.Command{
		Use:   "clients",
		Short: "List attached audio clients and their channel assignments",
		Args:  cobra.NoArgs,
		RunE:  runClients,
	}
	appsCmd = &cobra.Command{
		Use:   "apps",
		Short: "List attached clients grouped by responsible application",
		Args:  cobra.NoArgs,
		RunE:  runApps,
	}
	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Show daemon version and bus geometry",
		Args:  cobra.NoArgs,
		RunE:  runInfo,
	}

	// --- Routing ---
	setCmd = &cobra.Command{
		Use:   "set <pid|all> <offset|L-R>",
		Short: "Route a client's output to a bus channel pair",
		Long: `Route the client owned by <pid> to the channel pair starting at
<offset>. The pair can be given as the even offset ("4") or as an explicit
pair ("4-5"). Use "all" or -1 as the pid to reroute every attached client.
Channels 0-1 carry the system mix and cannot be assigned.`,
		Args: cobra.ExactArgs(2),
		RunE: runSet,
	}
	setAppCmd = &cobra.Command{
		Use:   "set-app <name> <offset|L-R>",
		Short: "Route every client of the named application to a channel pair",
		Args:  cobra.ExactArgs(2),
		RunE:  runSetApp,
	}

	// --- Monitoring ---
	monitorCmd = &cobra.Command{
		Use:   "monitor [offset]",
		Short: "Play a bus channel pair on the local audio output",
		Long: `Stream the channel pair starting at [offset] from the daemon and play
it locally. With no offset the system mix (channels 0-1) is played. Stop
with Ctrl-C.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runMonitor,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&daemonAddr, "addr", control.DefaultAddr, "prismd address (host:port)")

	rootCmd.AddCommand(clientsCmd)
	rootCmd.AddCommand(appsCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(setAppCmd)
	rootCmd.AddCommand(monitorCmd)
}

func apiClient() *control.Client {
	return control.New(daemonAddr)
}
