package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/spf13/cobra"
)

func runMonitor(cmd *cobra.Command, args []string) error {
	offset := 0
	if len(args) == 1 {
		var err error
		offset, err = parsePairOffset(args[0])
		if err != nil {
			return err
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	stream, format, err := apiClient().Capture(ctx, offset)
	if err != nil {
		return err
	}
	defer stream.Close()

	op := &oto.NewContextOptions{
		SampleRate:   int(format.SampleRate),
		ChannelCount: format.Channels,
		Format:       oto.FormatFloat32LE,
	}
	otoCtx, ready, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("audio output: %w", err)
	}
	<-ready

	player := otoCtx.NewPlayer(stream)
	defer player.Close()
	player.Play()

	if offset == 0 {
		fmt.Fprintln(os.Stderr, "monitoring system mix (Ctrl-C to stop)")
	} else {
		fmt.Fprintf(os.Stderr, "monitoring channels %s (Ctrl-C to stop)\n", channelLabel(offset))
	}

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := player.Err(); err != nil {
				return fmt.Errorf("playback: %w", err)
			}
			if !player.IsPlaying() {
				// The daemon closed the stream.
				return nil
			}
		}
	}
}
