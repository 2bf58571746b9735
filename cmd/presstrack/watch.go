package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	api "github.com/ateliercolor/presstrack/api/v1alpha1"
	"github.com/ateliercolor/presstrack/internal/client"
)

var watchScopes []string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the realtime job event stream",
	RunE: func(cmd *cobra.Command, args []string) error {
		streamURL := strings.Replace(serverURL, "http", "ws", 1) + "/api/v1alpha1/events/stream"

		reconciler := client.NewReconciler()
		stream := client.NewStream(streamURL, token, reconciler)
		for _, scope := range watchScopes {
			stream.Subscribe(scope)
		}
		stream.OnFrame(func(frame api.StreamFrame) {
			if frame.Type != api.FrameEvent || frame.Event == nil {
				return
			}
			ev := frame.Event
			if ev.FromStatus != "" {
				fmt.Printf("%s  %s  %s -> %s  (%s)\n", ev.At.Format("15:04:05"), ev.JobID, ev.FromStatus, ev.ToStatus, ev.ActorRole)
				return
			}
			fmt.Printf("%s  %s  created as %s  (%s)\n", ev.At.Format("15:04:05"), ev.JobID, ev.ToStatus, ev.ActorRole)
		})

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		fmt.Printf("watching %s\n", strings.Join(watchScopes, ", "))
		return stream.Run(ctx)
	},
}

func init() {
	watchCmd.Flags().StringSliceVar(&watchScopes, "scope", []string{"jobs:*"}, "Scopes to subscribe to (jobs:* or jobs:<id>)")
}
