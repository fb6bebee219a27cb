package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pauubach/narrassist-sub006/internal/backend"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow server invalidation events and keep the entity snapshot fresh",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		store, err := openCache()
		if err != nil {
			return err
		}
		defer store.Close()

		sub := backend.NewSubscriber(cfg.Backend.EventsURL, cfg.Backend.ProjectID, func(event backend.InvalidationEvent) {
			fmt.Printf("event: %s entities=%v\n", event.Type, event.EntityIDs)
			if err := store.Invalidate(context.Background(), event.ProjectID, event.EntityIDs); err != nil {
				log.Printf("warning: failed to invalidate snapshot: %v", err)
			}
		})

		log.Printf("watching %s for project %d events", cfg.Backend.EventsURL, cfg.Backend.ProjectID)
		if err := sub.Run(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}
