package main

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/offlingo/offlingo/internal/datasync"
)

func newSyncCommand() *cobra.Command {
	syncCommand := &cobra.Command{
		Use:   "sync",
		Short: "Inspect and drive synchronization with the server",
	}

	syncCommand.AddCommand(
		newSyncNowCommand(),
		newSyncStatusCommand(),
		newSyncRetryCommand(),
		newSyncConflictsCommand(),
		newSyncWatchCommand(),
	)
	return syncCommand
}

func newSyncNowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "now",
		Short: "Pull the server snapshot and drain the offline queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if !a.monitor.Online() {
				return fmt.Errorf("server unreachable, nothing to sync against")
			}
			if err := a.engine.Init(ctx); err != nil {
				return fmt.Errorf("failed to sync: %w", err)
			}
			status, err := a.engine.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to read sync status: %w", err)
			}
			printSyncStatus(status)
			return nil
		},
	}
}

func newSyncStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show connectivity, queue depth and cache counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			status, err := a.engine.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to read sync status: %w", err)
			}
			printSyncStatus(status)
			return nil
		},
	}
}

func newSyncRetryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "retry",
		Short: "Re-queue failed operations and drain immediately",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			result, err := a.engine.RetryFailed(ctx)
			if err != nil {
				return fmt.Errorf("failed to retry failed operations: %w", err)
			}
			fmt.Printf("Synced %d, failed %d, skipped %d\n", result.Synced, result.Failed, result.Skipped)
			return nil
		},
	}
}

func newSyncConflictsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "conflicts",
		Short: "List edits the server rejected because its copy changed",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			conflicts, err := a.gateway.ListConflicts(ctx)
			if err != nil {
				return fmt.Errorf("failed to list conflicts: %w", err)
			}
			if len(conflicts) == 0 {
				fmt.Println("No sync conflicts recorded.")
				return nil
			}
			for _, conflict := range conflicts {
				fmt.Printf("%s  %s %d: %s\n",
					conflict.DetectedAt.Local().Format("2006-01-02 15:04"),
					conflict.Kind,
					conflict.EntityID,
					conflict.Reason)
			}
			return nil
		},
	}
}

func newSyncWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Keep the local cache in sync until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer cancel()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if err := a.engine.Init(ctx); err != nil {
				return fmt.Errorf("failed to run the startup sync: %w", err)
			}
			a.monitor.Start(ctx, a.config.Sync.ProbeInterval)
			if err := a.engine.Start(); err != nil {
				return fmt.Errorf("failed to start the sync scheduler: %w", err)
			}
			defer a.engine.Stop()

			fmt.Println("Watching for changes. Press Ctrl+C to stop.")
			<-ctx.Done()
			fmt.Println("Received interrupt signal, exiting...")
			return nil
		},
	}
}

func printSyncStatus(status datasync.SyncStatus) {
	if status.Online {
		color.Green("Online")
	} else {
		color.Red("Offline")
	}
	if status.LastSyncTime != nil {
		fmt.Printf("Last sync: %s\n", status.LastSyncTime.Local().Format(time.RFC1123))
	} else {
		fmt.Println("Last sync: never")
	}
	fmt.Printf("Cached: %d flashcards, %d languages, %d audio files\n",
		status.Stats.FlashcardsCount,
		status.Stats.LanguagesCount,
		status.Stats.CachedBlobs)
	fmt.Printf("Queue: %d pending\n", status.PendingOperations)
	if status.FailedOperations > 0 {
		color.Yellow("Failed operations: %d, run \"offlingo sync retry\"", status.FailedOperations)
	}
}
