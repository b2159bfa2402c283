package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCacheCommand() *cobra.Command {
	cacheCommand := &cobra.Command{
		Use:   "cache",
		Short: "Local cache maintenance",
	}

	cacheCommand.AddCommand(newCacheClearCommand())
	return cacheCommand
}

func newCacheClearCommand() *cobra.Command {
	var force bool

	command := &cobra.Command{
		Use:   "clear",
		Short: "Drop every cached record, queued operation and audio file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return fmt.Errorf("clearing the cache drops queued offline edits, re-run with --force to confirm")
			}
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if err := a.gateway.ClearCache(ctx); err != nil {
				return fmt.Errorf("failed to clear the cache: %w", err)
			}
			fmt.Println("Local cache cleared.")
			return nil
		},
	}

	command.Flags().BoolVar(&force, "force", false, "Skip the confirmation check")
	return command
}
