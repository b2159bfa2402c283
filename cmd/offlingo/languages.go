package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/offlingo/offlingo/internal/gateway"
	"github.com/offlingo/offlingo/internal/store"
)

func newLanguagesCommand() *cobra.Command {
	languagesCommand := &cobra.Command{
		Use:   "languages",
		Short: "Manage the languages cards belong to",
	}

	languagesCommand.AddCommand(
		newLanguagesListCommand(),
		newLanguagesAddCommand(),
		newLanguagesEditCommand(),
		newLanguagesDeleteCommand(),
	)
	return languagesCommand
}

func newLanguagesListCommand() *cobra.Command {
	var fresh bool

	command := &cobra.Command{
		Use:   "list",
		Short: "List cached languages",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			langs, err := a.gateway.ListLanguages(ctx, gateway.ReadOptions{ForceFresh: fresh})
			if err != nil {
				return fmt.Errorf("failed to list languages: %w", err)
			}
			if len(langs) == 0 {
				fmt.Println("No languages found.")
				return nil
			}

			bold := color.New(color.Bold)
			for _, lang := range langs {
				_, _ = bold.Printf("%6d  %-6s %s", lang.ID, lang.Code, lang.Name)
				if !lang.Synced {
					_, _ = color.New(color.FgYellow).Print("  (not synced)")
				}
				fmt.Println()
			}
			return nil
		},
	}

	command.Flags().BoolVar(&fresh, "fresh", false, "Ask the server before answering")
	return command
}

func newLanguagesAddCommand() *cobra.Command {
	var name, code string

	command := &cobra.Command{
		Use:   "add",
		Short: "Create a language, queued for sync when offline",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			created, err := a.gateway.CreateLanguage(ctx, store.Language{
				Name: name,
				Code: code,
			})
			if err != nil {
				return fmt.Errorf("failed to create language: %w", err)
			}
			if created.Synced {
				color.Green("Created language %d (%s)", created.ID, created.Code)
			} else {
				color.Yellow("Created language %d (%s) locally, sync pending", created.ID, created.Code)
			}
			return nil
		},
	}

	command.Flags().StringVar(&name, "name", "", "Language name, for example French")
	command.Flags().StringVar(&code, "code", "", "Language code, for example fr")
	return command
}

func newLanguagesEditCommand() *cobra.Command {
	var name, code string

	command := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change a language's name or code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "language")
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			langs, err := a.gateway.ListLanguages(ctx, gateway.ReadOptions{})
			if err != nil {
				return fmt.Errorf("failed to list languages: %w", err)
			}
			var lang *store.Language
			for i := range langs {
				if langs[i].ID == id {
					lang = &langs[i]
					break
				}
			}
			if lang == nil {
				return fmt.Errorf("language %d not found", id)
			}

			flags := cmd.Flags()
			if flags.Changed("name") {
				lang.Name = name
			}
			if flags.Changed("code") {
				lang.Code = code
			}

			updated, err := a.gateway.UpdateLanguage(ctx, *lang)
			if err != nil {
				return fmt.Errorf("failed to update language %d: %w", id, err)
			}
			if updated.Synced {
				color.Green("Updated language %d (%s)", updated.ID, updated.Code)
			} else {
				color.Yellow("Updated language %d (%s) locally, sync pending", updated.ID, updated.Code)
			}
			return nil
		},
	}

	command.Flags().StringVar(&name, "name", "", "Language name, for example French")
	command.Flags().StringVar(&code, "code", "", "Language code, for example fr")
	return command
}

func newLanguagesDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a language and every card in it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "language")
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if err := a.gateway.DeleteLanguage(ctx, id); err != nil {
				return fmt.Errorf("failed to delete language %d: %w", id, err)
			}
			fmt.Printf("Deleted language %d and its flashcards\n", id)
			return nil
		},
	}
}
