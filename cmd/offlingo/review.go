package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/offlingo/offlingo/internal/cli"
	"github.com/offlingo/offlingo/internal/store"
)

func newReviewCommand() *cobra.Command {
	var languageID int64

	command := &cobra.Command{
		Use:   "review",
		Short: "Interactive review session over cached flashcards",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			session, err := cli.NewReviewSession(ctx, a.gateway, store.FlashcardFilter{
				LanguageID: languageID,
			})
			if err != nil {
				return err
			}
			if session.CardCount() == 0 {
				fmt.Println("No flashcards to review.")
				return nil
			}
			session.ShuffleCards()
			fmt.Printf("Starting review session with %d cards\n\n", session.CardCount())
			return session.Run(ctx)
		},
	}

	command.Flags().Int64Var(&languageID, "language", 0, "Review only this language's cards")
	return command
}
