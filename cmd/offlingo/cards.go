package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/offlingo/offlingo/internal/gateway"
	"github.com/offlingo/offlingo/internal/store"
)

func newCardsCommand() *cobra.Command {
	cardsCommand := &cobra.Command{
		Use:   "cards",
		Short: "Manage flashcards",
	}

	cardsCommand.AddCommand(
		newCardsListCommand(),
		newCardsShowCommand(),
		newCardsAddCommand(),
		newCardsEditCommand(),
		newCardsDeleteCommand(),
		newCardsReviewCommand(),
	)
	return cardsCommand
}

func newCardsListCommand() *cobra.Command {
	var languageID int64
	var search string
	var fresh bool

	command := &cobra.Command{
		Use:   "list",
		Short: "List cached flashcards",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			cards, err := a.gateway.QueryFlashcards(ctx, store.FlashcardFilter{
				LanguageID: languageID,
				Search:     search,
			}, gateway.ReadOptions{ForceFresh: fresh})
			if err != nil {
				return fmt.Errorf("failed to list flashcards: %w", err)
			}
			if len(cards) == 0 {
				fmt.Println("No flashcards found.")
				return nil
			}

			bold := color.New(color.Bold)
			for _, card := range cards {
				_, _ = bold.Printf("%6d  %s", card.ID, card.WordOrPhrase)
				if !card.Synced {
					_, _ = color.New(color.FgYellow).Print("  (not synced)")
				}
				fmt.Println()
				if card.Definition != "" {
					fmt.Printf("        %s\n", card.Definition)
				}
			}
			fmt.Printf("\n%d cards\n", len(cards))
			return nil
		},
	}

	command.Flags().Int64Var(&languageID, "language", 0, "Show only this language's cards")
	command.Flags().StringVar(&search, "search", "", "Match against word and definition")
	command.Flags().BoolVar(&fresh, "fresh", false, "Ask the server before answering")
	return command
}

func newCardsShowCommand() *cobra.Command {
	var fresh bool

	command := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one flashcard in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "flashcard")
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			card, err := a.gateway.GetFlashcard(ctx, id, gateway.ReadOptions{ForceFresh: fresh})
			if err != nil {
				return fmt.Errorf("failed to load flashcard %d: %w", id, err)
			}
			if card == nil {
				return fmt.Errorf("flashcard %d not found", id)
			}
			printCard(card)
			return nil
		},
	}

	command.Flags().BoolVar(&fresh, "fresh", false, "Ask the server before answering")
	return command
}

func newCardsAddCommand() *cobra.Command {
	var languageID int64
	var word, definition, etymology, cognates, imageURL, audioURL string
	var related []string

	command := &cobra.Command{
		Use:   "add",
		Short: "Create a flashcard, queued for sync when offline",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			created, err := a.gateway.CreateFlashcard(ctx, store.Flashcard{
				LanguageID:      languageID,
				WordOrPhrase:    word,
				Definition:      definition,
				Etymology:       etymology,
				EnglishCognates: cognates,
				RelatedWords:    store.StringList(related),
				ImageURL:        imageURL,
				AudioURL:        audioURL,
			})
			if err != nil {
				return fmt.Errorf("failed to create flashcard: %w", err)
			}
			if created.Synced {
				color.Green("Created flashcard %d", created.ID)
			} else {
				color.Yellow("Created flashcard %d locally, sync pending", created.ID)
			}
			return nil
		},
	}

	command.Flags().Int64Var(&languageID, "language", 0, "Language the card belongs to")
	command.Flags().StringVar(&word, "word", "", "Word or phrase on the front of the card")
	command.Flags().StringVar(&definition, "definition", "", "Definition shown on the back")
	command.Flags().StringVar(&etymology, "etymology", "", "Etymology notes")
	command.Flags().StringVar(&cognates, "cognates", "", "Related English words")
	command.Flags().StringSliceVar(&related, "related", nil, "Related words in the target language")
	command.Flags().StringVar(&imageURL, "image-url", "", "Illustration URL")
	command.Flags().StringVar(&audioURL, "audio-url", "", "Pronunciation audio URL")
	return command
}

func newCardsEditCommand() *cobra.Command {
	var word, definition, etymology, cognates, imageURL, audioURL string
	var related []string

	command := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change a flashcard's fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "flashcard")
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			card, err := a.gateway.GetFlashcard(ctx, id, gateway.ReadOptions{})
			if err != nil {
				return fmt.Errorf("failed to load flashcard %d: %w", id, err)
			}
			if card == nil {
				return fmt.Errorf("flashcard %d not found", id)
			}

			flags := cmd.Flags()
			if flags.Changed("word") {
				card.WordOrPhrase = word
			}
			if flags.Changed("definition") {
				card.Definition = definition
			}
			if flags.Changed("etymology") {
				card.Etymology = etymology
			}
			if flags.Changed("cognates") {
				card.EnglishCognates = cognates
			}
			if flags.Changed("related") {
				card.RelatedWords = store.StringList(related)
			}
			if flags.Changed("image-url") {
				card.ImageURL = imageURL
			}
			if flags.Changed("audio-url") {
				card.AudioURL = audioURL
			}

			updated, err := a.gateway.UpdateFlashcard(ctx, *card)
			if err != nil {
				return fmt.Errorf("failed to update flashcard %d: %w", id, err)
			}
			if updated.Synced {
				color.Green("Updated flashcard %d", updated.ID)
			} else {
				color.Yellow("Updated flashcard %d locally, sync pending", updated.ID)
			}
			return nil
		},
	}

	command.Flags().StringVar(&word, "word", "", "Word or phrase on the front of the card")
	command.Flags().StringVar(&definition, "definition", "", "Definition shown on the back")
	command.Flags().StringVar(&etymology, "etymology", "", "Etymology notes")
	command.Flags().StringVar(&cognates, "cognates", "", "Related English words")
	command.Flags().StringSliceVar(&related, "related", nil, "Related words in the target language")
	command.Flags().StringVar(&imageURL, "image-url", "", "Illustration URL")
	command.Flags().StringVar(&audioURL, "audio-url", "", "Pronunciation audio URL")
	return command
}

func newCardsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a flashcard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "flashcard")
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if err := a.gateway.DeleteFlashcard(ctx, id); err != nil {
				return fmt.Errorf("failed to delete flashcard %d: %w", id, err)
			}
			fmt.Printf("Deleted flashcard %d\n", id)
			return nil
		},
	}
}

func newCardsReviewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "review <id>",
		Short: "Record one review of a flashcard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "flashcard")
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			card, err := a.gateway.ReviewFlashcard(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to record a review for flashcard %d: %w", id, err)
			}
			fmt.Printf("Recorded review %d for %q\n", card.TimesReviewed, card.WordOrPhrase)
			return nil
		},
	}
}

func printCard(card *store.Flashcard) {
	bold := color.New(color.Bold)

	_, _ = bold.Println(card.WordOrPhrase)
	if card.Definition != "" {
		fmt.Printf("  Definition: %s\n", card.Definition)
	}
	if card.Etymology != "" {
		fmt.Printf("  Etymology: %s\n", card.Etymology)
	}
	if card.EnglishCognates != "" {
		fmt.Printf("  English cognates: %s\n", card.EnglishCognates)
	}
	if len(card.RelatedWords) > 0 {
		fmt.Printf("  Related words: %s\n", strings.Join(card.RelatedWords, ", "))
	}
	if card.AudioURL != "" {
		fmt.Printf("  Audio: %s\n", card.AudioURL)
	}
	if card.ImageURL != "" {
		fmt.Printf("  Image: %s\n", card.ImageURL)
	}
	fmt.Printf("  Reviewed %d times, last updated %s\n",
		card.TimesReviewed, card.UpdatedAt.Local().Format("2006-01-02 15:04"))
	if !card.Synced {
		color.Yellow("  Not yet synced to the server.")
	}
}
