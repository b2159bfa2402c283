package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newAudioCommand() *cobra.Command {
	audioCommand := &cobra.Command{
		Use:   "audio",
		Short: "Pronunciation audio for flashcards",
	}

	audioCommand.AddCommand(newAudioFetchCommand())
	return audioCommand
}

func newAudioFetchCommand() *cobra.Command {
	var outFile string

	command := &cobra.Command{
		Use:   "fetch <card-id>",
		Short: "Download a card's pronunciation audio into the local cache",
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

			data, err := a.gateway.FetchAudio(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to fetch audio for flashcard %d: %w", id, err)
			}
			if data == nil {
				fmt.Printf("Flashcard %d has no audio.\n", id)
				return nil
			}
			if outFile == "" {
				fmt.Printf("Cached %d bytes of audio for flashcard %d\n", len(data), id)
				return nil
			}
			if err := os.WriteFile(outFile, data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", outFile, err)
			}
			fmt.Printf("Wrote %d bytes to %s\n", len(data), outFile)
			return nil
		},
	}

	command.Flags().StringVar(&outFile, "out", "", "Also write the audio to this file")
	return command
}
