package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/offlingo/offlingo/internal/logging"
)

var (
	configFile  string
	debugMode   bool
	offlineMode bool
)

func main() {
	rootCommand := cobra.Command{
		Use:           "offlingo",
		Short:         "Offline-first flashcards for language learning",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logging.Setup(logging.Options{Debug: debugMode})
			return nil
		},
	}
	rootCommand.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	rootCommand.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug mode")
	rootCommand.PersistentFlags().BoolVar(&offlineMode, "offline", false, "Work from the local cache without contacting the server")

	rootCommand.AddCommand(
		newCardsCommand(),
		newLanguagesCommand(),
		newReviewCommand(),
		newSyncCommand(),
		newAudioCommand(),
		newExportCommand(),
		newCacheCommand(),
	)
	if err := rootCommand.Execute(); err != nil {
		if _, fprintfErr := fmt.Fprintf(os.Stderr, "failed to execute a command: %+v\n", err); fprintfErr != nil {
			panic(fmt.Errorf("failed to output an error: %w. Reason: %w", err, fprintfErr))
		}
		os.Exit(1)
	}
	os.Exit(0)
}
