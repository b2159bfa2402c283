package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/offlingo/offlingo/internal/gateway"
	"github.com/offlingo/offlingo/internal/store"
)

type Format string

func (f *Format) Set(val string) error {
	for _, format := range allFormats {
		if val == string(format) {
			*f = format
			return nil
		}
	}
	return fmt.Errorf("invalid format: %s", val)
}

func (f Format) String() string {
	return string(f)
}

func (f *Format) Type() string {
	return "Format"
}

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

var (
	_          pflag.Value = (*Format)(nil)
	allFormats             = []Format{FormatYAML, FormatJSON}
)

func newExportCommand() *cobra.Command {
	var outFile string
	var languageID int64
	format := FormatYAML

	command := &cobra.Command{
		Use:   "export",
		Short: "Export cached languages and flashcards",
		RunE: func(cmd *cobra.Command, args []string) error {
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
			cards, err := a.gateway.QueryFlashcards(ctx, store.FlashcardFilter{
				LanguageID: languageID,
			}, gateway.ReadOptions{})
			if err != nil {
				return fmt.Errorf("failed to list flashcards: %w", err)
			}

			dump := struct {
				ExportedAt time.Time         `json:"exported_at" yaml:"exported_at"`
				Languages  []store.Language  `json:"languages" yaml:"languages"`
				Flashcards []store.Flashcard `json:"flashcards" yaml:"flashcards"`
			}{
				ExportedAt: time.Now().UTC(),
				Languages:  langs,
				Flashcards: cards,
			}
			var data []byte
			switch format {
			case FormatJSON:
				data, err = json.MarshalIndent(dump, "", "  ")
				if err != nil {
					return fmt.Errorf("json.MarshalIndent() > %w", err)
				}
				data = append(data, '\n')
			case FormatYAML:
				fallthrough
			default:
				data, err = yaml.Marshal(dump)
				if err != nil {
					return fmt.Errorf("yaml.Marshal() > %w", err)
				}
			}

			if outFile == "" {
				fmt.Print(string(data))
				return nil
			}
			if err := os.WriteFile(outFile, data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", outFile, err)
			}
			fmt.Printf("Exported %d languages and %d flashcards to %s\n", len(langs), len(cards), outFile)
			return nil
		},
	}

	command.Flags().StringVar(&outFile, "out", "", "Write the export to this file instead of stdout")
	command.Flags().Int64Var(&languageID, "language", 0, "Export only this language's cards")
	command.Flags().Var(&format, "format", fmt.Sprintf("Output format. Possible values are %v", allFormats))
	return command
}
