// Package remote provides the HTTP client for the remote flashcard service.
package remote

import (
	"context"

	"github.com/offlingo/offlingo/internal/store"
)

//go:generate mockgen -source=interface.go -destination=../mocks/remote/mock_client.go -package=mock_remote

// Client defines the remote operations the sync engine and request gateway
// depend on. Every call is a single network attempt; retry policy belongs to
// the caller. Successful creates and updates return the full server record,
// creates with the server-assigned id.
type Client interface {
	ListLanguages(ctx context.Context) ([]store.Language, error)
	GetLanguage(ctx context.Context, id int64) (*store.Language, error)
	CreateLanguage(ctx context.Context, lang store.Language) (*store.Language, error)
	UpdateLanguage(ctx context.Context, lang store.Language) (*store.Language, error)
	DeleteLanguage(ctx context.Context, id int64) error

	ListFlashcards(ctx context.Context, params ListFlashcardsParams) ([]store.Flashcard, error)
	GetFlashcard(ctx context.Context, id int64) (*store.Flashcard, error)
	CreateFlashcard(ctx context.Context, card store.Flashcard) (*store.Flashcard, error)
	UpdateFlashcard(ctx context.Context, card store.Flashcard) (*store.Flashcard, error)
	DeleteFlashcard(ctx context.Context, id int64) error

	// FetchAsset downloads a binary asset (typically audio). The URL may be
	// absolute or relative to the service base URL.
	FetchAsset(ctx context.Context, url string) ([]byte, error)

	// Ping reports whether the service is reachable. It satisfies
	// connectivity.Probe.
	Ping(ctx context.Context) error
}

// ListFlashcardsParams scopes a remote flashcard listing. Zero values mean
// "no constraint".
type ListFlashcardsParams struct {
	LanguageID int64
	Search     string
}
