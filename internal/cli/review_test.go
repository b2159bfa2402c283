package cli

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offlingo/offlingo/internal/connectivity"
	"github.com/offlingo/offlingo/internal/gateway"
	"github.com/offlingo/offlingo/internal/remote"
	"github.com/offlingo/offlingo/internal/store"
)

func newSessionGateway(t *testing.T, st store.Store) *gateway.Gateway {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := remote.NewHTTPClient(remote.Config{
		BaseURL: "http://127.0.0.1:1",
		Timeout: time.Second,
	})
	monitor := connectivity.NewMonitor(nil, logger)
	return gateway.New(st, client, monitor, nil, gateway.Config{
		RetryAttempts: 1,
		RetryDelay:    time.Millisecond,
	}, logger)
}

func TestReviewSession_Session(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	tests := []struct {
		name            string
		input           string
		wantOutputs     []string
		wantErr         error
		wantReviewCount int
	}{
		{
			name:  "revealing and answering records the review",
			input: "\ny\n",
			wantOutputs: []string{
				"What does bonjour mean?",
				`bonjour means "hello"`,
				"Etymology: from bon jour",
				"Related words: salut, bonsoir",
				"Did you know it?",
			},
			wantReviewCount: 1,
		},
		{
			name:  "a wrong answer still records the review",
			input: "\nn\n",
			wantOutputs: []string{
				`bonjour means "hello"`,
			},
			wantReviewCount: 1,
		},
		{
			name:            "quitting at the prompt records nothing",
			input:           "q\n",
			wantErr:         errEnd,
			wantReviewCount: 0,
		},
		{
			name:            "closed stdin ends the session",
			input:           "",
			wantErr:         errEnd,
			wantReviewCount: 0,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			st := store.NewMemoryStore()
			require.NoError(t, st.PutFlashcard(ctx, store.Flashcard{
				ID:           1,
				LanguageID:   1,
				WordOrPhrase: "bonjour",
				Definition:   "hello",
				Etymology:    "from bon jour",
				RelatedWords: store.StringList{"salut", "bonsoir"},
				Synced:       true,
			}))

			var out bytes.Buffer
			session := &ReviewSession{
				gateway: newSessionGateway(t, st),
				cards: []store.Flashcard{
					{ID: 1, WordOrPhrase: "bonjour", Definition: "hello", Etymology: "from bon jour", RelatedWords: store.StringList{"salut", "bonsoir"}},
				},
				stdinReader:  bufio.NewReader(strings.NewReader(tc.input)),
				stdoutWriter: &out,
				bold:         color.New(color.Bold),
				italic:       color.New(color.Italic),
			}

			err := session.Session(ctx)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			} else {
				assert.NoError(t, err)
			}
			for _, want := range tc.wantOutputs {
				assert.Contains(t, out.String(), want)
			}

			card, err := st.GetFlashcard(ctx, 1)
			require.NoError(t, err)
			require.NotNil(t, card)
			assert.Equal(t, tc.wantReviewCount, card.TimesReviewed)
		})
	}
}

func TestReviewSession_SessionEndsWhenDeckIsEmpty(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	var out bytes.Buffer
	session := &ReviewSession{
		gateway:      newSessionGateway(t, store.NewMemoryStore()),
		stdinReader:  bufio.NewReader(strings.NewReader("")),
		stdoutWriter: &out,
		bold:         color.New(color.Bold),
		italic:       color.New(color.Italic),
	}

	err := session.Session(context.Background())
	assert.ErrorIs(t, err, errEnd)
	assert.Contains(t, out.String(), "No more cards to review!")
}

func TestReviewSession_RunDrainsTheDeck(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	ctx := context.Background()
	st := store.NewMemoryStore()
	require.NoError(t, st.PutFlashcard(ctx, store.Flashcard{
		ID: 1, LanguageID: 1, WordOrPhrase: "merci", Definition: "thank you", Synced: true,
	}))
	require.NoError(t, st.PutFlashcard(ctx, store.Flashcard{
		ID: 2, LanguageID: 1, WordOrPhrase: "oui", Definition: "yes", Synced: true,
	}))

	gw := newSessionGateway(t, st)
	var out bytes.Buffer
	session := &ReviewSession{
		gateway: gw,
		cards: []store.Flashcard{
			{ID: 1, WordOrPhrase: "merci", Definition: "thank you"},
			{ID: 2, WordOrPhrase: "oui", Definition: "yes"},
		},
		stdinReader:  bufio.NewReader(strings.NewReader("\ny\n\nn\n")),
		stdoutWriter: &out,
		bold:         color.New(color.Bold),
		italic:       color.New(color.Italic),
	}

	require.NoError(t, session.Run(ctx))
	gw.Wait()

	assert.Equal(t, 0, session.CardCount())
	assert.Contains(t, out.String(), "No more cards to review!")

	// Reviews were taken while offline, so both bumps sit in the queue.
	pending, err := st.PendingEntries(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestNewReviewSession_LoadsCardsFromTheCache(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	require.NoError(t, st.PutFlashcard(ctx, store.Flashcard{
		ID: 1, LanguageID: 1, WordOrPhrase: "hola", Definition: "hello", Synced: true,
	}))
	require.NoError(t, st.PutFlashcard(ctx, store.Flashcard{
		ID: 2, LanguageID: 2, WordOrPhrase: "ciao", Definition: "hello", Synced: true,
	}))

	gw := newSessionGateway(t, st)
	session, err := NewReviewSession(ctx, gw, store.FlashcardFilter{LanguageID: 2})
	require.NoError(t, err)
	gw.Wait()

	assert.Equal(t, 1, session.CardCount())
}
