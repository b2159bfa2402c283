package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offlingo/offlingo/internal/connectivity"
	"github.com/offlingo/offlingo/internal/remote"
	"github.com/offlingo/offlingo/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// deadServerURL points at a port nothing listens on. Offline tests use it
// to prove no request is ever attempted.
const deadServerURL = "http://127.0.0.1:1"

func newTestGateway(t *testing.T, st store.Store, baseURL string, online bool) *Gateway {
	t.Helper()
	client := remote.NewHTTPClient(remote.Config{BaseURL: baseURL, Timeout: 2 * time.Second})
	monitor := connectivity.NewMonitor(nil, testLogger())
	if online {
		monitor.SetOnline(true)
	}
	cfg := Config{RetryAttempts: 3, RetryDelay: time.Millisecond, RefreshTimeout: 2 * time.Second}
	return New(st, client, monitor, nil, cfg, testLogger())
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestGateway_CreateFlashcard_Online(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/flashcards", r.URL.Path)

		var card store.Flashcard
		require.NoError(t, json.NewDecoder(r.Body).Decode(&card))
		assert.Equal(t, "bonjour", card.WordOrPhrase)

		card.ID = 77
		card.CreatedAt = time.Now().UTC()
		card.UpdatedAt = card.CreatedAt
		writeJSON(t, w, card)
	}))
	defer server.Close()

	st := store.NewMemoryStore()
	gw := newTestGateway(t, st, server.URL, true)

	created, err := gw.CreateFlashcard(context.Background(), store.Flashcard{
		LanguageID: 1, WordOrPhrase: "bonjour", Definition: "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(77), created.ID)
	assert.True(t, created.Synced)

	cached, err := st.GetFlashcard(context.Background(), 77)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.True(t, cached.Synced)

	pending, err := st.PendingEntries(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestGateway_CreateFlashcard_RetriesExactlyThreeTimes(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "try later", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	st := store.NewMemoryStore()
	gw := newTestGateway(t, st, server.URL, true)

	created, err := gw.CreateFlashcard(context.Background(), store.Flashcard{
		LanguageID: 1, WordOrPhrase: "bonjour",
	})
	require.NoError(t, err)
	assert.Equal(t, int32(3), hits.Load())

	// Retries exhausted, so the write degraded to a placeholder plus a
	// queued operation.
	assert.Equal(t, int64(-1), created.ID)
	assert.False(t, created.Synced)

	pending, err := st.PendingEntries(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, store.OperationCreate, pending[0].Operation)
	assert.Equal(t, store.KindFlashcard, pending[0].Kind)
	assert.Equal(t, int64(-1), pending[0].EntityID)
}

func TestGateway_CreateFlashcard_RejectionDoesNotRetryOrQueue(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "word_or_phrase already exists", http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	st := store.NewMemoryStore()
	gw := newTestGateway(t, st, server.URL, true)

	_, err := gw.CreateFlashcard(context.Background(), store.Flashcard{
		LanguageID: 1, WordOrPhrase: "bonjour",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
	assert.Equal(t, int32(1), hits.Load())

	pending, err := st.PendingEntries(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)

	stats, err := st.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.FlashcardsCount)
}

func TestGateway_CreateFlashcard_ValidationFailsFast(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	st := store.NewMemoryStore()
	gw := newTestGateway(t, st, server.URL, true)

	_, err := gw.CreateFlashcard(context.Background(), store.Flashcard{LanguageID: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required")
	assert.Zero(t, hits.Load())

	pending, err := st.PendingEntries(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestGateway_CreateFlashcard_OfflineQueuesAndServes(t *testing.T) {
	st := store.NewMemoryStore()
	gw := newTestGateway(t, st, deadServerURL, false)

	created, err := gw.CreateFlashcard(context.Background(), store.Flashcard{
		LanguageID: 1, WordOrPhrase: "bonjour", Definition: "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(-1), created.ID)

	// The optimistic write is immediately readable through the gateway.
	card, err := gw.GetFlashcard(context.Background(), created.ID, ReadOptions{})
	require.NoError(t, err)
	require.NotNil(t, card)
	assert.Equal(t, "bonjour", card.WordOrPhrase)
	assert.False(t, card.Synced)

	pending, err := st.PendingEntries(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, store.OperationCreate, pending[0].Operation)
}

func TestGateway_GetFlashcard_ServesCacheThenRefreshes(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/flashcards/10", r.URL.Path)
		writeJSON(t, w, store.Flashcard{
			ID: 10, LanguageID: 1, WordOrPhrase: "bonjour", Definition: "updated on server",
			CreatedAt: now.Add(-time.Hour), UpdatedAt: now,
		})
	}))
	defer server.Close()

	st := store.NewMemoryStore()
	require.NoError(t, st.PutFlashcard(context.Background(), store.Flashcard{
		ID: 10, LanguageID: 1, WordOrPhrase: "bonjour", Definition: "stale",
		CreatedAt: now.Add(-time.Hour), UpdatedAt: now.Add(-time.Hour), Synced: true,
	}))
	gw := newTestGateway(t, st, server.URL, true)

	card, err := gw.GetFlashcard(context.Background(), 10, ReadOptions{})
	require.NoError(t, err)
	require.NotNil(t, card)
	assert.Equal(t, "stale", card.Definition)

	gw.Wait()
	assert.Equal(t, int32(1), hits.Load())

	refreshed, err := st.GetFlashcard(context.Background(), 10)
	require.NoError(t, err)
	require.NotNil(t, refreshed)
	assert.Equal(t, "updated on server", refreshed.Definition)
	assert.True(t, refreshed.Synced)
}

func TestGateway_GetFlashcard_ForceFresh(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, store.Flashcard{
			ID: 10, LanguageID: 1, WordOrPhrase: "bonjour", Definition: "fresh",
			CreatedAt: now.Add(-time.Hour), UpdatedAt: now,
		})
	}))
	defer server.Close()

	st := store.NewMemoryStore()
	require.NoError(t, st.PutFlashcard(context.Background(), store.Flashcard{
		ID: 10, LanguageID: 1, WordOrPhrase: "bonjour", Definition: "stale",
		CreatedAt: now.Add(-time.Hour), UpdatedAt: now.Add(-time.Hour), Synced: true,
	}))
	gw := newTestGateway(t, st, server.URL, true)

	card, err := gw.GetFlashcard(context.Background(), 10, ReadOptions{ForceFresh: true})
	require.NoError(t, err)
	require.NotNil(t, card)
	assert.Equal(t, "fresh", card.Definition)
}

func TestGateway_GetFlashcard_ForceFreshDropsRemotelyDeleted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such flashcard", http.StatusNotFound)
	}))
	defer server.Close()

	ctx := context.Background()
	st := store.NewMemoryStore()
	require.NoError(t, st.PutFlashcard(ctx, store.Flashcard{
		ID: 11, LanguageID: 1, WordOrPhrase: "adios", Synced: true,
		AudioURL: "https://cdn.example.com/adios.mp3",
	}))
	require.NoError(t, st.PutBlob(ctx, store.CachedBlob{
		URL: "https://cdn.example.com/adios.mp3", Payload: []byte("audio"), FlashcardID: 11,
	}))
	gw := newTestGateway(t, st, server.URL, true)

	card, err := gw.GetFlashcard(ctx, 11, ReadOptions{ForceFresh: true})
	require.NoError(t, err)
	assert.Nil(t, card)

	cached, err := st.GetFlashcard(ctx, 11)
	require.NoError(t, err)
	assert.Nil(t, cached)

	blob, err := st.GetBlob(ctx, "https://cdn.example.com/adios.mp3")
	require.NoError(t, err)
	assert.Nil(t, blob)
}

func TestGateway_GetFlashcard_ForceFreshFallsBackToCache(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down for maintenance", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	st := store.NewMemoryStore()
	require.NoError(t, st.PutFlashcard(context.Background(), store.Flashcard{
		ID: 10, LanguageID: 1, WordOrPhrase: "bonjour", Definition: "cached", Synced: true,
	}))
	gw := newTestGateway(t, st, server.URL, true)

	card, err := gw.GetFlashcard(context.Background(), 10, ReadOptions{ForceFresh: true})
	require.NoError(t, err)
	require.NotNil(t, card)
	assert.Equal(t, "cached", card.Definition)
}

func TestGateway_QueryFlashcards_Offline(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	require.NoError(t, st.PutFlashcard(ctx, store.Flashcard{ID: 1, LanguageID: 1, WordOrPhrase: "bonjour", Synced: true}))
	require.NoError(t, st.PutFlashcard(ctx, store.Flashcard{ID: 2, LanguageID: 2, WordOrPhrase: "hallo", Synced: true}))
	gw := newTestGateway(t, st, deadServerURL, false)

	cards, err := gw.QueryFlashcards(ctx, store.FlashcardFilter{LanguageID: 1}, ReadOptions{})
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "bonjour", cards[0].WordOrPhrase)
	gw.Wait()
}

func TestGateway_UpdateFlashcard_ConflictSurfaces(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("unexpected %s %s, conflicts must stop the write", r.Method, r.URL.Path)
			http.Error(w, "unexpected", http.StatusInternalServerError)
			return
		}
		writeJSON(t, w, store.Flashcard{
			ID: 7, LanguageID: 1, WordOrPhrase: "merci", Definition: "edited elsewhere",
			UpdatedAt: now.Add(time.Hour),
		})
	}))
	defer server.Close()

	ctx := context.Background()
	st := store.NewMemoryStore()
	require.NoError(t, st.PutFlashcard(ctx, store.Flashcard{
		ID: 7, LanguageID: 1, WordOrPhrase: "merci", Definition: "original",
		UpdatedAt: now, Synced: true,
	}))
	gw := newTestGateway(t, st, server.URL, true)

	_, err := gw.UpdateFlashcard(ctx, store.Flashcard{
		ID: 7, LanguageID: 1, WordOrPhrase: "merci", Definition: "my edit",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrConflict)

	// The local copy is untouched and the divergence is on record.
	card, err := st.GetFlashcard(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, card)
	assert.Equal(t, "original", card.Definition)

	conflicts, err := st.ListConflicts(ctx)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "flashcard changed remotely", conflicts[0].Reason)

	pending, err := st.PendingEntries(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestGateway_ReviewFlashcard_OfflineQueuesWithBaseVersion(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	ctx := context.Background()
	st := store.NewMemoryStore()
	require.NoError(t, st.PutFlashcard(ctx, store.Flashcard{
		ID: 5, LanguageID: 1, WordOrPhrase: "gracias", TimesReviewed: 2,
		UpdatedAt: now, Synced: true,
	}))
	gw := newTestGateway(t, st, deadServerURL, false)

	reviewed, err := gw.ReviewFlashcard(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 3, reviewed.TimesReviewed)
	assert.False(t, reviewed.Synced)

	pending, err := st.PendingEntries(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, store.OperationUpdate, pending[0].Operation)
	assert.True(t, pending[0].BaseVersion.Equal(now))
}

func TestGateway_DeleteFlashcard_PlaceholderCancelsQueuedCreate(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	gw := newTestGateway(t, st, deadServerURL, false)

	created, err := gw.CreateFlashcard(ctx, store.Flashcard{LanguageID: 1, WordOrPhrase: "typo"})
	require.NoError(t, err)
	require.Negative(t, created.ID)

	require.NoError(t, gw.DeleteFlashcard(ctx, created.ID))

	card, err := st.GetFlashcard(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, card)

	// Nothing is left for the sync engine: not the create, and no delete.
	pending, err := st.PendingEntries(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestGateway_DeleteFlashcard_OfflineQueuesDelete(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	ctx := context.Background()
	st := store.NewMemoryStore()
	require.NoError(t, st.PutFlashcard(ctx, store.Flashcard{
		ID: 9, LanguageID: 1, WordOrPhrase: "au revoir", UpdatedAt: now, Synced: true,
	}))
	gw := newTestGateway(t, st, deadServerURL, false)

	require.NoError(t, gw.DeleteFlashcard(ctx, 9))

	card, err := st.GetFlashcard(ctx, 9)
	require.NoError(t, err)
	assert.Nil(t, card)

	pending, err := st.PendingEntries(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, store.OperationDelete, pending[0].Operation)
	assert.Equal(t, int64(9), pending[0].EntityID)
	assert.True(t, pending[0].BaseVersion.Equal(now))
}

func TestGateway_DeleteLanguage_RemovesItsFlashcards(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	require.NoError(t, st.PutLanguage(ctx, store.Language{ID: 1, Name: "French", Code: "fr", Synced: true}))
	require.NoError(t, st.PutFlashcard(ctx, store.Flashcard{ID: 10, LanguageID: 1, WordOrPhrase: "bonjour", Synced: true}))
	require.NoError(t, st.PutFlashcard(ctx, store.Flashcard{ID: 11, LanguageID: 1, WordOrPhrase: "merci", Synced: true}))
	gw := newTestGateway(t, st, deadServerURL, false)

	require.NoError(t, gw.DeleteLanguage(ctx, 1))

	stats, err := st.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.FlashcardsCount)
	assert.Zero(t, stats.LanguagesCount)

	pending, err := st.PendingEntries(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, store.OperationDelete, pending[0].Operation)
	assert.Equal(t, store.KindLanguage, pending[0].Kind)
}

func TestGateway_FetchAudio(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/assets/bonjour.mp3", r.URL.Path)
		w.Header().Set("Content-Type", "audio/mpeg")
		_, err := w.Write([]byte("mp3 bytes"))
		assert.NoError(t, err)
	}))
	defer server.Close()

	ctx := context.Background()
	st := store.NewMemoryStore()
	require.NoError(t, st.PutFlashcard(ctx, store.Flashcard{
		ID: 10, LanguageID: 1, WordOrPhrase: "bonjour",
		AudioURL: server.URL + "/assets/bonjour.mp3", Synced: true,
	}))

	client := remote.NewHTTPClient(remote.Config{BaseURL: server.URL, Timeout: 2 * time.Second})
	monitor := connectivity.NewMonitor(nil, testLogger())
	monitor.SetOnline(true)
	gw := New(st, client, monitor, nil, Config{RetryDelay: time.Millisecond}, testLogger())

	// First play downloads and caches.
	payload, err := gw.FetchAudio(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3 bytes"), payload)
	assert.Equal(t, int32(1), hits.Load())

	// Later plays are served from the cache, even offline.
	monitor.SetOnline(false)
	payload, err = gw.FetchAudio(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3 bytes"), payload)
	assert.Equal(t, int32(1), hits.Load())
}

func TestGateway_FetchAudio_OfflineMiss(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	require.NoError(t, st.PutFlashcard(ctx, store.Flashcard{
		ID: 10, LanguageID: 1, WordOrPhrase: "bonjour",
		AudioURL: "https://cdn.example.com/bonjour.mp3", Synced: true,
	}))
	gw := newTestGateway(t, st, deadServerURL, false)

	_, err := gw.FetchAudio(ctx, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOffline)
}

func TestGateway_ClearCache(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	require.NoError(t, st.PutLanguage(ctx, store.Language{ID: 1, Name: "French", Code: "fr"}))
	require.NoError(t, st.PutFlashcard(ctx, store.Flashcard{ID: 1, LanguageID: 1, WordOrPhrase: "bonjour"}))
	require.NoError(t, st.PutBlob(ctx, store.CachedBlob{URL: "u", Payload: []byte("b"), FlashcardID: 1}))
	gw := newTestGateway(t, st, deadServerURL, false)

	require.NoError(t, gw.ClearCache(ctx))

	stats, err := st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.Stats{}, stats)
}
