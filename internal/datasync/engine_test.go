package datasync

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/offlingo/offlingo/internal/connectivity"
	mock_remote "github.com/offlingo/offlingo/internal/mocks/remote"
	"github.com/offlingo/offlingo/internal/remote"
	"github.com/offlingo/offlingo/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustPayload(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func newTestEngine(t *testing.T, st store.Store, online bool) (*Engine, *mock_remote.MockClient, *connectivity.Monitor) {
	t.Helper()
	ctrl := gomock.NewController(t)
	client := mock_remote.NewMockClient(ctrl)
	monitor := connectivity.NewMonitor(nil, testLogger())
	if online {
		monitor.SetOnline(true)
	}
	engine := New(st, client, monitor, Config{Debounce: time.Hour}, testLogger())
	return engine, client, monitor
}

func TestEngine_Init(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)

	tests := []struct {
		name   string
		online bool
		seed   func(t *testing.T, st store.Store)
		expect func(client *mock_remote.MockClient)
		verify func(t *testing.T, st store.Store)
	}{
		{
			name:   "offline start serves cached data without remote calls",
			online: false,
			seed: func(t *testing.T, st store.Store) {
				require.NoError(t, st.PutFlashcard(context.Background(), store.Flashcard{
					ID: 1, LanguageID: 1, WordOrPhrase: "bonjour", Synced: true,
				}))
			},
			expect: func(client *mock_remote.MockClient) {},
			verify: func(t *testing.T, st store.Store) {
				card, err := st.GetFlashcard(context.Background(), 1)
				require.NoError(t, err)
				require.NotNil(t, card)
				assert.Equal(t, "bonjour", card.WordOrPhrase)

				last, err := st.LastSyncTime(context.Background())
				require.NoError(t, err)
				assert.Nil(t, last)
			},
		},
		{
			name:   "pull seeds languages then their flashcards",
			online: true,
			seed:   func(t *testing.T, st store.Store) {},
			expect: func(client *mock_remote.MockClient) {
				client.EXPECT().ListLanguages(gomock.Any()).Return([]store.Language{
					{ID: 1, Name: "French", Code: "fr"},
				}, nil)
				client.EXPECT().ListFlashcards(gomock.Any(), remote.ListFlashcardsParams{LanguageID: 1}).Return([]store.Flashcard{
					{ID: 10, LanguageID: 1, WordOrPhrase: "bonjour", Definition: "hello", UpdatedAt: now},
				}, nil)
			},
			verify: func(t *testing.T, st store.Store) {
				lang, err := st.GetLanguage(context.Background(), 1)
				require.NoError(t, err)
				require.NotNil(t, lang)
				assert.True(t, lang.Synced)

				card, err := st.GetFlashcard(context.Background(), 10)
				require.NoError(t, err)
				require.NotNil(t, card)
				assert.True(t, card.Synced)
				assert.Equal(t, "bonjour", card.WordOrPhrase)

				last, err := st.LastSyncTime(context.Background())
				require.NoError(t, err)
				assert.NotNil(t, last)
			},
		},
		{
			name:   "pull failure degrades to cached data",
			online: true,
			seed: func(t *testing.T, st store.Store) {
				require.NoError(t, st.PutFlashcard(context.Background(), store.Flashcard{
					ID: 1, LanguageID: 1, WordOrPhrase: "hola", Synced: true,
				}))
			},
			expect: func(client *mock_remote.MockClient) {
				client.EXPECT().ListLanguages(gomock.Any()).Return(nil, &remote.StatusError{StatusCode: 503})
			},
			verify: func(t *testing.T, st store.Store) {
				card, err := st.GetFlashcard(context.Background(), 1)
				require.NoError(t, err)
				require.NotNil(t, card)
				assert.Equal(t, "hola", card.WordOrPhrase)

				last, err := st.LastSyncTime(context.Background())
				require.NoError(t, err)
				assert.Nil(t, last)
			},
		},
		{
			name:   "entities with pending operations survive the pull",
			online: true,
			seed: func(t *testing.T, st store.Store) {
				ctx := context.Background()
				// A language created offline, still queued.
				require.NoError(t, st.PutLanguage(ctx, store.Language{ID: -1, Name: "Basque", Code: "eu"}))
				require.NoError(t, st.Enqueue(ctx, &store.SyncQueueEntry{
					Operation: store.OperationCreate,
					Kind:      store.KindLanguage,
					EntityID:  -1,
					Payload:   mustPayload(t, store.Language{ID: -1, Name: "Basque", Code: "eu"}),
				}))
				// A local edit not yet pushed.
				require.NoError(t, st.PutFlashcard(ctx, store.Flashcard{
					ID: 7, LanguageID: 2, WordOrPhrase: "local-edit", UpdatedAt: now,
				}))
				require.NoError(t, st.Enqueue(ctx, &store.SyncQueueEntry{
					Operation:   store.OperationUpdate,
					Kind:        store.KindFlashcard,
					EntityID:    7,
					Payload:     mustPayload(t, store.Flashcard{ID: 7, LanguageID: 2, WordOrPhrase: "local-edit"}),
					BaseVersion: now,
				}))
				// A local delete not yet pushed.
				require.NoError(t, st.Enqueue(ctx, &store.SyncQueueEntry{
					Operation:   store.OperationDelete,
					Kind:        store.KindFlashcard,
					EntityID:    8,
					BaseVersion: now,
				}))
			},
			expect: func(client *mock_remote.MockClient) {
				client.EXPECT().ListLanguages(gomock.Any()).Return([]store.Language{
					{ID: 2, Name: "German", Code: "de"},
				}, nil)
				client.EXPECT().ListFlashcards(gomock.Any(), remote.ListFlashcardsParams{LanguageID: 2}).Return([]store.Flashcard{
					{ID: 7, LanguageID: 2, WordOrPhrase: "server-copy", UpdatedAt: now.Add(time.Hour)},
					{ID: 8, LanguageID: 2, WordOrPhrase: "deleted-locally", UpdatedAt: now},
					{ID: 9, LanguageID: 2, WordOrPhrase: "brand-new", UpdatedAt: now},
				}, nil)
				// The startup drain halts on the first queued entry.
				client.EXPECT().CreateLanguage(gomock.Any(), gomock.Any()).Return(nil, &remote.StatusError{StatusCode: 503})
			},
			verify: func(t *testing.T, st store.Store) {
				ctx := context.Background()

				card, err := st.GetFlashcard(ctx, 7)
				require.NoError(t, err)
				require.NotNil(t, card)
				assert.Equal(t, "local-edit", card.WordOrPhrase)

				deleted, err := st.GetFlashcard(ctx, 8)
				require.NoError(t, err)
				assert.Nil(t, deleted)

				fresh, err := st.GetFlashcard(ctx, 9)
				require.NoError(t, err)
				require.NotNil(t, fresh)
				assert.True(t, fresh.Synced)

				placeholder, err := st.GetLanguage(ctx, -1)
				require.NoError(t, err)
				assert.NotNil(t, placeholder)

				pending, err := st.PendingEntries(ctx)
				require.NoError(t, err)
				assert.Len(t, pending, 3)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := store.NewMemoryStore()
			tt.seed(t, st)
			engine, client, _ := newTestEngine(t, st, tt.online)
			if tt.expect != nil {
				tt.expect(client)
			}

			require.NoError(t, engine.Init(context.Background()))
			tt.verify(t, st)
		})
	}
}

// countingStore records writes passing through to the wrapped store.
type countingStore struct {
	store.Store
	flashcardPuts int
	languagePuts  int
}

func (c *countingStore) PutFlashcard(ctx context.Context, card store.Flashcard) error {
	c.flashcardPuts++
	return c.Store.PutFlashcard(ctx, card)
}

func (c *countingStore) PutLanguage(ctx context.Context, lang store.Language) error {
	c.languagePuts++
	return c.Store.PutLanguage(ctx, lang)
}

func TestEngine_Init_UnchangedDataWritesNothing(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	inner := store.NewMemoryStore()
	require.NoError(t, inner.PutLanguage(ctx, store.Language{ID: 1, Name: "French", Code: "fr", Synced: true}))
	require.NoError(t, inner.PutFlashcard(ctx, store.Flashcard{
		ID: 10, LanguageID: 1, WordOrPhrase: "bonjour", Definition: "hello",
		CreatedAt: now, UpdatedAt: now, Synced: true,
	}))

	st := &countingStore{Store: inner}
	engine, client, _ := newTestEngine(t, st, true)
	client.EXPECT().ListLanguages(gomock.Any()).Return([]store.Language{
		{ID: 1, Name: "French", Code: "fr"},
	}, nil)
	client.EXPECT().ListFlashcards(gomock.Any(), remote.ListFlashcardsParams{LanguageID: 1}).Return([]store.Flashcard{
		{ID: 10, LanguageID: 1, WordOrPhrase: "bonjour", Definition: "hello", CreatedAt: now, UpdatedAt: now},
	}, nil)

	require.NoError(t, engine.Init(ctx))
	assert.Zero(t, st.flashcardPuts)
	assert.Zero(t, st.languagePuts)
}

func TestEngine_ForceSync(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)

	tests := []struct {
		name   string
		seed   func(t *testing.T, st store.Store)
		expect func(t *testing.T, client *mock_remote.MockClient)
		want   SyncResult
		verify func(t *testing.T, st store.Store)
	}{
		{
			name: "create adopts the server id everywhere",
			seed: func(t *testing.T, st store.Store) {
				ctx := context.Background()
				card := store.Flashcard{ID: -1, LanguageID: 1, WordOrPhrase: "bonjour", Definition: "hello"}
				require.NoError(t, st.PutFlashcard(ctx, card))
				require.NoError(t, st.PutBlob(ctx, store.CachedBlob{
					URL: "https://cdn.example.com/bonjour.mp3", Payload: []byte("audio"), FlashcardID: -1, CachedAt: now,
				}))
				require.NoError(t, st.Enqueue(ctx, &store.SyncQueueEntry{
					Operation: store.OperationCreate,
					Kind:      store.KindFlashcard,
					EntityID:  -1,
					Payload:   mustPayload(t, card),
				}))
			},
			expect: func(t *testing.T, client *mock_remote.MockClient) {
				client.EXPECT().CreateFlashcard(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, card store.Flashcard) (*store.Flashcard, error) {
						assert.Zero(t, card.ID)
						assert.Equal(t, "bonjour", card.WordOrPhrase)
						created := card
						created.ID = 501
						created.CreatedAt = now
						created.UpdatedAt = now
						return &created, nil
					})
			},
			want: SyncResult{Synced: 1},
			verify: func(t *testing.T, st store.Store) {
				ctx := context.Background()

				old, err := st.GetFlashcard(ctx, -1)
				require.NoError(t, err)
				assert.Nil(t, old)

				card, err := st.GetFlashcard(ctx, 501)
				require.NoError(t, err)
				require.NotNil(t, card)
				assert.True(t, card.Synced)

				blob, err := st.GetBlob(ctx, "https://cdn.example.com/bonjour.mp3")
				require.NoError(t, err)
				require.NotNil(t, blob)
				assert.Equal(t, int64(501), blob.FlashcardID)

				pending, err := st.PendingEntries(ctx)
				require.NoError(t, err)
				assert.Empty(t, pending)
			},
		},
		{
			name: "permanent failure blocks later entries for the same entity only",
			seed: func(t *testing.T, st store.Store) {
				ctx := context.Background()
				card := store.Flashcard{ID: -1, LanguageID: 1, WordOrPhrase: ""}
				require.NoError(t, st.PutFlashcard(ctx, card))
				require.NoError(t, st.Enqueue(ctx, &store.SyncQueueEntry{
					Operation: store.OperationCreate, Kind: store.KindFlashcard, EntityID: -1,
					Payload: mustPayload(t, card),
				}))
				require.NoError(t, st.Enqueue(ctx, &store.SyncQueueEntry{
					Operation: store.OperationUpdate, Kind: store.KindFlashcard, EntityID: -1,
					Payload: mustPayload(t, card),
				}))
				require.NoError(t, st.PutLanguage(ctx, store.Language{ID: -2, Name: "Basque", Code: "eu"}))
				require.NoError(t, st.Enqueue(ctx, &store.SyncQueueEntry{
					Operation: store.OperationCreate, Kind: store.KindLanguage, EntityID: -2,
					Payload: mustPayload(t, store.Language{ID: -2, Name: "Basque", Code: "eu"}),
				}))
			},
			expect: func(t *testing.T, client *mock_remote.MockClient) {
				client.EXPECT().CreateFlashcard(gomock.Any(), gomock.Any()).
					Return(nil, &remote.StatusError{StatusCode: 422, Body: []byte("word_or_phrase is required")})
				client.EXPECT().CreateLanguage(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, lang store.Language) (*store.Language, error) {
						created := lang
						created.ID = 3
						return &created, nil
					})
			},
			want: SyncResult{Synced: 1, Failed: 2},
			verify: func(t *testing.T, st store.Store) {
				ctx := context.Background()

				failed, err := st.FailedEntries(ctx)
				require.NoError(t, err)
				require.Len(t, failed, 2)
				assert.Contains(t, failed[0].FailReason, "422")
				assert.Equal(t, "earlier operation on this entity failed", failed[1].FailReason)

				lang, err := st.GetLanguage(ctx, 3)
				require.NoError(t, err)
				require.NotNil(t, lang)
				assert.True(t, lang.Synced)
			},
		},
		{
			name: "transient failure halts the drain and keeps entries pending",
			seed: func(t *testing.T, st store.Store) {
				ctx := context.Background()
				require.NoError(t, st.Enqueue(ctx, &store.SyncQueueEntry{
					Operation: store.OperationDelete, Kind: store.KindFlashcard, EntityID: 5,
				}))
				require.NoError(t, st.Enqueue(ctx, &store.SyncQueueEntry{
					Operation: store.OperationDelete, Kind: store.KindFlashcard, EntityID: 6,
				}))
			},
			expect: func(t *testing.T, client *mock_remote.MockClient) {
				client.EXPECT().DeleteFlashcard(gomock.Any(), int64(5)).
					Return(&remote.StatusError{StatusCode: 503})
			},
			want: SyncResult{Skipped: 2},
			verify: func(t *testing.T, st store.Store) {
				pending, err := st.PendingEntries(context.Background())
				require.NoError(t, err)
				assert.Len(t, pending, 2)
			},
		},
		{
			name: "update against a newer server copy records a conflict",
			seed: func(t *testing.T, st store.Store) {
				ctx := context.Background()
				card := store.Flashcard{ID: 7, LanguageID: 1, WordOrPhrase: "merci", Definition: "local"}
				require.NoError(t, st.PutFlashcard(ctx, card))
				require.NoError(t, st.Enqueue(ctx, &store.SyncQueueEntry{
					Operation: store.OperationUpdate, Kind: store.KindFlashcard, EntityID: 7,
					Payload:     mustPayload(t, card),
					BaseVersion: now,
				}))
			},
			expect: func(t *testing.T, client *mock_remote.MockClient) {
				client.EXPECT().GetFlashcard(gomock.Any(), int64(7)).Return(&store.Flashcard{
					ID: 7, LanguageID: 1, WordOrPhrase: "merci", Definition: "remote", UpdatedAt: now.Add(time.Hour),
				}, nil)
			},
			want: SyncResult{Failed: 1},
			verify: func(t *testing.T, st store.Store) {
				ctx := context.Background()

				conflicts, err := st.ListConflicts(ctx)
				require.NoError(t, err)
				require.Len(t, conflicts, 1)
				assert.Equal(t, store.KindFlashcard, conflicts[0].Kind)
				assert.Equal(t, int64(7), conflicts[0].EntityID)
				assert.Equal(t, "flashcard changed remotely", conflicts[0].Reason)

				failed, err := st.FailedEntries(ctx)
				require.NoError(t, err)
				require.Len(t, failed, 1)
				assert.Contains(t, failed[0].FailReason, "sync conflict")
			},
		},
		{
			name: "delete of an already deleted record succeeds",
			seed: func(t *testing.T, st store.Store) {
				require.NoError(t, st.Enqueue(context.Background(), &store.SyncQueueEntry{
					Operation: store.OperationDelete, Kind: store.KindFlashcard, EntityID: 9,
				}))
			},
			expect: func(t *testing.T, client *mock_remote.MockClient) {
				client.EXPECT().DeleteFlashcard(gomock.Any(), int64(9)).
					Return(&remote.StatusError{StatusCode: 404})
			},
			want: SyncResult{Synced: 1},
			verify: func(t *testing.T, st store.Store) {
				pending, err := st.PendingEntries(context.Background())
				require.NoError(t, err)
				assert.Empty(t, pending)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := store.NewMemoryStore()
			tt.seed(t, st)
			engine, client, _ := newTestEngine(t, st, true)
			tt.expect(t, client)

			got, err := engine.ForceSync(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			tt.verify(t, st)
		})
	}
}

func TestEngine_ForceSync_Offline(t *testing.T) {
	st := store.NewMemoryStore()
	require.NoError(t, st.Enqueue(context.Background(), &store.SyncQueueEntry{
		Operation: store.OperationDelete, Kind: store.KindFlashcard, EntityID: 1,
	}))
	engine, _, _ := newTestEngine(t, st, false)

	got, err := engine.ForceSync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SyncResult{}, got)

	pending, err := st.PendingEntries(context.Background())
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestEngine_Sync_DebouncesBursts(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	engine, client, _ := newTestEngine(t, st, true)

	require.NoError(t, st.Enqueue(ctx, &store.SyncQueueEntry{
		Operation: store.OperationDelete, Kind: store.KindLanguage, EntityID: 5,
	}))
	client.EXPECT().DeleteLanguage(gomock.Any(), int64(5)).Return(nil)

	got, err := engine.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, SyncResult{Synced: 1}, got)

	// Inside the debounce window nothing reaches the server.
	require.NoError(t, st.Enqueue(ctx, &store.SyncQueueEntry{
		Operation: store.OperationDelete, Kind: store.KindLanguage, EntityID: 6,
	}))
	got, err = engine.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, SyncResult{}, got)

	// ForceSync ignores the window.
	client.EXPECT().DeleteLanguage(gomock.Any(), int64(6)).Return(nil)
	got, err = engine.ForceSync(ctx)
	require.NoError(t, err)
	assert.Equal(t, SyncResult{Synced: 1}, got)
}

func TestEngine_ReconnectDrainsQueue(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()

	placeholder, err := st.NextPlaceholderID(ctx, store.KindFlashcard)
	require.NoError(t, err)
	card := store.Flashcard{ID: placeholder, LanguageID: 1, WordOrPhrase: "bonjour", Definition: "hello"}
	require.NoError(t, st.PutFlashcard(ctx, card))
	require.NoError(t, st.Enqueue(ctx, &store.SyncQueueEntry{
		Operation: store.OperationCreate, Kind: store.KindFlashcard, EntityID: placeholder,
		Payload: mustPayload(t, card),
	}))

	engine, client, monitor := newTestEngine(t, st, false)
	client.EXPECT().CreateFlashcard(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, card store.Flashcard) (*store.Flashcard, error) {
			created := card
			created.ID = 42
			return &created, nil
		}).Times(1)

	// While offline nothing is pushed.
	_, err = engine.Sync(ctx)
	require.NoError(t, err)
	pending, err := st.PendingEntries(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	// Reconnecting triggers exactly one drain.
	monitor.SetOnline(true)

	pending, err = st.PendingEntries(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	synced, err := st.GetFlashcard(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, synced)
	assert.True(t, synced.Synced)

	gone, err := st.GetFlashcard(ctx, placeholder)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestEngine_RetryFailed(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()

	require.NoError(t, st.Enqueue(ctx, &store.SyncQueueEntry{
		Operation: store.OperationDelete, Kind: store.KindFlashcard, EntityID: 3,
	}))
	pending, err := st.PendingEntries(ctx)
	require.NoError(t, err)
	require.NoError(t, st.MarkEntryFailed(ctx, pending[0].ID, "server rejected it"))

	engine, client, _ := newTestEngine(t, st, true)
	client.EXPECT().DeleteFlashcard(gomock.Any(), int64(3)).Return(nil)

	got, err := engine.RetryFailed(ctx)
	require.NoError(t, err)
	assert.Equal(t, SyncResult{Synced: 1}, got)

	failed, err := st.FailedEntries(ctx)
	require.NoError(t, err)
	assert.Empty(t, failed)
}

func TestEngine_Status(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()

	require.NoError(t, st.PutLanguage(ctx, store.Language{ID: 1, Name: "French", Code: "fr", Synced: true}))
	require.NoError(t, st.PutFlashcard(ctx, store.Flashcard{ID: 1, LanguageID: 1, WordOrPhrase: "bonjour", Synced: true}))
	require.NoError(t, st.PutFlashcard(ctx, store.Flashcard{ID: 2, LanguageID: 1, WordOrPhrase: "merci", Synced: true}))
	require.NoError(t, st.Enqueue(ctx, &store.SyncQueueEntry{
		Operation: store.OperationUpdate, Kind: store.KindFlashcard, EntityID: 1,
	}))
	require.NoError(t, st.Enqueue(ctx, &store.SyncQueueEntry{
		Operation: store.OperationUpdate, Kind: store.KindFlashcard, EntityID: 2,
	}))
	entries, err := st.PendingEntries(ctx)
	require.NoError(t, err)
	require.NoError(t, st.MarkEntryFailed(ctx, entries[1].ID, "rejected"))

	engine, _, _ := newTestEngine(t, st, false)

	status, err := engine.Status(ctx)
	require.NoError(t, err)
	assert.False(t, status.Online)
	assert.Equal(t, 1, status.PendingOperations)
	assert.Equal(t, 1, status.FailedOperations)
	assert.Nil(t, status.LastSyncTime)
	assert.Equal(t, store.Stats{
		FlashcardsCount:   2,
		LanguagesCount:    1,
		PendingOperations: 1,
		FailedOperations:  1,
	}, status.Stats)
}
