package store

import (
	"context"
	"errors"
	"time"
)

// ErrStorageUnavailable reports that the persistent store could not be opened
// or migrated. Callers degrade to a memory-only store for the session.
var ErrStorageUnavailable = errors.New("local storage unavailable")

// ErrConflict reports that an edit collided with a newer copy of the same
// record on the server. The conflicting versions are kept in the conflict
// log for review.
var ErrConflict = errors.New("sync conflict")

// Store is the single durable home of flashcards, languages, the sync queue,
// the audio blob cache, sync conflicts, and sync metadata. The sync engine and
// the request gateway read and write exclusively through this interface and
// hold no entity state of their own beyond a single operation.
type Store interface {
	// Flashcards. Get returns nil, nil when the record does not exist.
	// Put is an upsert keyed by ID; the last write wins.
	GetFlashcard(ctx context.Context, id int64) (*Flashcard, error)
	ListFlashcards(ctx context.Context) ([]Flashcard, error)
	QueryFlashcards(ctx context.Context, filter FlashcardFilter) ([]Flashcard, error)
	PutFlashcard(ctx context.Context, card Flashcard) error
	DeleteFlashcard(ctx context.Context, id int64) error

	// Languages. Same contract as flashcards.
	GetLanguage(ctx context.Context, id int64) (*Language, error)
	ListLanguages(ctx context.Context) ([]Language, error)
	PutLanguage(ctx context.Context, lang Language) error
	DeleteLanguage(ctx context.Context, id int64) error

	// NextPlaceholderID returns the next negative placeholder id for the kind,
	// one below the smallest id already present.
	NextPlaceholderID(ctx context.Context, kind EntityKind) (int64, error)

	// RemapFlashcardID rewrites every reference to a flashcard placeholder id
	// (queue entries and cached blobs) to the server-assigned id. The record
	// itself is replaced by the caller with the server copy.
	RemapFlashcardID(ctx context.Context, oldID, newID int64) error
	// RemapLanguageID additionally rewrites LanguageID on every flashcard and
	// on queued flashcard payloads.
	RemapLanguageID(ctx context.Context, oldID, newID int64) error

	// Sync queue. Enqueue assigns ID and EnqueuedAt. PendingEntries returns
	// pending entries in FIFO order without removing them.
	Enqueue(ctx context.Context, entry *SyncQueueEntry) error
	PendingEntries(ctx context.Context) ([]SyncQueueEntry, error)
	FailedEntries(ctx context.Context) ([]SyncQueueEntry, error)
	RemoveQueueEntry(ctx context.Context, id int64) error
	// RemoveEntriesForEntity drops every queue entry for one entity,
	// reporting how many were removed. Used to cancel queued work for a
	// placeholder that was deleted before it ever reached the server.
	RemoveEntriesForEntity(ctx context.Context, kind EntityKind, entityID int64) (int, error)
	MarkEntryFailed(ctx context.Context, id int64, reason string) error
	// RetryFailedEntries flips failed entries back to pending, preserving
	// their original order, and reports how many were re-armed.
	RetryFailedEntries(ctx context.Context) (int, error)

	// Audio blob cache, keyed by source URL. Get returns nil, nil on a miss.
	PutBlob(ctx context.Context, blob CachedBlob) error
	GetBlob(ctx context.Context, url string) (*CachedBlob, error)
	DeleteBlobsForFlashcard(ctx context.Context, flashcardID int64) error

	// Sync conflicts.
	RecordConflict(ctx context.Context, conflict SyncConflict) error
	ListConflicts(ctx context.Context) ([]SyncConflict, error)

	// Sync metadata. LastSyncTime returns nil when no drain has completed yet.
	LastSyncTime(ctx context.Context) (*time.Time, error)
	SetLastSyncTime(ctx context.Context, t time.Time) error

	Stats(ctx context.Context) (Stats, error)
	ClearAll(ctx context.Context) error
	Close() error
}
