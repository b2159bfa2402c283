package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/pressly/goose/v3"

	"github.com/offlingo/offlingo/schemas"
)

const lastSyncTimeKey = "last_sync_time"

// SQLiteStore implements Store on an embedded SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// Open opens (or creates) the SQLite database at path, applies pending
// migrations, and returns the store. Failures are wrapped with
// ErrStorageUnavailable so callers can degrade to a memory-only store.
func Open(ctx context.Context, path string) (*SQLiteStore, error) {
	s, err := open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return s, nil
}

func open(ctx context.Context, path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("os.MkdirAll(%s) > %w", filepath.Dir(path), err)
	}

	// WAL for concurrent readers; busy_timeout and foreign_keys apply per
	// connection, so they go on the DSN rather than a one-off Exec.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlx.Open() > %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db.PingContext() > %w", err)
	}

	goose.SetBaseFS(schemas.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("goose.SetDialect() > %w", err)
	}
	if err := goose.UpContext(ctx, db.DB, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("goose.UpContext() > %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// GetFlashcard returns a flashcard by id, or nil if not found.
func (s *SQLiteStore) GetFlashcard(ctx context.Context, id int64) (*Flashcard, error) {
	var card Flashcard
	err := s.db.GetContext(ctx, &card, "SELECT * FROM flashcards WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("db.GetContext(flashcard) > %w", err)
	}
	return &card, nil
}

// ListFlashcards returns all flashcards.
func (s *SQLiteStore) ListFlashcards(ctx context.Context) ([]Flashcard, error) {
	var cards []Flashcard
	if err := s.db.SelectContext(ctx, &cards, "SELECT * FROM flashcards ORDER BY id"); err != nil {
		return nil, fmt.Errorf("db.SelectContext(flashcards) > %w", err)
	}
	return cards, nil
}

// QueryFlashcards returns flashcards matching the filter, ordered by word.
func (s *SQLiteStore) QueryFlashcards(ctx context.Context, filter FlashcardFilter) ([]Flashcard, error) {
	query := "SELECT * FROM flashcards"
	var conds []string
	var args []interface{}
	if filter.LanguageID != 0 {
		conds = append(conds, "language_id = ?")
		args = append(args, filter.LanguageID)
	}
	if filter.Search != "" {
		conds = append(conds, "(word_or_phrase LIKE ? OR definition LIKE ?)")
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY word_or_phrase, id"

	var cards []Flashcard
	if err := s.db.SelectContext(ctx, &cards, query, args...); err != nil {
		return nil, fmt.Errorf("db.SelectContext(flashcards by filter) > %w", err)
	}
	return cards, nil
}

// PutFlashcard inserts or updates a flashcard keyed by its id.
func (s *SQLiteStore) PutFlashcard(ctx context.Context, card Flashcard) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO flashcards (id, language_id, word_or_phrase, definition, etymology, english_cognates, related_words, image_url, image_description, audio_url, times_reviewed, created_at, updated_at, synced)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			language_id = excluded.language_id,
			word_or_phrase = excluded.word_or_phrase,
			definition = excluded.definition,
			etymology = excluded.etymology,
			english_cognates = excluded.english_cognates,
			related_words = excluded.related_words,
			image_url = excluded.image_url,
			image_description = excluded.image_description,
			audio_url = excluded.audio_url,
			times_reviewed = excluded.times_reviewed,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			synced = excluded.synced`,
		card.ID, card.LanguageID, card.WordOrPhrase, card.Definition, card.Etymology,
		card.EnglishCognates, card.RelatedWords, card.ImageURL, card.ImageDescription,
		card.AudioURL, card.TimesReviewed, card.CreatedAt, card.UpdatedAt, card.Synced)
	if err != nil {
		return fmt.Errorf("db.ExecContext(upsert flashcard) > %w", err)
	}
	return nil
}

// DeleteFlashcard removes a flashcard by id. Deleting a missing id is a no-op.
func (s *SQLiteStore) DeleteFlashcard(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM flashcards WHERE id = ?", id); err != nil {
		return fmt.Errorf("db.ExecContext(delete flashcard) > %w", err)
	}
	return nil
}

// GetLanguage returns a language by id, or nil if not found.
func (s *SQLiteStore) GetLanguage(ctx context.Context, id int64) (*Language, error) {
	var lang Language
	err := s.db.GetContext(ctx, &lang, "SELECT * FROM languages WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("db.GetContext(language) > %w", err)
	}
	return &lang, nil
}

// ListLanguages returns all languages ordered by name.
func (s *SQLiteStore) ListLanguages(ctx context.Context) ([]Language, error) {
	var langs []Language
	if err := s.db.SelectContext(ctx, &langs, "SELECT * FROM languages ORDER BY name, id"); err != nil {
		return nil, fmt.Errorf("db.SelectContext(languages) > %w", err)
	}
	return langs, nil
}

// PutLanguage inserts or updates a language keyed by its id.
func (s *SQLiteStore) PutLanguage(ctx context.Context, lang Language) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO languages (id, name, code, synced) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, code = excluded.code, synced = excluded.synced`,
		lang.ID, lang.Name, lang.Code, lang.Synced)
	if err != nil {
		return fmt.Errorf("db.ExecContext(upsert language) > %w", err)
	}
	return nil
}

// DeleteLanguage removes a language by id.
func (s *SQLiteStore) DeleteLanguage(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM languages WHERE id = ?", id); err != nil {
		return fmt.Errorf("db.ExecContext(delete language) > %w", err)
	}
	return nil
}

// NextPlaceholderID returns the next free negative placeholder id for the
// kind. Ids still referenced by queue entries count as taken, so a placeholder
// is never reissued while a CREATE for it is queued.
func (s *SQLiteStore) NextPlaceholderID(ctx context.Context, kind EntityKind) (int64, error) {
	table := "flashcards"
	if kind == KindLanguage {
		table = "languages"
	}

	var tableMin int64
	if err := s.db.GetContext(ctx, &tableMin,
		"SELECT COALESCE(MIN(id), 0) FROM "+table+" WHERE id < 0"); err != nil {
		return 0, fmt.Errorf("db.GetContext(min %s id) > %w", table, err)
	}
	var queueMin int64
	if err := s.db.GetContext(ctx, &queueMin,
		"SELECT COALESCE(MIN(entity_id), 0) FROM sync_queue WHERE entity_kind = ? AND entity_id < 0", kind); err != nil {
		return 0, fmt.Errorf("db.GetContext(min queued entity_id) > %w", err)
	}

	next := min(tableMin, queueMin) - 1
	return next, nil
}

// RemapFlashcardID rewrites blob and queue references from a placeholder id to
// the server-assigned id.
func (s *SQLiteStore) RemapFlashcardID(ctx context.Context, oldID, newID int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("db.BeginTxx() > %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"UPDATE audio_blobs SET flashcard_id = ? WHERE flashcard_id = ?", newID, oldID); err != nil {
		return fmt.Errorf("tx.ExecContext(remap blobs) > %w", err)
	}

	var entries []SyncQueueEntry
	if err := tx.SelectContext(ctx, &entries,
		"SELECT * FROM sync_queue WHERE entity_kind = ? AND entity_id = ? ORDER BY id",
		KindFlashcard, oldID); err != nil {
		return fmt.Errorf("tx.SelectContext(queue entries) > %w", err)
	}
	for _, entry := range entries {
		payload, err := remapFlashcardPayload(entry.Payload, newID, 0, 0)
		if err != nil {
			return fmt.Errorf("remapFlashcardPayload(entry %d) > %w", entry.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE sync_queue SET entity_id = ?, payload = ? WHERE id = ?",
			newID, string(payload), entry.ID); err != nil {
			return fmt.Errorf("tx.ExecContext(remap queue entry) > %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("tx.Commit() > %w", err)
	}
	return nil
}

// RemapLanguageID rewrites the language references held by flashcards and
// queue entries from a placeholder id to the server-assigned id.
func (s *SQLiteStore) RemapLanguageID(ctx context.Context, oldID, newID int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("db.BeginTxx() > %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"UPDATE flashcards SET language_id = ? WHERE language_id = ?", newID, oldID); err != nil {
		return fmt.Errorf("tx.ExecContext(remap flashcards language_id) > %w", err)
	}

	var entries []SyncQueueEntry
	if err := tx.SelectContext(ctx, &entries, "SELECT * FROM sync_queue ORDER BY id"); err != nil {
		return fmt.Errorf("tx.SelectContext(queue entries) > %w", err)
	}
	for _, entry := range entries {
		switch entry.Kind {
		case KindLanguage:
			if entry.EntityID != oldID {
				continue
			}
			payload, err := remapLanguagePayload(entry.Payload, newID)
			if err != nil {
				return fmt.Errorf("remapLanguagePayload(entry %d) > %w", entry.ID, err)
			}
			if _, err := tx.ExecContext(ctx,
				"UPDATE sync_queue SET entity_id = ?, payload = ? WHERE id = ?",
				newID, string(payload), entry.ID); err != nil {
				return fmt.Errorf("tx.ExecContext(remap queue entry) > %w", err)
			}
		case KindFlashcard:
			payload, err := remapFlashcardPayload(entry.Payload, 0, oldID, newID)
			if err != nil {
				return fmt.Errorf("remapFlashcardPayload(entry %d) > %w", entry.ID, err)
			}
			if payload == nil {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				"UPDATE sync_queue SET payload = ? WHERE id = ?", string(payload), entry.ID); err != nil {
				return fmt.Errorf("tx.ExecContext(remap queue payload) > %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("tx.Commit() > %w", err)
	}
	return nil
}

// remapFlashcardPayload rewrites id and/or language_id inside a queued
// flashcard payload. A zero newID leaves the id untouched; a zero newLanguageID
// leaves language_id untouched. Returns nil when nothing changed and no newID
// was requested.
func remapFlashcardPayload(payload json.RawMessage, newID, oldLanguageID, newLanguageID int64) (json.RawMessage, error) {
	if len(payload) == 0 {
		return payload, nil
	}
	var card Flashcard
	if err := json.Unmarshal(payload, &card); err != nil {
		return nil, fmt.Errorf("json.Unmarshal(flashcard payload) > %w", err)
	}

	changed := false
	if newID != 0 {
		card.ID = newID
		changed = true
	}
	if newLanguageID != 0 && card.LanguageID == oldLanguageID {
		card.LanguageID = newLanguageID
		changed = true
	}
	if !changed {
		return nil, nil
	}

	out, err := json.Marshal(card)
	if err != nil {
		return nil, fmt.Errorf("json.Marshal(flashcard payload) > %w", err)
	}
	return out, nil
}

func remapLanguagePayload(payload json.RawMessage, newID int64) (json.RawMessage, error) {
	if len(payload) == 0 {
		return payload, nil
	}
	var lang Language
	if err := json.Unmarshal(payload, &lang); err != nil {
		return nil, fmt.Errorf("json.Unmarshal(language payload) > %w", err)
	}
	lang.ID = newID
	out, err := json.Marshal(lang)
	if err != nil {
		return nil, fmt.Errorf("json.Marshal(language payload) > %w", err)
	}
	return out, nil
}

// Enqueue appends a pending entry to the sync queue, assigning its id and
// enqueue time.
func (s *SQLiteStore) Enqueue(ctx context.Context, entry *SyncQueueEntry) error {
	if entry.EnqueuedAt.IsZero() {
		entry.EnqueuedAt = time.Now().UTC()
	}
	entry.Status = EntryStatusPending

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_queue (operation, entity_kind, entity_id, payload, base_version, status, fail_reason, enqueued_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.Operation, entry.Kind, entry.EntityID, string(entry.Payload),
		entry.BaseVersion, entry.Status, entry.FailReason, entry.EnqueuedAt)
	if err != nil {
		return fmt.Errorf("db.ExecContext(insert queue entry) > %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("result.LastInsertId() > %w", err)
	}
	entry.ID = id
	return nil
}

// PendingEntries returns pending queue entries in FIFO order without removing them.
func (s *SQLiteStore) PendingEntries(ctx context.Context) ([]SyncQueueEntry, error) {
	var entries []SyncQueueEntry
	if err := s.db.SelectContext(ctx, &entries,
		"SELECT * FROM sync_queue WHERE status = ? ORDER BY id", EntryStatusPending); err != nil {
		return nil, fmt.Errorf("db.SelectContext(pending queue entries) > %w", err)
	}
	return entries, nil
}

// FailedEntries returns dead-lettered queue entries in FIFO order.
func (s *SQLiteStore) FailedEntries(ctx context.Context) ([]SyncQueueEntry, error) {
	var entries []SyncQueueEntry
	if err := s.db.SelectContext(ctx, &entries,
		"SELECT * FROM sync_queue WHERE status = ? ORDER BY id", EntryStatusFailed); err != nil {
		return nil, fmt.Errorf("db.SelectContext(failed queue entries) > %w", err)
	}
	return entries, nil
}

// RemoveQueueEntry deletes a queue entry after its remote operation confirmed.
func (s *SQLiteStore) RemoveQueueEntry(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sync_queue WHERE id = ?", id); err != nil {
		return fmt.Errorf("db.ExecContext(delete queue entry) > %w", err)
	}
	return nil
}

func (s *SQLiteStore) RemoveEntriesForEntity(ctx context.Context, kind EntityKind, entityID int64) (int, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM sync_queue WHERE entity_kind = ? AND entity_id = ?",
		kind, entityID)
	if err != nil {
		return 0, fmt.Errorf("db.ExecContext(delete entity queue entries) > %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("res.RowsAffected > %w", err)
	}
	return int(n), nil
}

// MarkEntryFailed dead-letters a queue entry with the failure reason.
func (s *SQLiteStore) MarkEntryFailed(ctx context.Context, id int64, reason string) error {
	if _, err := s.db.ExecContext(ctx,
		"UPDATE sync_queue SET status = ?, fail_reason = ? WHERE id = ?",
		EntryStatusFailed, reason, id); err != nil {
		return fmt.Errorf("db.ExecContext(mark queue entry failed) > %w", err)
	}
	return nil
}

// RetryFailedEntries flips failed entries back to pending and reports how many
// were re-armed.
func (s *SQLiteStore) RetryFailedEntries(ctx context.Context) (int, error) {
	result, err := s.db.ExecContext(ctx,
		"UPDATE sync_queue SET status = ?, fail_reason = '' WHERE status = ?",
		EntryStatusPending, EntryStatusFailed)
	if err != nil {
		return 0, fmt.Errorf("db.ExecContext(retry failed entries) > %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("result.RowsAffected() > %w", err)
	}
	return int(n), nil
}

// PutBlob inserts or replaces a cached blob keyed by URL.
func (s *SQLiteStore) PutBlob(ctx context.Context, blob CachedBlob) error {
	if blob.CachedAt.IsZero() {
		blob.CachedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audio_blobs (url, payload, flashcard_id, cached_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (url) DO UPDATE SET payload = excluded.payload, flashcard_id = excluded.flashcard_id, cached_at = excluded.cached_at`,
		blob.URL, blob.Payload, blob.FlashcardID, blob.CachedAt)
	if err != nil {
		return fmt.Errorf("db.ExecContext(upsert blob) > %w", err)
	}
	return nil
}

// GetBlob returns a cached blob by URL, or nil on a cache miss.
func (s *SQLiteStore) GetBlob(ctx context.Context, url string) (*CachedBlob, error) {
	var blob CachedBlob
	err := s.db.GetContext(ctx, &blob, "SELECT * FROM audio_blobs WHERE url = ?", url)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("db.GetContext(blob) > %w", err)
	}
	return &blob, nil
}

// DeleteBlobsForFlashcard removes all cached blobs belonging to a flashcard.
func (s *SQLiteStore) DeleteBlobsForFlashcard(ctx context.Context, flashcardID int64) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM audio_blobs WHERE flashcard_id = ?", flashcardID); err != nil {
		return fmt.Errorf("db.ExecContext(delete blobs) > %w", err)
	}
	return nil
}

// RecordConflict stores a detected sync conflict.
func (s *SQLiteStore) RecordConflict(ctx context.Context, conflict SyncConflict) error {
	if conflict.DetectedAt.IsZero() {
		conflict.DetectedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_conflicts (id, entity_kind, entity_id, local_payload, remote_payload, reason, detected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		conflict.ID, conflict.Kind, conflict.EntityID, string(conflict.LocalPayload),
		string(conflict.RemotePayload), conflict.Reason, conflict.DetectedAt)
	if err != nil {
		return fmt.Errorf("db.ExecContext(insert conflict) > %w", err)
	}
	return nil
}

// ListConflicts returns all recorded conflicts, newest first.
func (s *SQLiteStore) ListConflicts(ctx context.Context) ([]SyncConflict, error) {
	var conflicts []SyncConflict
	if err := s.db.SelectContext(ctx, &conflicts,
		"SELECT * FROM sync_conflicts ORDER BY detected_at DESC, id"); err != nil {
		return nil, fmt.Errorf("db.SelectContext(conflicts) > %w", err)
	}
	return conflicts, nil
}

// LastSyncTime returns the time of the last completed drain, or nil if no
// drain has completed yet.
func (s *SQLiteStore) LastSyncTime(ctx context.Context) (*time.Time, error) {
	var value string
	err := s.db.GetContext(ctx, &value,
		"SELECT value FROM sync_meta WHERE key = ?", lastSyncTimeKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("db.GetContext(sync_meta) > %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return nil, fmt.Errorf("time.Parse(%s) > %w", value, err)
	}
	return &t, nil
}

// SetLastSyncTime records the time of the last completed drain.
func (s *SQLiteStore) SetLastSyncTime(ctx context.Context, t time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_meta (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		lastSyncTimeKey, t.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("db.ExecContext(upsert sync_meta) > %w", err)
	}
	return nil
}

// Stats returns aggregate counts for the status surface.
func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	counts := []struct {
		dest  *int
		query string
		args  []interface{}
	}{
		{&stats.FlashcardsCount, "SELECT COUNT(*) FROM flashcards", nil},
		{&stats.LanguagesCount, "SELECT COUNT(*) FROM languages", nil},
		{&stats.PendingOperations, "SELECT COUNT(*) FROM sync_queue WHERE status = ?", []interface{}{EntryStatusPending}},
		{&stats.FailedOperations, "SELECT COUNT(*) FROM sync_queue WHERE status = ?", []interface{}{EntryStatusFailed}},
		{&stats.CachedBlobs, "SELECT COUNT(*) FROM audio_blobs", nil},
	}
	for _, c := range counts {
		if err := s.db.GetContext(ctx, c.dest, c.query, c.args...); err != nil {
			return Stats{}, fmt.Errorf("db.GetContext(%s) > %w", c.query, err)
		}
	}
	return stats, nil
}

// ClearAll empties every collection, including the sync queue and metadata.
func (s *SQLiteStore) ClearAll(ctx context.Context) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("db.BeginTxx() > %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"flashcards", "languages", "sync_queue", "audio_blobs", "sync_conflicts", "sync_meta"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("tx.ExecContext(clear %s) > %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("tx.Commit() > %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("db.Close() > %w", err)
	}
	return nil
}
