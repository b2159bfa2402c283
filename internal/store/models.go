// Package store provides the local persistent store: entity records, the
// write-ahead sync queue, the audio blob cache, recorded sync conflicts, and
// sync metadata.
package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// EntityKind identifies which entity collection a record or queue entry targets.
type EntityKind string

const (
	KindFlashcard EntityKind = "flashcard"
	KindLanguage  EntityKind = "language"
)

// Operation is the kind of remote write a queue entry represents.
type Operation string

const (
	OperationCreate Operation = "CREATE"
	OperationUpdate Operation = "UPDATE"
	OperationDelete Operation = "DELETE"
)

// StringList is an ordered list of strings persisted as a JSON array column.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("json.Marshal(StringList) > %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case string:
		return l.scanBytes([]byte(v))
	case []byte:
		return l.scanBytes(v)
	default:
		return fmt.Errorf("cannot scan %T into StringList", src)
	}
}

func (l *StringList) scanBytes(data []byte) error {
	if len(data) == 0 {
		*l = nil
		return nil
	}
	if err := json.Unmarshal(data, l); err != nil {
		return fmt.Errorf("json.Unmarshal(StringList) > %w", err)
	}
	return nil
}

// Flashcard represents a vocabulary card for a target language.
//
// A positive ID is server-assigned. A negative ID is a locally-assigned
// placeholder for a card created while offline, replaced once the remote
// service confirms the create. Synced is local-only state and is never sent
// to the remote service.
type Flashcard struct {
	ID               int64      `db:"id" json:"id" yaml:"id"`
	LanguageID       int64      `db:"language_id" json:"language_id" yaml:"language_id" validate:"required"`
	WordOrPhrase     string     `db:"word_or_phrase" json:"word_or_phrase" yaml:"word_or_phrase" validate:"required"`
	Definition       string     `db:"definition" json:"definition" yaml:"definition"`
	Etymology        string     `db:"etymology" json:"etymology" yaml:"etymology"`
	EnglishCognates  string     `db:"english_cognates" json:"english_cognates" yaml:"english_cognates"`
	RelatedWords     StringList `db:"related_words" json:"related_words" yaml:"related_words"`
	ImageURL         string     `db:"image_url" json:"image_url" yaml:"image_url"`
	ImageDescription string     `db:"image_description" json:"image_description" yaml:"image_description"`
	AudioURL         string     `db:"audio_url" json:"audio_url" yaml:"audio_url"`
	TimesReviewed    int        `db:"times_reviewed" json:"times_reviewed" yaml:"times_reviewed"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at" yaml:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at" yaml:"updated_at"`
	Synced           bool       `db:"synced" json:"-" yaml:"synced"`
}

// Language represents a target language cards belong to.
type Language struct {
	ID     int64  `db:"id" json:"id" yaml:"id"`
	Name   string `db:"name" json:"name" yaml:"name" validate:"required"`
	Code   string `db:"code" json:"code" yaml:"code" validate:"required"`
	Synced bool   `db:"synced" json:"-" yaml:"synced"`
}

// SyncQueueEntry is a not-yet-confirmed write awaiting network drain.
//
// Entries are processed front-to-back in enqueue order. BaseVersion holds the
// record's UpdatedAt at enqueue time (zero for CREATE) and is compared against
// the server's current version before UPDATE and DELETE apply. A failed entry
// stays in the table for inspection but is excluded from draining.
type SyncQueueEntry struct {
	ID          int64           `db:"id" json:"id" yaml:"id"`
	Operation   Operation       `db:"operation" json:"operation" yaml:"operation"`
	Kind        EntityKind      `db:"entity_kind" json:"entity_kind" yaml:"entity_kind"`
	EntityID    int64           `db:"entity_id" json:"entity_id" yaml:"entity_id"`
	Payload     json.RawMessage `db:"payload" json:"payload" yaml:"payload"`
	BaseVersion time.Time       `db:"base_version" json:"base_version" yaml:"base_version"`
	Status      EntryStatus     `db:"status" json:"status" yaml:"status"`
	FailReason  string          `db:"fail_reason" json:"fail_reason" yaml:"fail_reason"`
	EnqueuedAt  time.Time       `db:"enqueued_at" json:"enqueued_at" yaml:"enqueued_at"`
}

// EntryStatus is the drain state of a queue entry.
type EntryStatus string

const (
	EntryStatusPending EntryStatus = "pending"
	EntryStatusFailed  EntryStatus = "failed"
)

// CachedBlob is a locally cached binary asset, keyed by its source URL.
type CachedBlob struct {
	URL         string    `db:"url" json:"url" yaml:"url"`
	Payload     []byte    `db:"payload" json:"payload" yaml:"payload"`
	FlashcardID int64     `db:"flashcard_id" json:"flashcard_id" yaml:"flashcard_id"`
	CachedAt    time.Time `db:"cached_at" json:"cached_at" yaml:"cached_at"`
}

// SyncConflict records a queued write whose base version no longer matches the
// server's copy. The server copy is left untouched; resolution is manual.
type SyncConflict struct {
	ID            string          `db:"id" json:"id" yaml:"id"`
	Kind          EntityKind      `db:"entity_kind" json:"entity_kind" yaml:"entity_kind"`
	EntityID      int64           `db:"entity_id" json:"entity_id" yaml:"entity_id"`
	LocalPayload  json.RawMessage `db:"local_payload" json:"local_payload" yaml:"local_payload"`
	RemotePayload json.RawMessage `db:"remote_payload" json:"remote_payload" yaml:"remote_payload"`
	Reason        string          `db:"reason" json:"reason" yaml:"reason"`
	DetectedAt    time.Time       `db:"detected_at" json:"detected_at" yaml:"detected_at"`
}

// FlashcardFilter scopes a flashcard query. Zero values mean "no constraint".
type FlashcardFilter struct {
	LanguageID int64
	Search     string
}

// Stats holds aggregate counts for the sync status surface.
type Stats struct {
	FlashcardsCount   int `json:"flashcardsCount" yaml:"flashcards_count"`
	LanguagesCount    int `json:"languagesCount" yaml:"languages_count"`
	PendingOperations int `json:"pendingOperations" yaml:"pending_operations"`
	FailedOperations  int `json:"failedOperations" yaml:"failed_operations"`
	CachedBlobs       int `json:"cachedBlobs" yaml:"cached_blobs"`
}

// EntityKey identifies one entity record across collections.
type EntityKey struct {
	Kind EntityKind
	ID   int64
}

// DirtyKeys returns the set of entities owned by queue entries, pending or
// dead-lettered. Cache refreshes must not overwrite records in this set: the
// local copy carries a write the server has not confirmed, and a pull could
// otherwise resurrect a record whose delete is still in the queue.
func DirtyKeys(lists ...[]SyncQueueEntry) map[EntityKey]struct{} {
	keys := make(map[EntityKey]struct{})
	for _, entries := range lists {
		for _, entry := range entries {
			keys[EntityKey{Kind: entry.Kind, ID: entry.EntityID}] = struct{}{}
		}
	}
	return keys
}
