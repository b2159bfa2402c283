package datasync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/offlingo/offlingo/internal/remote"
	"github.com/offlingo/offlingo/internal/store"
)

// entitySyncer pushes one queue entry of its kind to the server and
// settles the local copy. Dispatch is by entity kind: each syncer owns
// its payload codec, its remote calls, and its local writes.
type entitySyncer interface {
	create(ctx context.Context, entry store.SyncQueueEntry) error
	update(ctx context.Context, entry store.SyncQueueEntry) error
	remove(ctx context.Context, entry store.SyncQueueEntry) error
}

type flashcardSyncer struct {
	store  store.Store
	client remote.Client
	logger *slog.Logger
	now    func() time.Time
}

func (s *flashcardSyncer) create(ctx context.Context, entry store.SyncQueueEntry) error {
	var card store.Flashcard
	if err := json.Unmarshal(entry.Payload, &card); err != nil {
		return fmt.Errorf("%w: json.Unmarshal(flashcard) > %v", ErrBadPayload, err)
	}
	// The payload still carries the placeholder id. The server assigns
	// the real one.
	card.ID = 0
	created, err := s.client.CreateFlashcard(ctx, card)
	if err != nil {
		return fmt.Errorf("client.CreateFlashcard > %w", err)
	}
	created.Synced = true
	if err := s.store.DeleteFlashcard(ctx, entry.EntityID); err != nil {
		return fmt.Errorf("store.DeleteFlashcard > %w", err)
	}
	if err := s.store.PutFlashcard(ctx, *created); err != nil {
		return fmt.Errorf("store.PutFlashcard > %w", err)
	}
	if err := s.store.RemapFlashcardID(ctx, entry.EntityID, created.ID); err != nil {
		return fmt.Errorf("store.RemapFlashcardID > %w", err)
	}
	s.logger.Debug("flashcard created on server", "placeholder", entry.EntityID, "id", created.ID)
	return nil
}

func (s *flashcardSyncer) update(ctx context.Context, entry store.SyncQueueEntry) error {
	var card store.Flashcard
	if err := json.Unmarshal(entry.Payload, &card); err != nil {
		return fmt.Errorf("%w: json.Unmarshal(flashcard) > %v", ErrBadPayload, err)
	}
	if !entry.BaseVersion.IsZero() {
		current, err := s.client.GetFlashcard(ctx, entry.EntityID)
		if err != nil {
			if remote.IsNotFound(err) {
				return s.conflict(ctx, entry, nil, "flashcard deleted remotely")
			}
			return fmt.Errorf("client.GetFlashcard > %w", err)
		}
		if current.UpdatedAt.After(entry.BaseVersion) {
			return s.conflict(ctx, entry, current, "flashcard changed remotely")
		}
	}
	updated, err := s.client.UpdateFlashcard(ctx, card)
	if err != nil {
		return fmt.Errorf("client.UpdateFlashcard > %w", err)
	}
	updated.Synced = true
	if err := s.store.PutFlashcard(ctx, *updated); err != nil {
		return fmt.Errorf("store.PutFlashcard > %w", err)
	}
	return nil
}

func (s *flashcardSyncer) remove(ctx context.Context, entry store.SyncQueueEntry) error {
	if !entry.BaseVersion.IsZero() {
		current, err := s.client.GetFlashcard(ctx, entry.EntityID)
		if err != nil && !remote.IsNotFound(err) {
			return fmt.Errorf("client.GetFlashcard > %w", err)
		}
		if remote.IsNotFound(err) {
			// Already gone on the server.
			return nil
		}
		if current.UpdatedAt.After(entry.BaseVersion) {
			return s.conflict(ctx, entry, current, "flashcard changed remotely")
		}
	}
	if err := s.client.DeleteFlashcard(ctx, entry.EntityID); err != nil {
		if remote.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("client.DeleteFlashcard > %w", err)
	}
	return nil
}

func (s *flashcardSyncer) conflict(ctx context.Context, entry store.SyncQueueEntry, current *store.Flashcard, reason string) error {
	var remotePayload json.RawMessage
	if current != nil {
		b, err := json.Marshal(current)
		if err != nil {
			return fmt.Errorf("json.Marshal(flashcard) > %w", err)
		}
		remotePayload = b
	}
	return failConflict(ctx, s.store, s.logger, entry, remotePayload, reason, s.now().UTC())
}

type languageSyncer struct {
	store  store.Store
	client remote.Client
	logger *slog.Logger
	now    func() time.Time
}

func (s *languageSyncer) create(ctx context.Context, entry store.SyncQueueEntry) error {
	var lang store.Language
	if err := json.Unmarshal(entry.Payload, &lang); err != nil {
		return fmt.Errorf("%w: json.Unmarshal(language) > %v", ErrBadPayload, err)
	}
	lang.ID = 0
	created, err := s.client.CreateLanguage(ctx, lang)
	if err != nil {
		return fmt.Errorf("client.CreateLanguage > %w", err)
	}
	created.Synced = true
	if err := s.store.DeleteLanguage(ctx, entry.EntityID); err != nil {
		return fmt.Errorf("store.DeleteLanguage > %w", err)
	}
	if err := s.store.PutLanguage(ctx, *created); err != nil {
		return fmt.Errorf("store.PutLanguage > %w", err)
	}
	// Rewrites flashcards referencing the placeholder, and every queued
	// payload that embeds it.
	if err := s.store.RemapLanguageID(ctx, entry.EntityID, created.ID); err != nil {
		return fmt.Errorf("store.RemapLanguageID > %w", err)
	}
	s.logger.Debug("language created on server", "placeholder", entry.EntityID, "id", created.ID)
	return nil
}

func (s *languageSyncer) update(ctx context.Context, entry store.SyncQueueEntry) error {
	var lang store.Language
	if err := json.Unmarshal(entry.Payload, &lang); err != nil {
		return fmt.Errorf("%w: json.Unmarshal(language) > %v", ErrBadPayload, err)
	}
	if !entry.BaseVersion.IsZero() {
		if _, err := s.client.GetLanguage(ctx, entry.EntityID); err != nil {
			if remote.IsNotFound(err) {
				return s.conflict(ctx, entry, nil, "language deleted remotely")
			}
			return fmt.Errorf("client.GetLanguage > %w", err)
		}
	}
	updated, err := s.client.UpdateLanguage(ctx, lang)
	if err != nil {
		return fmt.Errorf("client.UpdateLanguage > %w", err)
	}
	updated.Synced = true
	if err := s.store.PutLanguage(ctx, *updated); err != nil {
		return fmt.Errorf("store.PutLanguage > %w", err)
	}
	return nil
}

func (s *languageSyncer) remove(ctx context.Context, entry store.SyncQueueEntry) error {
	if err := s.client.DeleteLanguage(ctx, entry.EntityID); err != nil {
		if remote.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("client.DeleteLanguage > %w", err)
	}
	return nil
}

func (s *languageSyncer) conflict(ctx context.Context, entry store.SyncQueueEntry, current *store.Language, reason string) error {
	var remotePayload json.RawMessage
	if current != nil {
		b, err := json.Marshal(current)
		if err != nil {
			return fmt.Errorf("json.Marshal(language) > %w", err)
		}
		remotePayload = b
	}
	return failConflict(ctx, s.store, s.logger, entry, remotePayload, reason, s.now().UTC())
}

// failConflict records the divergence for later review and returns
// store.ErrConflict so the drain loop dead-letters the entry.
func failConflict(ctx context.Context, st store.Store, logger *slog.Logger, entry store.SyncQueueEntry, remotePayload json.RawMessage, reason string, at time.Time) error {
	conflict := store.SyncConflict{
		ID:            uuid.NewString(),
		Kind:          entry.Kind,
		EntityID:      entry.EntityID,
		LocalPayload:  entry.Payload,
		RemotePayload: remotePayload,
		Reason:        reason,
		DetectedAt:    at,
	}
	if err := st.RecordConflict(ctx, conflict); err != nil {
		return fmt.Errorf("store.RecordConflict > %w", err)
	}
	logger.Warn("sync conflict recorded",
		"kind", entry.Kind,
		"entity", entry.EntityID,
		"reason", reason)
	return fmt.Errorf("%s: %w", reason, store.ErrConflict)
}
