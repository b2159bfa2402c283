package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/offlingo/offlingo/internal/remote"
	"github.com/offlingo/offlingo/internal/store"
)

// CreateFlashcard validates and stores a new flashcard. Online it is
// created on the server and cached as synced; otherwise it is stored under
// a negative placeholder id and queued. Validation failures and server
// rejections surface immediately and queue nothing.
func (g *Gateway) CreateFlashcard(ctx context.Context, card store.Flashcard) (*store.Flashcard, error) {
	if err := g.validate.Struct(card); err != nil {
		return nil, fmt.Errorf("validate.Struct(flashcard) > %w", err)
	}
	logger := g.logger.With("request", uuid.NewString())

	now := g.now().UTC()
	if card.CreatedAt.IsZero() {
		card.CreatedAt = now
	}
	card.UpdatedAt = now
	if card.RelatedWords == nil {
		card.RelatedWords = store.StringList{}
	}

	if g.monitor.Online() {
		var created *store.Flashcard
		err := g.withRetry(ctx, func() error {
			out, err := g.client.CreateFlashcard(ctx, card)
			if err != nil {
				return err
			}
			created = out
			return nil
		})
		if err == nil {
			created.Synced = true
			if err := g.store.PutFlashcard(ctx, *created); err != nil {
				return nil, fmt.Errorf("store.PutFlashcard > %w", err)
			}
			logger.Debug("flashcard created on server", "id", created.ID)
			return created, nil
		}
		if !remote.IsTransient(err) {
			return nil, fmt.Errorf("client.CreateFlashcard > %w", err)
		}
		logger.Warn("create failed after retries, queueing for sync", "error", err)
	}

	id, err := g.store.NextPlaceholderID(ctx, store.KindFlashcard)
	if err != nil {
		return nil, fmt.Errorf("store.NextPlaceholderID > %w", err)
	}
	card.ID = id
	card.Synced = false
	if err := g.store.PutFlashcard(ctx, card); err != nil {
		return nil, fmt.Errorf("store.PutFlashcard > %w", err)
	}
	if err := g.enqueue(ctx, store.OperationCreate, store.KindFlashcard, id, card, time.Time{}); err != nil {
		return nil, err
	}
	logger.Debug("flashcard queued for creation", "placeholder", id)
	return &card, nil
}

// UpdateFlashcard applies an edit to a cached flashcard. The version the
// edit was based on rides along so a newer server-side copy is detected
// instead of silently overwritten.
func (g *Gateway) UpdateFlashcard(ctx context.Context, card store.Flashcard) (*store.Flashcard, error) {
	if err := g.validate.Struct(card); err != nil {
		return nil, fmt.Errorf("validate.Struct(flashcard) > %w", err)
	}
	existing, err := g.store.GetFlashcard(ctx, card.ID)
	if err != nil {
		return nil, fmt.Errorf("store.GetFlashcard > %w", err)
	}
	if existing == nil {
		return nil, fmt.Errorf("flashcard %d not found locally", card.ID)
	}
	logger := g.logger.With("request", uuid.NewString())

	// A clean cached copy pins the version this edit is based on. A dirty
	// copy means an earlier queued operation already owns the causality,
	// so no base version is recorded and the queue order carries it.
	var baseVersion time.Time
	if existing.Synced {
		baseVersion = existing.UpdatedAt
	}
	card.CreatedAt = existing.CreatedAt
	card.UpdatedAt = g.now().UTC()

	if g.monitor.Online() && card.ID > 0 {
		updated, err := g.pushFlashcardUpdate(ctx, card, baseVersion)
		if err == nil {
			logger.Debug("flashcard updated on server", "id", updated.ID)
			return updated, nil
		}
		if errors.Is(err, store.ErrConflict) || !remote.IsTransient(err) {
			return nil, err
		}
		logger.Warn("update failed after retries, queueing for sync", "error", err)
	}

	card.Synced = false
	if err := g.store.PutFlashcard(ctx, card); err != nil {
		return nil, fmt.Errorf("store.PutFlashcard > %w", err)
	}
	if err := g.enqueue(ctx, store.OperationUpdate, store.KindFlashcard, card.ID, card, baseVersion); err != nil {
		return nil, err
	}
	logger.Debug("flashcard update queued", "id", card.ID)
	return &card, nil
}

// DeleteFlashcard removes a flashcard locally right away, together with
// its cached audio. Deleting a placeholder that never reached the server
// cancels its queued operations instead of queueing a delete.
func (g *Gateway) DeleteFlashcard(ctx context.Context, id int64) error {
	existing, err := g.store.GetFlashcard(ctx, id)
	if err != nil {
		return fmt.Errorf("store.GetFlashcard > %w", err)
	}
	if existing == nil {
		return nil
	}
	logger := g.logger.With("request", uuid.NewString())

	var baseVersion time.Time
	if existing.Synced {
		baseVersion = existing.UpdatedAt
	}
	if err := g.store.DeleteFlashcard(ctx, id); err != nil {
		return fmt.Errorf("store.DeleteFlashcard > %w", err)
	}
	if err := g.store.DeleteBlobsForFlashcard(ctx, id); err != nil {
		return fmt.Errorf("store.DeleteBlobsForFlashcard > %w", err)
	}

	if id < 0 {
		removed, err := g.store.RemoveEntriesForEntity(ctx, store.KindFlashcard, id)
		if err != nil {
			return fmt.Errorf("store.RemoveEntriesForEntity > %w", err)
		}
		logger.Debug("cancelled queued operations for placeholder", "placeholder", id, "removed", removed)
		return nil
	}

	if g.monitor.Online() {
		err := g.withRetry(ctx, func() error {
			return g.client.DeleteFlashcard(ctx, id)
		})
		if err == nil || remote.IsNotFound(err) {
			logger.Debug("flashcard deleted on server", "id", id)
			return nil
		}
		if !remote.IsTransient(err) {
			return fmt.Errorf("client.DeleteFlashcard > %w", err)
		}
		logger.Warn("delete failed after retries, queueing for sync", "error", err)
	}
	return g.enqueue(ctx, store.OperationDelete, store.KindFlashcard, id, nil, baseVersion)
}

// ReviewFlashcard bumps the review counter. The bump lands locally first
// and reaches the server like any other edit.
func (g *Gateway) ReviewFlashcard(ctx context.Context, id int64) (*store.Flashcard, error) {
	card, err := g.store.GetFlashcard(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("store.GetFlashcard > %w", err)
	}
	if card == nil {
		return nil, fmt.Errorf("flashcard %d not found locally", id)
	}
	reviewed := *card
	reviewed.TimesReviewed++
	return g.UpdateFlashcard(ctx, reviewed)
}

// CreateLanguage mirrors CreateFlashcard for languages.
func (g *Gateway) CreateLanguage(ctx context.Context, lang store.Language) (*store.Language, error) {
	if err := g.validate.Struct(lang); err != nil {
		return nil, fmt.Errorf("validate.Struct(language) > %w", err)
	}
	logger := g.logger.With("request", uuid.NewString())

	if g.monitor.Online() {
		var created *store.Language
		err := g.withRetry(ctx, func() error {
			out, err := g.client.CreateLanguage(ctx, lang)
			if err != nil {
				return err
			}
			created = out
			return nil
		})
		if err == nil {
			created.Synced = true
			if err := g.store.PutLanguage(ctx, *created); err != nil {
				return nil, fmt.Errorf("store.PutLanguage > %w", err)
			}
			logger.Debug("language created on server", "id", created.ID)
			return created, nil
		}
		if !remote.IsTransient(err) {
			return nil, fmt.Errorf("client.CreateLanguage > %w", err)
		}
		logger.Warn("create failed after retries, queueing for sync", "error", err)
	}

	id, err := g.store.NextPlaceholderID(ctx, store.KindLanguage)
	if err != nil {
		return nil, fmt.Errorf("store.NextPlaceholderID > %w", err)
	}
	lang.ID = id
	lang.Synced = false
	if err := g.store.PutLanguage(ctx, lang); err != nil {
		return nil, fmt.Errorf("store.PutLanguage > %w", err)
	}
	if err := g.enqueue(ctx, store.OperationCreate, store.KindLanguage, id, lang, time.Time{}); err != nil {
		return nil, err
	}
	logger.Debug("language queued for creation", "placeholder", id)
	return &lang, nil
}

// UpdateLanguage applies an edit to a cached language. Languages carry no
// version, so the only detectable conflict is a remote deletion.
func (g *Gateway) UpdateLanguage(ctx context.Context, lang store.Language) (*store.Language, error) {
	if err := g.validate.Struct(lang); err != nil {
		return nil, fmt.Errorf("validate.Struct(language) > %w", err)
	}
	existing, err := g.store.GetLanguage(ctx, lang.ID)
	if err != nil {
		return nil, fmt.Errorf("store.GetLanguage > %w", err)
	}
	if existing == nil {
		return nil, fmt.Errorf("language %d not found locally", lang.ID)
	}
	logger := g.logger.With("request", uuid.NewString())

	if g.monitor.Online() && lang.ID > 0 {
		var updated *store.Language
		err := g.withRetry(ctx, func() error {
			out, err := g.client.UpdateLanguage(ctx, lang)
			if err != nil {
				return err
			}
			updated = out
			return nil
		})
		if err == nil {
			updated.Synced = true
			if err := g.store.PutLanguage(ctx, *updated); err != nil {
				return nil, fmt.Errorf("store.PutLanguage > %w", err)
			}
			logger.Debug("language updated on server", "id", updated.ID)
			return updated, nil
		}
		if remote.IsNotFound(err) {
			return nil, g.conflictError(ctx, store.KindLanguage, lang.ID, lang, nil, "language deleted remotely")
		}
		if !remote.IsTransient(err) {
			return nil, fmt.Errorf("client.UpdateLanguage > %w", err)
		}
		logger.Warn("update failed after retries, queueing for sync", "error", err)
	}

	lang.Synced = false
	if err := g.store.PutLanguage(ctx, lang); err != nil {
		return nil, fmt.Errorf("store.PutLanguage > %w", err)
	}
	if err := g.enqueue(ctx, store.OperationUpdate, store.KindLanguage, lang.ID, lang, time.Time{}); err != nil {
		return nil, err
	}
	logger.Debug("language update queued", "id", lang.ID)
	return &lang, nil
}

// DeleteLanguage removes a language and its flashcards locally right away.
// The server cascades its own side when the delete reaches it.
func (g *Gateway) DeleteLanguage(ctx context.Context, id int64) error {
	existing, err := g.store.GetLanguage(ctx, id)
	if err != nil {
		return fmt.Errorf("store.GetLanguage > %w", err)
	}
	if existing == nil {
		return nil
	}
	logger := g.logger.With("request", uuid.NewString())

	cards, err := g.store.QueryFlashcards(ctx, store.FlashcardFilter{LanguageID: id})
	if err != nil {
		return fmt.Errorf("store.QueryFlashcards > %w", err)
	}
	for _, card := range cards {
		if err := g.store.DeleteFlashcard(ctx, card.ID); err != nil {
			return fmt.Errorf("store.DeleteFlashcard > %w", err)
		}
		if err := g.store.DeleteBlobsForFlashcard(ctx, card.ID); err != nil {
			return fmt.Errorf("store.DeleteBlobsForFlashcard > %w", err)
		}
	}
	if err := g.store.DeleteLanguage(ctx, id); err != nil {
		return fmt.Errorf("store.DeleteLanguage > %w", err)
	}

	if id < 0 {
		removed, err := g.store.RemoveEntriesForEntity(ctx, store.KindLanguage, id)
		if err != nil {
			return fmt.Errorf("store.RemoveEntriesForEntity > %w", err)
		}
		logger.Debug("cancelled queued operations for placeholder", "placeholder", id, "removed", removed)
		return nil
	}

	if g.monitor.Online() {
		err := g.withRetry(ctx, func() error {
			return g.client.DeleteLanguage(ctx, id)
		})
		if err == nil || remote.IsNotFound(err) {
			logger.Debug("language deleted on server", "id", id)
			return nil
		}
		if !remote.IsTransient(err) {
			return fmt.Errorf("client.DeleteLanguage > %w", err)
		}
		logger.Warn("delete failed after retries, queueing for sync", "error", err)
	}
	return g.enqueue(ctx, store.OperationDelete, store.KindLanguage, id, nil, time.Time{})
}

// pushFlashcardUpdate sends the edit to the server, first checking that
// the server copy still matches the version the edit was based on.
func (g *Gateway) pushFlashcardUpdate(ctx context.Context, card store.Flashcard, baseVersion time.Time) (*store.Flashcard, error) {
	if !baseVersion.IsZero() {
		var current *store.Flashcard
		err := g.withRetry(ctx, func() error {
			out, err := g.client.GetFlashcard(ctx, card.ID)
			if err != nil {
				return err
			}
			current = out
			return nil
		})
		if err != nil {
			if remote.IsNotFound(err) {
				return nil, g.conflictError(ctx, store.KindFlashcard, card.ID, card, nil, "flashcard deleted remotely")
			}
			return nil, fmt.Errorf("client.GetFlashcard > %w", err)
		}
		if current.UpdatedAt.After(baseVersion) {
			return nil, g.conflictError(ctx, store.KindFlashcard, card.ID, card, current, "flashcard changed remotely")
		}
	}

	var updated *store.Flashcard
	err := g.withRetry(ctx, func() error {
		out, err := g.client.UpdateFlashcard(ctx, card)
		if err != nil {
			return err
		}
		updated = out
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("client.UpdateFlashcard > %w", err)
	}
	updated.Synced = true
	if err := g.store.PutFlashcard(ctx, *updated); err != nil {
		return nil, fmt.Errorf("store.PutFlashcard > %w", err)
	}
	return updated, nil
}
