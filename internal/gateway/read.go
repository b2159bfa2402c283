package gateway

import (
	"context"
	"fmt"

	"github.com/offlingo/offlingo/internal/remote"
	"github.com/offlingo/offlingo/internal/store"
)

// ReadOptions controls cache behavior for a single read.
type ReadOptions struct {
	// ForceFresh asks the server before answering and falls back to the
	// cache when the server cannot be reached.
	ForceFresh bool
}

// GetFlashcard returns the cached record immediately and refreshes it in
// the background. A cache miss while online falls through to the server.
// Returns nil, nil when the record does not exist anywhere reachable.
func (g *Gateway) GetFlashcard(ctx context.Context, id int64, opts ReadOptions) (*store.Flashcard, error) {
	if opts.ForceFresh && g.monitor.Online() {
		card, err := g.pullFlashcard(ctx, id)
		if err == nil {
			return card, nil
		}
		if !remote.IsTransient(err) {
			return nil, err
		}
		g.logger.Warn("fresh read failed, serving cached copy", "flashcard", id, "error", err)
	}

	card, err := g.store.GetFlashcard(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("store.GetFlashcard > %w", err)
	}
	g.logger.Debug("flashcard read", "flashcard", id, "cache_hit", card != nil, "online", g.monitor.Online())
	if card == nil {
		if !g.monitor.Online() {
			return nil, nil
		}
		return g.pullFlashcard(ctx, id)
	}
	if !opts.ForceFresh {
		g.refreshFlashcard(card.ID)
	}
	return card, nil
}

// QueryFlashcards answers from the cache and refreshes the matching slice
// of the cache in the background. The local store is seeded at startup, so
// an empty result means the collection is empty, not cold.
func (g *Gateway) QueryFlashcards(ctx context.Context, filter store.FlashcardFilter, opts ReadOptions) ([]store.Flashcard, error) {
	if opts.ForceFresh && g.monitor.Online() {
		if err := g.pullFlashcards(ctx, filter); err != nil {
			if !remote.IsTransient(err) {
				return nil, err
			}
			g.logger.Warn("fresh query failed, serving cached data", "error", err)
		}
	}

	cards, err := g.store.QueryFlashcards(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("store.QueryFlashcards > %w", err)
	}
	g.logger.Debug("flashcard query served", "cached", len(cards), "online", g.monitor.Online())
	if !opts.ForceFresh {
		g.refreshFlashcards(filter)
	}
	return cards, nil
}

// ListLanguages answers from the cache and refreshes in the background.
func (g *Gateway) ListLanguages(ctx context.Context, opts ReadOptions) ([]store.Language, error) {
	if opts.ForceFresh && g.monitor.Online() {
		if err := g.pullLanguages(ctx); err != nil {
			if !remote.IsTransient(err) {
				return nil, err
			}
			g.logger.Warn("fresh language list failed, serving cached data", "error", err)
		}
	}

	langs, err := g.store.ListLanguages(ctx)
	if err != nil {
		return nil, fmt.Errorf("store.ListLanguages > %w", err)
	}
	g.logger.Debug("language list served", "cached", len(langs), "online", g.monitor.Online())
	if !opts.ForceFresh {
		g.refreshLanguages()
	}
	return langs, nil
}

// pullFlashcard fetches one record and reconciles the cache with it. A 404
// drops a clean cached copy and reports the record as absent. The returned
// record is the cache's view after the merge, so a queued local edit keeps
// winning even on a fresh read.
func (g *Gateway) pullFlashcard(ctx context.Context, id int64) (*store.Flashcard, error) {
	fresh, err := g.client.GetFlashcard(ctx, id)
	if err != nil {
		if remote.IsNotFound(err) {
			if err := g.dropCleanFlashcard(ctx, id); err != nil {
				return nil, err
			}
			return nil, nil
		}
		return nil, fmt.Errorf("client.GetFlashcard > %w", err)
	}

	existing, err := g.store.GetFlashcard(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("store.GetFlashcard > %w", err)
	}
	var cached []store.Flashcard
	if existing != nil {
		cached = append(cached, *existing)
	}
	dirty, err := g.dirtyKeys(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := store.MergeFlashcards(ctx, g.store, cached, []store.Flashcard{*fresh}, dirty); err != nil {
		return nil, err
	}

	merged, err := g.store.GetFlashcard(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("store.GetFlashcard > %w", err)
	}
	return merged, nil
}

func (g *Gateway) pullFlashcards(ctx context.Context, filter store.FlashcardFilter) error {
	fresh, err := g.client.ListFlashcards(ctx, remote.ListFlashcardsParams{
		LanguageID: filter.LanguageID,
		Search:     filter.Search,
	})
	if err != nil {
		return fmt.Errorf("client.ListFlashcards > %w", err)
	}
	existing, err := g.store.QueryFlashcards(ctx, filter)
	if err != nil {
		return fmt.Errorf("store.QueryFlashcards > %w", err)
	}
	dirty, err := g.dirtyKeys(ctx)
	if err != nil {
		return err
	}
	written, err := store.MergeFlashcards(ctx, g.store, existing, fresh, dirty)
	if err != nil {
		return err
	}
	if written > 0 {
		g.logger.Debug("flashcards refreshed", "written", written)
	}
	return nil
}

func (g *Gateway) pullLanguages(ctx context.Context) error {
	fresh, err := g.client.ListLanguages(ctx)
	if err != nil {
		return fmt.Errorf("client.ListLanguages > %w", err)
	}
	existing, err := g.store.ListLanguages(ctx)
	if err != nil {
		return fmt.Errorf("store.ListLanguages > %w", err)
	}
	dirty, err := g.dirtyKeys(ctx)
	if err != nil {
		return err
	}
	written, err := store.MergeLanguages(ctx, g.store, existing, fresh, dirty)
	if err != nil {
		return err
	}
	if written > 0 {
		g.logger.Debug("languages refreshed", "written", written)
	}
	return nil
}

// dropCleanFlashcard removes a cached record the server no longer has,
// unless a local operation on it is still queued.
func (g *Gateway) dropCleanFlashcard(ctx context.Context, id int64) error {
	card, err := g.store.GetFlashcard(ctx, id)
	if err != nil {
		return fmt.Errorf("store.GetFlashcard > %w", err)
	}
	if card == nil || !card.Synced {
		return nil
	}
	if err := g.store.DeleteFlashcard(ctx, id); err != nil {
		return fmt.Errorf("store.DeleteFlashcard > %w", err)
	}
	if err := g.store.DeleteBlobsForFlashcard(ctx, id); err != nil {
		return fmt.Errorf("store.DeleteBlobsForFlashcard > %w", err)
	}
	g.logger.Debug("dropped flashcard deleted remotely", "flashcard", id)
	return nil
}

func (g *Gateway) refreshFlashcard(id int64) {
	if !g.monitor.Online() {
		return
	}
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), g.refreshTimeout)
		defer cancel()
		if _, err := g.pullFlashcard(ctx, id); err != nil {
			g.logger.Debug("background refresh failed", "flashcard", id, "error", err)
		}
	}()
}

func (g *Gateway) refreshFlashcards(filter store.FlashcardFilter) {
	if !g.monitor.Online() {
		return
	}
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), g.refreshTimeout)
		defer cancel()
		if err := g.pullFlashcards(ctx, filter); err != nil {
			g.logger.Debug("background refresh failed", "error", err)
		}
	}()
}

func (g *Gateway) refreshLanguages() {
	if !g.monitor.Online() {
		return
	}
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), g.refreshTimeout)
		defer cancel()
		if err := g.pullLanguages(ctx); err != nil {
			g.logger.Debug("background refresh failed", "error", err)
		}
	}()
}
