package gateway

import (
	"context"
	"fmt"

	"github.com/offlingo/offlingo/internal/store"
)

// FetchAudio returns the pronunciation clip for a flashcard, downloading
// and caching it on first use so later plays work offline. Returns nil,
// nil when the flashcard has no audio.
func (g *Gateway) FetchAudio(ctx context.Context, flashcardID int64) ([]byte, error) {
	card, err := g.store.GetFlashcard(ctx, flashcardID)
	if err != nil {
		return nil, fmt.Errorf("store.GetFlashcard > %w", err)
	}
	if card == nil {
		return nil, fmt.Errorf("flashcard %d not found locally", flashcardID)
	}
	if card.AudioURL == "" {
		return nil, nil
	}

	blob, err := g.store.GetBlob(ctx, card.AudioURL)
	if err != nil {
		return nil, fmt.Errorf("store.GetBlob > %w", err)
	}
	if blob != nil {
		return blob.Payload, nil
	}
	if !g.monitor.Online() {
		return nil, fmt.Errorf("audio for flashcard %d is not cached: %w", flashcardID, ErrOffline)
	}

	var payload []byte
	err = g.withRetry(ctx, func() error {
		out, err := g.client.FetchAsset(ctx, card.AudioURL)
		if err != nil {
			return err
		}
		payload = out
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("client.FetchAsset > %w", err)
	}
	if err := g.store.PutBlob(ctx, store.CachedBlob{
		URL:         card.AudioURL,
		Payload:     payload,
		FlashcardID: card.ID,
		CachedAt:    g.now().UTC(),
	}); err != nil {
		return nil, fmt.Errorf("store.PutBlob > %w", err)
	}
	g.logger.Debug("audio cached", "flashcard", card.ID, "bytes", len(payload))
	return payload, nil
}
