package store

import (
	"context"
	"fmt"
	"slices"
)

// DiffFlashcards compares fresh server records against the cached copies and
// returns only the records that are new or changed, so an unchanged refresh
// writes nothing. Records whose cached copy is unsynced are skipped: the local
// copy carries an unconfirmed write and must not be clobbered by a stale
// server read.
func DiffFlashcards(existing, fresh []Flashcard) []Flashcard {
	byID := make(map[int64]Flashcard, len(existing))
	for _, card := range existing {
		byID[card.ID] = card
	}

	var changed []Flashcard
	for _, card := range fresh {
		current, ok := byID[card.ID]
		if ok && !current.Synced {
			continue
		}
		if ok && flashcardsEqual(current, card) {
			continue
		}
		changed = append(changed, card)
	}
	return changed
}

// DiffLanguages is DiffFlashcards for languages.
func DiffLanguages(existing, fresh []Language) []Language {
	byID := make(map[int64]Language, len(existing))
	for _, lang := range existing {
		byID[lang.ID] = lang
	}

	var changed []Language
	for _, lang := range fresh {
		current, ok := byID[lang.ID]
		if ok && !current.Synced {
			continue
		}
		if ok && current.Name == lang.Name && current.Code == lang.Code {
			continue
		}
		changed = append(changed, lang)
	}
	return changed
}

// MergeFlashcards writes the changed subset of fresh into st. Records with a
// queued local operation are skipped entirely, so a pull can never resurrect
// a locally deleted record or clobber a queued edit. Returns the number of
// records written.
func MergeFlashcards(ctx context.Context, st Store, existing, fresh []Flashcard, dirty map[EntityKey]struct{}) (int, error) {
	clean := make([]Flashcard, 0, len(fresh))
	for _, card := range fresh {
		if _, ok := dirty[EntityKey{Kind: KindFlashcard, ID: card.ID}]; ok {
			continue
		}
		card.Synced = true
		clean = append(clean, card)
	}

	written := 0
	for _, card := range DiffFlashcards(existing, clean) {
		if err := st.PutFlashcard(ctx, card); err != nil {
			return written, fmt.Errorf("store.PutFlashcard > %w", err)
		}
		written++
	}
	return written, nil
}

// MergeLanguages is MergeFlashcards for languages.
func MergeLanguages(ctx context.Context, st Store, existing, fresh []Language, dirty map[EntityKey]struct{}) (int, error) {
	clean := make([]Language, 0, len(fresh))
	for _, lang := range fresh {
		if _, ok := dirty[EntityKey{Kind: KindLanguage, ID: lang.ID}]; ok {
			continue
		}
		lang.Synced = true
		clean = append(clean, lang)
	}

	written := 0
	for _, lang := range DiffLanguages(existing, clean) {
		if err := st.PutLanguage(ctx, lang); err != nil {
			return written, fmt.Errorf("store.PutLanguage > %w", err)
		}
		written++
	}
	return written, nil
}

// flashcardsEqual compares content fields. Synced is local-only state and is
// ignored; timestamps compare with time.Equal to ignore monotonic clocks.
func flashcardsEqual(a, b Flashcard) bool {
	return a.ID == b.ID &&
		a.LanguageID == b.LanguageID &&
		a.WordOrPhrase == b.WordOrPhrase &&
		a.Definition == b.Definition &&
		a.Etymology == b.Etymology &&
		a.EnglishCognates == b.EnglishCognates &&
		slices.Equal(a.RelatedWords, b.RelatedWords) &&
		a.ImageURL == b.ImageURL &&
		a.ImageDescription == b.ImageDescription &&
		a.AudioURL == b.AudioURL &&
		a.TimesReviewed == b.TimesReviewed &&
		a.CreatedAt.Equal(b.CreatedAt) &&
		a.UpdatedAt.Equal(b.UpdatedAt)
}
