package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is a goroutine-safe in-memory Store. It backs the degraded
// session when the SQLite store cannot be opened, and tests.
type MemoryStore struct {
	mu          sync.RWMutex
	flashcards  map[int64]Flashcard
	languages   map[int64]Language
	queue       []SyncQueueEntry
	blobs       map[string]CachedBlob
	conflicts   []SyncConflict
	lastSync    *time.Time
	nextQueueID int64
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		flashcards:  make(map[int64]Flashcard),
		languages:   make(map[int64]Language),
		blobs:       make(map[string]CachedBlob),
		nextQueueID: 1,
	}
}

// GetFlashcard returns a flashcard by id, or nil if not found.
func (s *MemoryStore) GetFlashcard(_ context.Context, id int64) (*Flashcard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	card, ok := s.flashcards[id]
	if !ok {
		return nil, nil
	}
	return &card, nil
}

// ListFlashcards returns all flashcards ordered by id.
func (s *MemoryStore) ListFlashcards(_ context.Context) ([]Flashcard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cards := make([]Flashcard, 0, len(s.flashcards))
	for _, card := range s.flashcards {
		cards = append(cards, card)
	}
	sort.Slice(cards, func(i, j int) bool { return cards[i].ID < cards[j].ID })
	return cards, nil
}

// QueryFlashcards returns flashcards matching the filter, ordered by word.
func (s *MemoryStore) QueryFlashcards(_ context.Context, filter FlashcardFilter) ([]Flashcard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	search := strings.ToLower(filter.Search)
	var cards []Flashcard
	for _, card := range s.flashcards {
		if filter.LanguageID != 0 && card.LanguageID != filter.LanguageID {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(card.WordOrPhrase), search) &&
			!strings.Contains(strings.ToLower(card.Definition), search) {
			continue
		}
		cards = append(cards, card)
	}
	sort.Slice(cards, func(i, j int) bool {
		if cards[i].WordOrPhrase != cards[j].WordOrPhrase {
			return cards[i].WordOrPhrase < cards[j].WordOrPhrase
		}
		return cards[i].ID < cards[j].ID
	})
	return cards, nil
}

// PutFlashcard inserts or updates a flashcard keyed by its id.
func (s *MemoryStore) PutFlashcard(_ context.Context, card Flashcard) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flashcards[card.ID] = card
	return nil
}

// DeleteFlashcard removes a flashcard by id.
func (s *MemoryStore) DeleteFlashcard(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.flashcards, id)
	return nil
}

// GetLanguage returns a language by id, or nil if not found.
func (s *MemoryStore) GetLanguage(_ context.Context, id int64) (*Language, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lang, ok := s.languages[id]
	if !ok {
		return nil, nil
	}
	return &lang, nil
}

// ListLanguages returns all languages ordered by name.
func (s *MemoryStore) ListLanguages(_ context.Context) ([]Language, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	langs := make([]Language, 0, len(s.languages))
	for _, lang := range s.languages {
		langs = append(langs, lang)
	}
	sort.Slice(langs, func(i, j int) bool {
		if langs[i].Name != langs[j].Name {
			return langs[i].Name < langs[j].Name
		}
		return langs[i].ID < langs[j].ID
	})
	return langs, nil
}

// PutLanguage inserts or updates a language keyed by its id.
func (s *MemoryStore) PutLanguage(_ context.Context, lang Language) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.languages[lang.ID] = lang
	return nil
}

// DeleteLanguage removes a language by id.
func (s *MemoryStore) DeleteLanguage(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.languages, id)
	return nil
}

// NextPlaceholderID returns the next free negative placeholder id for the kind.
func (s *MemoryStore) NextPlaceholderID(_ context.Context, kind EntityKind) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var lowest int64
	switch kind {
	case KindLanguage:
		for id := range s.languages {
			if id < lowest {
				lowest = id
			}
		}
	default:
		for id := range s.flashcards {
			if id < lowest {
				lowest = id
			}
		}
	}
	for _, entry := range s.queue {
		if entry.Kind == kind && entry.EntityID < lowest {
			lowest = entry.EntityID
		}
	}
	return lowest - 1, nil
}

// RemapFlashcardID rewrites blob and queue references from a placeholder id to
// the server-assigned id.
func (s *MemoryStore) RemapFlashcardID(_ context.Context, oldID, newID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for url, blob := range s.blobs {
		if blob.FlashcardID == oldID {
			blob.FlashcardID = newID
			s.blobs[url] = blob
		}
	}
	for i, entry := range s.queue {
		if entry.Kind != KindFlashcard || entry.EntityID != oldID {
			continue
		}
		payload, err := remapFlashcardPayload(entry.Payload, newID, 0, 0)
		if err != nil {
			return fmt.Errorf("remapFlashcardPayload(entry %d) > %w", entry.ID, err)
		}
		s.queue[i].EntityID = newID
		if payload != nil {
			s.queue[i].Payload = payload
		}
	}
	return nil
}

// RemapLanguageID rewrites the language references held by flashcards and
// queue entries from a placeholder id to the server-assigned id.
func (s *MemoryStore) RemapLanguageID(_ context.Context, oldID, newID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, card := range s.flashcards {
		if card.LanguageID == oldID {
			card.LanguageID = newID
			s.flashcards[id] = card
		}
	}
	for i, entry := range s.queue {
		switch entry.Kind {
		case KindLanguage:
			if entry.EntityID != oldID {
				continue
			}
			payload, err := remapLanguagePayload(entry.Payload, newID)
			if err != nil {
				return fmt.Errorf("remapLanguagePayload(entry %d) > %w", entry.ID, err)
			}
			s.queue[i].EntityID = newID
			s.queue[i].Payload = payload
		case KindFlashcard:
			payload, err := remapFlashcardPayload(entry.Payload, 0, oldID, newID)
			if err != nil {
				return fmt.Errorf("remapFlashcardPayload(entry %d) > %w", entry.ID, err)
			}
			if payload != nil {
				s.queue[i].Payload = payload
			}
		}
	}
	return nil
}

// Enqueue appends a pending entry to the sync queue, assigning its id and
// enqueue time.
func (s *MemoryStore) Enqueue(_ context.Context, entry *SyncQueueEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.EnqueuedAt.IsZero() {
		entry.EnqueuedAt = time.Now().UTC()
	}
	entry.Status = EntryStatusPending
	entry.ID = s.nextQueueID
	s.nextQueueID++
	s.queue = append(s.queue, *entry)
	return nil
}

// PendingEntries returns pending queue entries in FIFO order without removing them.
func (s *MemoryStore) PendingEntries(_ context.Context) ([]SyncQueueEntry, error) {
	return s.entriesByStatus(EntryStatusPending), nil
}

// FailedEntries returns dead-lettered queue entries in FIFO order.
func (s *MemoryStore) FailedEntries(_ context.Context) ([]SyncQueueEntry, error) {
	return s.entriesByStatus(EntryStatusFailed), nil
}

func (s *MemoryStore) entriesByStatus(status EntryStatus) []SyncQueueEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var entries []SyncQueueEntry
	for _, entry := range s.queue {
		if entry.Status == status {
			entries = append(entries, entry)
		}
	}
	return entries
}

// RemoveQueueEntry deletes a queue entry after its remote operation confirmed.
func (s *MemoryStore) RemoveQueueEntry(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, entry := range s.queue {
		if entry.ID == id {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *MemoryStore) RemoveEntriesForEntity(_ context.Context, kind EntityKind, entityID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.queue[:0]
	removed := 0
	for _, entry := range s.queue {
		if entry.Kind == kind && entry.EntityID == entityID {
			removed++
			continue
		}
		kept = append(kept, entry)
	}
	s.queue = kept
	return removed, nil
}

// MarkEntryFailed dead-letters a queue entry with the failure reason.
func (s *MemoryStore) MarkEntryFailed(_ context.Context, id int64, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, entry := range s.queue {
		if entry.ID == id {
			s.queue[i].Status = EntryStatusFailed
			s.queue[i].FailReason = reason
			return nil
		}
	}
	return nil
}

// RetryFailedEntries flips failed entries back to pending.
func (s *MemoryStore) RetryFailedEntries(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for i, entry := range s.queue {
		if entry.Status == EntryStatusFailed {
			s.queue[i].Status = EntryStatusPending
			s.queue[i].FailReason = ""
			count++
		}
	}
	return count, nil
}

// PutBlob inserts or replaces a cached blob keyed by URL.
func (s *MemoryStore) PutBlob(_ context.Context, blob CachedBlob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if blob.CachedAt.IsZero() {
		blob.CachedAt = time.Now().UTC()
	}
	s.blobs[blob.URL] = blob
	return nil
}

// GetBlob returns a cached blob by URL, or nil on a cache miss.
func (s *MemoryStore) GetBlob(_ context.Context, url string) (*CachedBlob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	blob, ok := s.blobs[url]
	if !ok {
		return nil, nil
	}
	return &blob, nil
}

// DeleteBlobsForFlashcard removes all cached blobs belonging to a flashcard.
func (s *MemoryStore) DeleteBlobsForFlashcard(_ context.Context, flashcardID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for url, blob := range s.blobs {
		if blob.FlashcardID == flashcardID {
			delete(s.blobs, url)
		}
	}
	return nil
}

// RecordConflict stores a detected sync conflict.
func (s *MemoryStore) RecordConflict(_ context.Context, conflict SyncConflict) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conflict.DetectedAt.IsZero() {
		conflict.DetectedAt = time.Now().UTC()
	}
	s.conflicts = append(s.conflicts, conflict)
	return nil
}

// ListConflicts returns all recorded conflicts, newest first.
func (s *MemoryStore) ListConflicts(_ context.Context) ([]SyncConflict, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conflicts := make([]SyncConflict, len(s.conflicts))
	copy(conflicts, s.conflicts)
	sort.SliceStable(conflicts, func(i, j int) bool {
		return conflicts[i].DetectedAt.After(conflicts[j].DetectedAt)
	})
	return conflicts, nil
}

// LastSyncTime returns the time of the last completed drain, or nil.
func (s *MemoryStore) LastSyncTime(_ context.Context) (*time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastSync == nil {
		return nil, nil
	}
	t := *s.lastSync
	return &t, nil
}

// SetLastSyncTime records the time of the last completed drain.
func (s *MemoryStore) SetLastSyncTime(_ context.Context, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t = t.UTC()
	s.lastSync = &t
	return nil
}

// Stats returns aggregate counts for the status surface.
func (s *MemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := Stats{
		FlashcardsCount: len(s.flashcards),
		LanguagesCount:  len(s.languages),
		CachedBlobs:     len(s.blobs),
	}
	for _, entry := range s.queue {
		switch entry.Status {
		case EntryStatusPending:
			stats.PendingOperations++
		case EntryStatusFailed:
			stats.FailedOperations++
		}
	}
	return stats, nil
}

// ClearAll empties every collection, including the sync queue and metadata.
func (s *MemoryStore) ClearAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flashcards = make(map[int64]Flashcard)
	s.languages = make(map[int64]Language)
	s.queue = nil
	s.blobs = make(map[string]CachedBlob)
	s.conflicts = nil
	s.lastSync = nil
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
