// Package datasync reconciles the local store with the remote backend:
// it pulls the server snapshot at startup and drains the offline queue
// front to back whenever connectivity allows.
package datasync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"github.com/offlingo/offlingo/internal/connectivity"
	"github.com/offlingo/offlingo/internal/remote"
	"github.com/offlingo/offlingo/internal/store"
)

// ErrBadPayload marks a queue entry that cannot be decoded or dispatched.
var ErrBadPayload = errors.New("malformed queue entry")

const (
	DefaultDebounce     = 2 * time.Second
	DefaultTickInterval = 5 * time.Minute
)

// Config controls drain pacing.
type Config struct {
	// Debounce is the minimum interval between queue drains. ForceSync
	// ignores it.
	Debounce time.Duration
	// TickInterval is how often the background scheduler drains the queue.
	TickInterval time.Duration
}

// SyncResult tracks counts for a single queue drain.
type SyncResult struct {
	Synced  int // confirmed by the server and removed from the queue
	Failed  int // rejected permanently and kept as failed
	Skipped int // left pending because the drain halted
}

// SyncStatus is the snapshot surfaced to UI layers.
type SyncStatus struct {
	Online            bool        `json:"online" yaml:"online"`
	PendingOperations int         `json:"pendingOperations" yaml:"pending_operations"`
	FailedOperations  int         `json:"failedOperations" yaml:"failed_operations"`
	LastSyncTime      *time.Time  `json:"lastSyncTime" yaml:"last_sync_time"`
	Stats             store.Stats `json:"stats" yaml:"stats"`
}

// Engine owns the sync queue lifecycle. Writes never wait for it: the
// gateway records operations in the queue and the engine pushes them out
// on reconnect, on a timer, and on demand.
type Engine struct {
	store        store.Store
	client       remote.Client
	monitor      *connectivity.Monitor
	logger       *slog.Logger
	syncers      map[store.EntityKind]entitySyncer
	limiter      *rate.Limiter
	cron         *cron.Cron
	tickInterval time.Duration
	now          func() time.Time

	// mu makes drains single flight. A drain that finds it locked was
	// raced by another trigger and gives up instead of queueing behind it.
	mu sync.Mutex
}

func New(st store.Store, client remote.Client, monitor *connectivity.Monitor, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	e := &Engine{
		store:        st,
		client:       client,
		monitor:      monitor,
		logger:       logger,
		limiter:      rate.NewLimiter(rate.Every(cfg.Debounce), 1),
		cron:         cron.New(),
		tickInterval: cfg.TickInterval,
		now:          time.Now,
	}
	e.syncers = map[store.EntityKind]entitySyncer{
		store.KindFlashcard: &flashcardSyncer{store: st, client: client, logger: logger, now: func() time.Time { return e.now() }},
		store.KindLanguage:  &languageSyncer{store: st, client: client, logger: logger, now: func() time.Time { return e.now() }},
	}
	monitor.Subscribe(func(online bool) {
		if !online {
			return
		}
		if _, err := e.Sync(context.Background()); err != nil {
			e.logger.Warn("sync after reconnect failed", "error", err)
		}
	})
	return e
}

// Init reconciles local data with the server at startup. Languages are
// pulled first so flashcards can be fetched and written per language,
// letting readers see each batch as it lands. Afterwards any operations
// queued during a previous offline session are drained. Pull failures
// degrade to cached data instead of failing startup.
func (e *Engine) Init(ctx context.Context) error {
	if !e.monitor.Check(ctx) {
		e.logger.Info("starting offline, serving cached data")
		return nil
	}

	pending, err := e.store.PendingEntries(ctx)
	if err != nil {
		return fmt.Errorf("store.PendingEntries > %w", err)
	}
	failed, err := e.store.FailedEntries(ctx)
	if err != nil {
		return fmt.Errorf("store.FailedEntries > %w", err)
	}
	dirty := store.DirtyKeys(pending, failed)

	langs, err := e.client.ListLanguages(ctx)
	if err != nil {
		e.logger.Warn("initial language pull failed, serving cached data", "error", err)
		return nil
	}
	if err := e.mergeLanguages(ctx, langs, dirty); err != nil {
		return err
	}
	for _, lang := range langs {
		cards, err := e.client.ListFlashcards(ctx, remote.ListFlashcardsParams{LanguageID: lang.ID})
		if err != nil {
			e.logger.Warn("flashcard pull failed, serving cached data", "language", lang.Code, "error", err)
			return nil
		}
		if err := e.mergeFlashcards(ctx, lang.ID, cards, dirty); err != nil {
			return err
		}
	}
	if err := e.store.SetLastSyncTime(ctx, e.now().UTC()); err != nil {
		return fmt.Errorf("store.SetLastSyncTime > %w", err)
	}

	if _, err := e.ForceSync(ctx); err != nil {
		e.logger.Warn("startup queue drain failed", "error", err)
	}
	return nil
}

// Sync drains the queue. Calls landing inside the debounce window are
// dropped so bursts of writes collapse into one drain. Offline calls are
// no-ops and do not consume the debounce window.
func (e *Engine) Sync(ctx context.Context) (SyncResult, error) {
	if !e.monitor.Online() {
		e.logger.Debug("offline, sync skipped")
		return SyncResult{}, nil
	}
	if !e.limiter.Allow() {
		e.logger.Debug("sync debounced")
		return SyncResult{}, nil
	}
	return e.drain(ctx)
}

// ForceSync drains the queue immediately, bypassing the debounce window.
func (e *Engine) ForceSync(ctx context.Context) (SyncResult, error) {
	return e.drain(ctx)
}

// RetryFailed re-arms failed entries and drains immediately.
func (e *Engine) RetryFailed(ctx context.Context) (SyncResult, error) {
	n, err := e.store.RetryFailedEntries(ctx)
	if err != nil {
		return SyncResult{}, fmt.Errorf("store.RetryFailedEntries > %w", err)
	}
	if n == 0 {
		return SyncResult{}, nil
	}
	e.logger.Info("re-queued failed entries", "count", n)
	return e.ForceSync(ctx)
}

// Status reports connectivity, queue depth and cache counts.
func (e *Engine) Status(ctx context.Context) (SyncStatus, error) {
	stats, err := e.store.Stats(ctx)
	if err != nil {
		return SyncStatus{}, fmt.Errorf("store.Stats > %w", err)
	}
	last, err := e.store.LastSyncTime(ctx)
	if err != nil {
		return SyncStatus{}, fmt.Errorf("store.LastSyncTime > %w", err)
	}
	return SyncStatus{
		Online:            e.monitor.Online(),
		PendingOperations: stats.PendingOperations,
		FailedOperations:  stats.FailedOperations,
		LastSyncTime:      last,
		Stats:             stats,
	}, nil
}

// Start schedules periodic drains until Stop is called.
func (e *Engine) Start() error {
	spec := fmt.Sprintf("@every %s", e.tickInterval)
	if _, err := e.cron.AddFunc(spec, func() {
		if _, err := e.Sync(context.Background()); err != nil {
			e.logger.Error("scheduled sync failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("cron.AddFunc > %w", err)
	}
	e.cron.Start()
	return nil
}

// Stop halts the scheduler and waits for a running drain to finish.
func (e *Engine) Stop() {
	<-e.cron.Stop().Done()
}

func (e *Engine) drain(ctx context.Context) (SyncResult, error) {
	if !e.mu.TryLock() {
		e.logger.Debug("sync already running, skipping")
		return SyncResult{}, nil
	}
	defer e.mu.Unlock()

	if !e.monitor.Online() {
		e.logger.Debug("offline, queue drain skipped")
		return SyncResult{}, nil
	}

	entries, err := e.store.PendingEntries(ctx)
	if err != nil {
		return SyncResult{}, fmt.Errorf("store.PendingEntries > %w", err)
	}
	if len(entries) == 0 {
		return SyncResult{}, nil
	}

	var result SyncResult
	halted := false
	blocked := map[store.EntityKey]struct{}{}
	for i, entry := range entries {
		key := store.EntityKey{Kind: entry.Kind, ID: entry.EntityID}
		if _, ok := blocked[key]; ok {
			// A causally earlier operation on this entity failed, so
			// replaying this one would apply changes out of order.
			if err := e.store.MarkEntryFailed(ctx, entry.ID, "earlier operation on this entity failed"); err != nil {
				return result, fmt.Errorf("store.MarkEntryFailed > %w", err)
			}
			result.Failed++
			continue
		}

		err := e.apply(ctx, entry)
		if err == nil {
			if err := e.store.RemoveQueueEntry(ctx, entry.ID); err != nil {
				return result, fmt.Errorf("store.RemoveQueueEntry > %w", err)
			}
			result.Synced++
			continue
		}

		if errors.Is(err, store.ErrConflict) || errors.Is(err, ErrBadPayload) || !remote.IsTransient(err) {
			e.logger.Warn("queue entry failed permanently",
				"entry", entry.ID,
				"operation", entry.Operation,
				"kind", entry.Kind,
				"entity", entry.EntityID,
				"error", err)
			if err := e.store.MarkEntryFailed(ctx, entry.ID, err.Error()); err != nil {
				return result, fmt.Errorf("store.MarkEntryFailed > %w", err)
			}
			blocked[key] = struct{}{}
			result.Failed++
			continue
		}

		// Transient: the server is unreachable or shedding load, so later
		// entries would fail the same way. Leave the rest pending.
		e.logger.Warn("queue drain halted", "entry", entry.ID, "error", err)
		result.Skipped = len(entries) - i
		halted = true
		break
	}

	if !halted {
		if err := e.store.SetLastSyncTime(ctx, e.now().UTC()); err != nil {
			return result, fmt.Errorf("store.SetLastSyncTime > %w", err)
		}
	}
	e.logger.Info("queue drain finished",
		"synced", result.Synced,
		"failed", result.Failed,
		"skipped", result.Skipped)
	return result, nil
}

func (e *Engine) apply(ctx context.Context, entry store.SyncQueueEntry) error {
	syncer, ok := e.syncers[entry.Kind]
	if !ok {
		return fmt.Errorf("%w: unknown entity kind %q", ErrBadPayload, entry.Kind)
	}
	switch entry.Operation {
	case store.OperationCreate:
		return syncer.create(ctx, entry)
	case store.OperationUpdate:
		return syncer.update(ctx, entry)
	case store.OperationDelete:
		return syncer.remove(ctx, entry)
	default:
		return fmt.Errorf("%w: unknown operation %q", ErrBadPayload, entry.Operation)
	}
}

func (e *Engine) mergeLanguages(ctx context.Context, fresh []store.Language, dirty map[store.EntityKey]struct{}) error {
	existing, err := e.store.ListLanguages(ctx)
	if err != nil {
		return fmt.Errorf("store.ListLanguages > %w", err)
	}
	if _, err := store.MergeLanguages(ctx, e.store, existing, fresh, dirty); err != nil {
		return err
	}
	return nil
}

func (e *Engine) mergeFlashcards(ctx context.Context, languageID int64, fresh []store.Flashcard, dirty map[store.EntityKey]struct{}) error {
	existing, err := e.store.QueryFlashcards(ctx, store.FlashcardFilter{LanguageID: languageID})
	if err != nil {
		return fmt.Errorf("store.QueryFlashcards > %w", err)
	}
	if _, err := store.MergeFlashcards(ctx, e.store, existing, fresh, dirty); err != nil {
		return err
	}
	return nil
}
