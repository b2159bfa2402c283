// Package gateway is the single entry point for application reads and
// writes. Reads answer from the local store and refresh in the background;
// writes go to the server when possible and fall back to an optimistic
// local write plus a queued operation when it is not.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/offlingo/offlingo/internal/connectivity"
	"github.com/offlingo/offlingo/internal/datasync"
	"github.com/offlingo/offlingo/internal/remote"
	"github.com/offlingo/offlingo/internal/store"
)

// ErrOffline reports an operation that needs the server while no
// connection is available and nothing cached can answer it.
var ErrOffline = errors.New("offline")

const (
	DefaultRetryAttempts  = 3
	DefaultRetryDelay     = 500 * time.Millisecond
	DefaultRefreshTimeout = 10 * time.Second
)

// Config controls retry and refresh behavior.
type Config struct {
	// RetryAttempts is the total number of tries per remote write.
	RetryAttempts uint
	// RetryDelay is the wait before the first retry. Each further retry
	// waits one RetryDelay more than the previous one.
	RetryDelay time.Duration
	// RefreshTimeout bounds one background refresh.
	RefreshTimeout time.Duration
}

// SyncTrigger nudges the sync engine after a write lands in the queue.
// The engine's debounce collapses bursts of nudges into one drain.
type SyncTrigger interface {
	Sync(ctx context.Context) (datasync.SyncResult, error)
}

type Gateway struct {
	store   store.Store
	client  remote.Client
	monitor *connectivity.Monitor
	trigger SyncTrigger
	logger  *slog.Logger

	validate       *validator.Validate
	retryAttempts  uint
	retryDelay     time.Duration
	refreshTimeout time.Duration
	now            func() time.Time

	// wg tracks background refreshes and sync nudges so shutdown and
	// tests can wait for them.
	wg sync.WaitGroup
}

func New(st store.Store, client remote.Client, monitor *connectivity.Monitor, trigger SyncTrigger, cfg Config, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = DefaultRetryAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = DefaultRefreshTimeout
	}
	return &Gateway{
		store:          st,
		client:         client,
		monitor:        monitor,
		trigger:        trigger,
		logger:         logger,
		validate:       validator.New(),
		retryAttempts:  cfg.RetryAttempts,
		retryDelay:     cfg.RetryDelay,
		refreshTimeout: cfg.RefreshTimeout,
		now:            time.Now,
	}
}

// Wait blocks until background work started by this gateway has finished.
func (g *Gateway) Wait() {
	g.wg.Wait()
}

// ClearCache wipes every locally stored record, queue entry and blob.
func (g *Gateway) ClearCache(ctx context.Context) error {
	if err := g.store.ClearAll(ctx); err != nil {
		return fmt.Errorf("store.ClearAll > %w", err)
	}
	g.logger.Info("local cache cleared")
	return nil
}

// ListConflicts returns recorded sync conflicts, newest first.
func (g *Gateway) ListConflicts(ctx context.Context) ([]store.SyncConflict, error) {
	conflicts, err := g.store.ListConflicts(ctx)
	if err != nil {
		return nil, fmt.Errorf("store.ListConflicts > %w", err)
	}
	return conflicts, nil
}

// withRetry runs fn up to retryAttempts times with a linearly growing
// delay. Errors the server will keep producing, like validation
// rejections, abort immediately. The last error comes back unwrapped so
// callers can classify it.
func (g *Gateway) withRetry(ctx context.Context, fn func() error) error {
	return retry.Do(
		func() error {
			err := fn()
			if err != nil && !remote.IsTransient(err) {
				return retry.Unrecoverable(err)
			}
			return err
		},
		retry.Context(ctx),
		retry.Attempts(g.retryAttempts),
		retry.LastErrorOnly(true),
		retry.DelayType(func(n uint, err error, config *retry.Config) time.Duration {
			return g.retryDelay * time.Duration(n+1)
		}),
	)
}

func (g *Gateway) dirtyKeys(ctx context.Context) (map[store.EntityKey]struct{}, error) {
	pending, err := g.store.PendingEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("store.PendingEntries > %w", err)
	}
	failed, err := g.store.FailedEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("store.FailedEntries > %w", err)
	}
	return store.DirtyKeys(pending, failed), nil
}

func (g *Gateway) enqueue(ctx context.Context, op store.Operation, kind store.EntityKind, entityID int64, payload any, baseVersion time.Time) error {
	var body json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("json.Marshal(%s) > %w", kind, err)
		}
		body = b
	}
	entry := store.SyncQueueEntry{
		Operation:   op,
		Kind:        kind,
		EntityID:    entityID,
		Payload:     body,
		BaseVersion: baseVersion,
	}
	if err := g.store.Enqueue(ctx, &entry); err != nil {
		return fmt.Errorf("store.Enqueue > %w", err)
	}
	g.requestSync()
	return nil
}

func (g *Gateway) requestSync() {
	if g.trigger == nil {
		return
	}
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		if _, err := g.trigger.Sync(context.Background()); err != nil {
			g.logger.Debug("background sync failed", "error", err)
		}
	}()
}

// conflictError records the divergence in the conflict log and returns an
// error wrapping store.ErrConflict.
func (g *Gateway) conflictError(ctx context.Context, kind store.EntityKind, entityID int64, local, remoteCopy any, reason string) error {
	localPayload, err := json.Marshal(local)
	if err != nil {
		return fmt.Errorf("json.Marshal(%s) > %w", kind, err)
	}
	var remotePayload json.RawMessage
	if remoteCopy != nil {
		b, err := json.Marshal(remoteCopy)
		if err != nil {
			return fmt.Errorf("json.Marshal(%s) > %w", kind, err)
		}
		remotePayload = b
	}
	conflict := store.SyncConflict{
		ID:            uuid.NewString(),
		Kind:          kind,
		EntityID:      entityID,
		LocalPayload:  localPayload,
		RemotePayload: remotePayload,
		Reason:        reason,
		DetectedAt:    g.now().UTC(),
	}
	if err := g.store.RecordConflict(ctx, conflict); err != nil {
		return fmt.Errorf("store.RecordConflict > %w", err)
	}
	g.logger.Warn("edit conflicts with server copy", "kind", kind, "entity", entityID, "reason", reason)
	return fmt.Errorf("%s: %w", reason, store.ErrConflict)
}
