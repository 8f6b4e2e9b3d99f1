// Package loader orchestrates concurrent per-channel "fetch more" operations
// against the shared message store and decides when the collection is
// exhausted across all channels collectively.
package loader

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/commsync/commsync/internal/channels"
	"github.com/commsync/commsync/internal/models"
	"github.com/commsync/commsync/internal/store"
)

// ErrLoadInProgress is returned when LoadMore is called while a previous
// invocation is still running. In-flight fetches are not cancelled;
// re-entry is simply rejected.
var ErrLoadInProgress = errors.New("load-more already in progress")

// exhaustionThreshold is the number of consecutive zero-message loads after
// which the loader reports exhaustion.
const exhaustionThreshold = 3

// defaultPageSize is the per-channel page size for a single load-more call.
const defaultPageSize = 25

// StateStore persists the consecutive-empty counter so it survives a
// restart.
type StateStore interface {
	GetEmptyStreak(ctx context.Context, userID string) (int, error)
	SetEmptyStreak(ctx context.Context, userID string, streak int) error
}

// Result is the outcome of one LoadMore call.
type Result struct {
	Loaded    int  `json:"loaded"`
	Exhausted bool `json:"exhausted"`
}

// Loader fans one fetch-more call out to every registered source, merges the
// results into the shared store, and tracks exhaustion.
type Loader struct {
	userID   string
	store    *store.Store
	state    StateStore
	pageSize int

	mu      sync.Mutex
	sources []channels.Source
	loading bool
}

// New creates a Loader for one user over the given store. state may not be
// nil; use an in-memory implementation in tests.
func New(userID string, st *store.Store, state StateStore) *Loader {
	return &Loader{
		userID:   userID,
		store:    st,
		state:    state,
		pageSize: defaultPageSize,
	}
}

// SetSources replaces the registered sources, typically after linked
// accounts change.
func (l *Loader) SetSources(sources []channels.Source) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sources = sources
}

// LoadMore issues one fetch-more call per source concurrently, waits for all
// of them to settle, and merges the results. A failing source is logged and
// does not abort its siblings; cursors of failed sources stay put because
// each source only advances on success.
//
// Exhaustion: after three consecutive calls that load zero new messages the
// result reports Exhausted and the persisted counter resets, allowing
// retry. A call that loads anything resets the counter.
func (l *Loader) LoadMore(ctx context.Context) (Result, error) {
	l.mu.Lock()
	if l.loading {
		l.mu.Unlock()
		return Result{}, ErrLoadInProgress
	}
	l.loading = true
	sources := make([]channels.Source, len(l.sources))
	copy(sources, l.sources)
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.loading = false
		l.mu.Unlock()
	}()

	oldCount := l.store.Len()

	var wg sync.WaitGroup
	batches := make([][]*models.Message, len(sources))
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src channels.Source) {
			defer wg.Done()
			msgs, err := src.FetchOlder(ctx, l.pageSize)
			if err != nil {
				log.Printf("Loader: %s fetch failed for account %q: %v", src.Channel(), src.AccountID(), err)
				return
			}
			batches[i] = msgs
		}(i, src)
	}
	wg.Wait()

	for _, batch := range batches {
		if len(batch) > 0 {
			l.store.Merge(batch)
		}
	}

	loaded := l.store.Len() - oldCount
	exhausted := l.advanceEmptyStreak(ctx, loaded)

	return Result{Loaded: loaded, Exhausted: exhausted}, nil
}

// advanceEmptyStreak updates the persisted consecutive-empty counter and
// reports whether the exhaustion threshold was hit. State-store failures are
// logged and degrade to an in-call default rather than failing the load.
func (l *Loader) advanceEmptyStreak(ctx context.Context, loaded int) bool {
	if loaded > 0 {
		if err := l.state.SetEmptyStreak(ctx, l.userID, 0); err != nil {
			log.Printf("Loader: failed to reset empty streak: %v", err)
		}
		return false
	}

	streak, err := l.state.GetEmptyStreak(ctx, l.userID)
	if err != nil {
		log.Printf("Loader: failed to read empty streak: %v", err)
		streak = 0
	}
	streak++

	if streak >= exhaustionThreshold {
		// Report exhaustion once, then reset so the user can retry.
		if err := l.state.SetEmptyStreak(ctx, l.userID, 0); err != nil {
			log.Printf("Loader: failed to reset empty streak: %v", err)
		}
		return true
	}

	if err := l.state.SetEmptyStreak(ctx, l.userID, streak); err != nil {
		log.Printf("Loader: failed to save empty streak: %v", err)
	}
	return false
}
