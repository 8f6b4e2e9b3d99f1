package loader

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/commsync/commsync/internal/channels"
	"github.com/commsync/commsync/internal/models"
	"github.com/commsync/commsync/internal/store"
)

// memState is an in-memory StateStore for tests.
type memState struct {
	mu      sync.Mutex
	streaks map[string]int
}

func newMemState() *memState {
	return &memState{streaks: make(map[string]int)}
}

func (m *memState) GetEmptyStreak(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streaks[userID], nil
}

func (m *memState) SetEmptyStreak(_ context.Context, userID string, streak int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streaks[userID] = streak
	return nil
}

// fakeSource serves scripted batches, one per FetchOlder call.
type fakeSource struct {
	channel models.Channel
	account string
	batches [][]*models.Message
	err     error
	calls   int
	block   chan struct{} // if set, FetchOlder waits until closed
}

func (f *fakeSource) Channel() models.Channel { return f.channel }
func (f *fakeSource) AccountID() string       { return f.account }

func (f *fakeSource) FetchOlder(context.Context, int) ([]*models.Message, error) {
	if f.block != nil {
		<-f.block
	}
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.calls > len(f.batches) {
		return nil, nil
	}
	return f.batches[f.calls-1], nil
}

func msg(channel models.Channel, id string) *models.Message {
	return &models.Message{
		ID:      id,
		Channel: channel,
		From:    models.Party{Address: "someone@example.com"},
		SentAt:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestLoadMore(t *testing.T) {
	ctx := context.Background()

	t.Run("merges batches from all sources", func(t *testing.T) {
		st := store.New()
		l := New("u1", st, newMemState())
		l.SetSources([]channels.Source{
			&fakeSource{channel: models.ChannelGmail, batches: [][]*models.Message{{msg(models.ChannelGmail, "1"), msg(models.ChannelGmail, "2")}}},
			&fakeSource{channel: models.ChannelTwilio, account: "tw-1", batches: [][]*models.Message{{msg(models.ChannelTwilio, "1")}}},
		})

		res, err := l.LoadMore(ctx)
		if err != nil {
			t.Fatalf("LoadMore failed: %v", err)
		}
		if res.Loaded != 3 {
			t.Errorf("Expected 3 loaded, got %d", res.Loaded)
		}
		if res.Exhausted {
			t.Error("Expected not exhausted")
		}
	})

	t.Run("a failing source does not abort siblings", func(t *testing.T) {
		st := store.New()
		l := New("u1", st, newMemState())
		l.SetSources([]channels.Source{
			&fakeSource{channel: models.ChannelJustCall, account: "jc-1", err: errors.New("api down")},
			&fakeSource{channel: models.ChannelGmail, batches: [][]*models.Message{{msg(models.ChannelGmail, "1")}}},
		})

		res, err := l.LoadMore(ctx)
		if err != nil {
			t.Fatalf("LoadMore failed: %v", err)
		}
		if res.Loaded != 1 {
			t.Errorf("Expected the healthy source's message, got %d", res.Loaded)
		}
	})

	t.Run("overlapping batches count once", func(t *testing.T) {
		st := store.New()
		l := New("u1", st, newMemState())
		shared := msg(models.ChannelGmail, "dup")
		l.SetSources([]channels.Source{
			&fakeSource{channel: models.ChannelGmail, batches: [][]*models.Message{{shared}}},
			&fakeSource{channel: models.ChannelGmail, account: "g2", batches: [][]*models.Message{{msg(models.ChannelGmail, "dup")}}},
		})

		res, err := l.LoadMore(ctx)
		if err != nil {
			t.Fatalf("LoadMore failed: %v", err)
		}
		if res.Loaded != 1 {
			t.Errorf("Expected duplicate IDs to merge, got loaded=%d", res.Loaded)
		}
	})

	t.Run("exhaustion after three consecutive empty loads", func(t *testing.T) {
		st := store.New()
		state := newMemState()
		l := New("u1", st, state)
		l.SetSources([]channels.Source{
			&fakeSource{channel: models.ChannelGmail},
		})

		for i := 0; i < 2; i++ {
			res, err := l.LoadMore(ctx)
			if err != nil {
				t.Fatalf("LoadMore %d failed: %v", i, err)
			}
			if res.Exhausted {
				t.Fatalf("Expected not exhausted on call %d", i+1)
			}
		}

		res, err := l.LoadMore(ctx)
		if err != nil {
			t.Fatalf("LoadMore failed: %v", err)
		}
		if !res.Exhausted {
			t.Error("Expected exhausted on third consecutive empty load")
		}

		// Counter resets after reporting exhaustion.
		if streak, _ := state.GetEmptyStreak(ctx, "u1"); streak != 0 {
			t.Errorf("Expected streak reset to 0, got %d", streak)
		}
		res, err = l.LoadMore(ctx)
		if err != nil {
			t.Fatalf("LoadMore after reset failed: %v", err)
		}
		if res.Exhausted {
			t.Error("Expected retry after reset to not report exhausted")
		}
	})

	t.Run("a non-empty load resets the streak", func(t *testing.T) {
		st := store.New()
		state := newMemState()
		l := New("u1", st, state)

		empty := &fakeSource{channel: models.ChannelGmail}
		l.SetSources([]channels.Source{empty})
		for i := 0; i < 2; i++ {
			if _, err := l.LoadMore(ctx); err != nil {
				t.Fatalf("LoadMore failed: %v", err)
			}
		}

		l.SetSources([]channels.Source{
			&fakeSource{channel: models.ChannelGmail, batches: [][]*models.Message{{msg(models.ChannelGmail, "fresh-1"), msg(models.ChannelGmail, "fresh-2")}}},
		})
		res, err := l.LoadMore(ctx)
		if err != nil {
			t.Fatalf("LoadMore failed: %v", err)
		}
		if res.Loaded != 2 || res.Exhausted {
			t.Errorf("Expected loaded=2 and not exhausted, got %+v", res)
		}
		if streak, _ := state.GetEmptyStreak(ctx, "u1"); streak != 0 {
			t.Errorf("Expected streak reset on non-empty load, got %d", streak)
		}
	})

	t.Run("streak survives a loader restart", func(t *testing.T) {
		state := newMemState()

		first := New("u1", store.New(), state)
		first.SetSources([]channels.Source{&fakeSource{channel: models.ChannelGmail}})
		for i := 0; i < 2; i++ {
			if _, err := first.LoadMore(ctx); err != nil {
				t.Fatalf("LoadMore failed: %v", err)
			}
		}

		second := New("u1", store.New(), state)
		second.SetSources([]channels.Source{&fakeSource{channel: models.ChannelGmail}})
		res, err := second.LoadMore(ctx)
		if err != nil {
			t.Fatalf("LoadMore failed: %v", err)
		}
		if !res.Exhausted {
			t.Error("Expected persisted streak to carry over the restart")
		}
	})

	t.Run("rejects re-entry while a load is pending", func(t *testing.T) {
		st := store.New()
		l := New("u1", st, newMemState())
		blocked := &fakeSource{channel: models.ChannelGmail, block: make(chan struct{})}
		l.SetSources([]channels.Source{blocked})

		done := make(chan struct{})
		go func() {
			_, _ = l.LoadMore(ctx)
			close(done)
		}()

		// Wait for the first call to take the busy flag.
		deadline := time.After(2 * time.Second)
		for {
			l.mu.Lock()
			loading := l.loading
			l.mu.Unlock()
			if loading {
				break
			}
			select {
			case <-deadline:
				t.Fatal("First LoadMore never started")
			default:
				time.Sleep(time.Millisecond)
			}
		}

		if _, err := l.LoadMore(ctx); !errors.Is(err, ErrLoadInProgress) {
			t.Errorf("Expected ErrLoadInProgress, got %v", err)
		}

		close(blocked.block)
		<-done
	})
}
