package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/threadcart/threadcart/internal/chat"
	"github.com/threadcart/threadcart/internal/log"
	"github.com/threadcart/threadcart/internal/testutil"
	"github.com/threadcart/threadcart/internal/tools"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestRegistry(t *testing.T, cfg Config) *Registry {
	t.Helper()
	if cfg.Factory == nil {
		registry := tools.NewRegistry(log.NewNop())
		cfg.Factory = func() *chat.Engine {
			return chat.NewEngine(chat.Config{
				Client:   testutil.NewMockClient("ok"),
				Registry: registry,
				Logger:   log.NewNop(),
			})
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}
	r := NewRegistry(cfg)
	t.Cleanup(r.Close)
	return r
}

func TestAcquireCreatesAndReuses(t *testing.T) {
	r := newTestRegistry(t, Config{})

	engine1, release1, err := r.Acquire("s1")
	require.NoError(t, err)
	release1()

	engine2, release2, err := r.Acquire("s1")
	require.NoError(t, err)
	release2()

	assert.Same(t, engine1, engine2)
	assert.Equal(t, 1, r.Len())

	_, release3, err := r.Acquire("s2")
	require.NoError(t, err)
	release3()
	assert.Equal(t, 2, r.Len())
}

func TestAcquireSerializesTurns(t *testing.T) {
	r := newTestRegistry(t, Config{})

	_, release, err := r.Acquire("s1")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		_, release2, err := r.Acquire("s1")
		assert.NoError(t, err)
		close(acquired)
		release2()
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire should block while the first holds the session")
	case <-time.After(100 * time.Millisecond):
	}

	release()

	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("second acquire never proceeded after release")
	}
}

func TestCapacityEvictsIdleSession(t *testing.T) {
	r := newTestRegistry(t, Config{Capacity: 2})

	_, release1, err := r.Acquire("s1")
	require.NoError(t, err)
	release1()
	_, release2, err := r.Acquire("s2")
	require.NoError(t, err)
	release2()

	// Full, but both sessions are idle: the oldest is evicted to make room.
	_, release3, err := r.Acquire("s3")
	require.NoError(t, err)
	release3()

	assert.Equal(t, 2, r.Len())

	// s1 was the least recently used; acquiring it again recreates it.
	engineOld, release4, err := r.Acquire("s2")
	require.NoError(t, err)
	release4()
	assert.NotNil(t, engineOld)
}

func TestCapacityRejectsWhenAllBusy(t *testing.T) {
	r := newTestRegistry(t, Config{Capacity: 1})

	_, release, err := r.Acquire("busy")
	require.NoError(t, err)
	defer release()

	_, _, err = r.Acquire("another")
	assert.ErrorIs(t, err, ErrCapacity)
}

func TestSweepEvictsIdleSessions(t *testing.T) {
	r := newTestRegistry(t, Config{
		IdleTTL:       20 * time.Millisecond,
		SweepInterval: 10 * time.Millisecond,
	})

	_, release, err := r.Acquire("s1")
	require.NoError(t, err)
	release()

	require.Eventually(t, func() bool { return r.Len() == 0 },
		2*time.Second, 10*time.Millisecond, "idle session was never swept")
}

func TestSweepSkipsBusySessions(t *testing.T) {
	r := newTestRegistry(t, Config{
		IdleTTL:       10 * time.Millisecond,
		SweepInterval: 5 * time.Millisecond,
	})

	_, release, err := r.Acquire("busy")
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, r.Len(), "session mid-turn must not be swept")

	release()
	require.Eventually(t, func() bool { return r.Len() == 0 },
		2*time.Second, 10*time.Millisecond)
}

func TestAcquireAfterEvictionCreatesFresh(t *testing.T) {
	r := newTestRegistry(t, Config{
		IdleTTL:       10 * time.Millisecond,
		SweepInterval: 5 * time.Millisecond,
	})

	engine1, release, err := r.Acquire("s1")
	require.NoError(t, err)
	release()

	require.Eventually(t, func() bool { return r.Len() == 0 },
		2*time.Second, 5*time.Millisecond)

	engine2, release2, err := r.Acquire("s1")
	require.NoError(t, err)
	release2()

	assert.NotSame(t, engine1, engine2)
}

func TestConcurrentAcquireDistinctSessions(t *testing.T) {
	r := newTestRegistry(t, Config{Capacity: 100})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := string(rune('a' + n))
			for j := 0; j < 10; j++ {
				_, release, err := r.Acquire(id)
				if assert.NoError(t, err) {
					release()
				}
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, r.Len())
}
