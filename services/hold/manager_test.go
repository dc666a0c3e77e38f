package hold

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"tutorbook/database/memstore"
	"tutorbook/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestManager(t *testing.T) (*Manager, *memstore.SlotStore, *clock) {
	t.Helper()
	slots := memstore.NewSlotStore()
	require.NoError(t, slots.Create(context.Background(), &models.Slot{
		ID:         "S1",
		ProviderID: "P1",
		Start:      t0.Add(72 * time.Hour),
		End:        t0.Add(73 * time.Hour),
		Subject:    "maths",
		Level:      "gcse",
	}))
	c := &clock{now: t0}
	m := NewManager(slots, DefaultTTL, zap.NewNop())
	m.now = c.Now
	return m, slots, c
}

func TestAcquire_HeldByOtherThenExpired(t *testing.T) {
	m, _, c := newTestManager(t)
	ctx := context.Background()

	_, err := m.Acquire(ctx, "S1", "A")
	require.NoError(t, err)

	c.Advance(time.Minute)
	_, err = m.Acquire(ctx, "S1", "B")
	assert.ErrorIs(t, err, models.ErrHeldByOther)

	c.Advance(15 * time.Minute)
	slot, err := m.Acquire(ctx, "S1", "B")
	require.NoError(t, err)
	assert.Equal(t, "B", slot.HoldBy)
	assert.Equal(t, t0.Add(16*time.Minute+DefaultTTL), *slot.HoldUntil)
}

func TestAcquire_SameBuyerRefreshesTTL(t *testing.T) {
	m, _, c := newTestManager(t)
	ctx := context.Background()

	_, err := m.Acquire(ctx, "S1", "A")
	require.NoError(t, err)
	c.Advance(10 * time.Minute)
	slot, err := m.Acquire(ctx, "S1", "A")
	require.NoError(t, err)
	assert.Equal(t, c.Now().Add(DefaultTTL), *slot.HoldUntil)
}

func TestAcquire_Failures(t *testing.T) {
	m, slots, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Acquire(ctx, "missing", "A")
	assert.ErrorIs(t, err, models.ErrSlotGone)

	require.NoError(t, slots.Create(ctx, &models.Slot{ID: "S2", IsBooked: true, BookedBy: "BK9"}))
	_, err = m.Acquire(ctx, "S2", "A")
	assert.ErrorIs(t, err, models.ErrSlotBooked)
}

func TestAcquire_ConcurrentBuyersOneWinner(t *testing.T) {
	m, slots, _ := newTestManager(t)
	ctx := context.Background()

	const buyers = 50
	var wg sync.WaitGroup
	errs := make([]error, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = m.Acquire(ctx, "S1", fmt.Sprintf("buyer-%d", i))
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
			continue
		}
		assert.True(t, errors.Is(err, models.ErrHeldByOther), "unexpected error %v", err)
	}
	assert.Equal(t, 1, winners)

	slot, err := slots.GetByID(ctx, "S1")
	require.NoError(t, err)
	assert.NotEmpty(t, slot.HoldBy)
}

func TestAcquireThenRelease_RestoresSlot(t *testing.T) {
	m, slots, _ := newTestManager(t)
	ctx := context.Background()

	before, err := slots.GetByID(ctx, "S1")
	require.NoError(t, err)

	_, err = m.Acquire(ctx, "S1", "A")
	require.NoError(t, err)
	require.NoError(t, m.Release(ctx, "S1", "A"))

	after, err := slots.GetByID(ctx, "S1")
	require.NoError(t, err)
	assert.Empty(t, after.HoldBy)
	assert.Nil(t, after.HoldUntil)
	assert.False(t, after.IsBooked)
	after.Version = before.Version
	assert.Equal(t, before, after)

	_, err = m.Acquire(ctx, "S1", "B")
	assert.NoError(t, err)
}

func TestRelease_LeavesOtherBuyersLiveHold(t *testing.T) {
	m, slots, c := newTestManager(t)
	ctx := context.Background()

	_, err := m.Acquire(ctx, "S1", "A")
	require.NoError(t, err)
	require.NoError(t, m.Release(ctx, "S1", "B"))

	slot, _ := slots.GetByID(ctx, "S1")
	assert.Equal(t, "A", slot.HoldBy)

	// Once A's hold lapses anyone may clear it.
	c.Advance(DefaultTTL + time.Second)
	require.NoError(t, m.Release(ctx, "S1", "B"))
	slot, _ = slots.GetByID(ctx, "S1")
	assert.Empty(t, slot.HoldBy)
}

func TestRelease_Idempotent(t *testing.T) {
	m, slots, _ := newTestManager(t)
	ctx := context.Background()

	assert.NoError(t, m.Release(ctx, "missing", "A"))
	assert.NoError(t, m.Release(ctx, "S1", "A"))

	require.NoError(t, slots.Create(ctx, &models.Slot{ID: "S2", IsBooked: true, BookedBy: "BK1"}))
	assert.NoError(t, m.Release(ctx, "S2", "A"))
	slot, _ := slots.GetByID(ctx, "S2")
	assert.True(t, slot.IsBooked)
}
