package memory_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go-events-backend/internal/domain"
	"go-events-backend/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

const phone = "+15551234567"

func TestClaimResendWindow(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := memory.NewOTPStore(clock.Now)
	ctx := context.Background()

	claimed, left, err := s.ClaimResend(ctx, phone, time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Equal(t, time.Minute, left)

	clock.Advance(20 * time.Second)
	claimed, left, err = s.ClaimResend(ctx, phone, time.Minute)
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Equal(t, 40*time.Second, left)

	remaining, err := s.ResendRemaining(ctx, phone)
	require.NoError(t, err)
	assert.Equal(t, 40*time.Second, remaining)

	clock.Advance(40 * time.Second)
	claimed, _, err = s.ClaimResend(ctx, phone, time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed, "window elapsed, next claim wins")
}

func TestReleaseResendReopensWindow(t *testing.T) {
	s := memory.NewOTPStore(nil)
	ctx := context.Background()

	claimed, _, _ := s.ClaimResend(ctx, phone, time.Minute)
	require.True(t, claimed)
	require.NoError(t, s.ReleaseResend(ctx, phone))

	claimed, _, _ = s.ClaimResend(ctx, phone, time.Minute)
	assert.True(t, claimed)
}

func TestClaimResendIsAtomic(t *testing.T) {
	s := memory.NewOTPStore(nil)
	ctx := context.Background()

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _, _ := s.ClaimResend(ctx, phone, time.Minute); ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins)
}

func TestAttemptExpires(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	s := memory.NewOTPStore(clock.Now)
	ctx := context.Background()

	require.NoError(t, s.SetAttempt(ctx, phone, domain.Attempt{State: domain.AttemptFailure, LastError: "nope"}, time.Minute))

	a, found, err := s.GetAttempt(ctx, phone)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, domain.AttemptFailure, a.State)

	clock.Advance(time.Minute)
	_, found, err = s.GetAttempt(ctx, phone)
	require.NoError(t, err)
	assert.False(t, found)
}
