//go:build integration

package redis_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go-events-backend/internal/domain"
	redisrepo "go-events-backend/internal/repository/redis"
	"go-events-backend/pkg/redis"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) *redisrepo.OTPStore {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	rdb, err := redis.Connect(ctx, redis.Config{URL: fmt.Sprintf("redis://%s:%s", host, port.Port())})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	return redisrepo.NewOTPStore(rdb)
}

func TestRedisOTPStore(t *testing.T) {
	s := setupRedis(t)
	ctx := context.Background()
	phone := "+15551234567"

	_, found, err := s.GetAttempt(ctx, phone)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.SetAttempt(ctx, phone, domain.Attempt{State: domain.AttemptFailure, LastError: "bad"}, time.Minute))
	a, found, err := s.GetAttempt(ctx, phone)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, domain.AttemptFailure, a.State)

	claimed, _, err := s.ClaimResend(ctx, phone, 2*time.Second)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, left, err := s.ClaimResend(ctx, phone, 2*time.Second)
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Greater(t, left, time.Duration(0))

	require.NoError(t, s.ReleaseResend(ctx, phone))
	left, err = s.ResendRemaining(ctx, phone)
	require.NoError(t, err)
	assert.Zero(t, left)

	claimed, _, err = s.ClaimResend(ctx, phone, time.Second)
	require.NoError(t, err)
	assert.True(t, claimed)
	time.Sleep(1100 * time.Millisecond)
	claimed, _, err = s.ClaimResend(ctx, phone, time.Second)
	require.NoError(t, err)
	assert.True(t, claimed, "window expired")
}
