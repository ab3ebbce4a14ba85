package usecase_test

import (
	"context"
	"errors"
	"testing"

	"go-events-backend/internal/usecase"

	"github.com/stretchr/testify/assert"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthCheck(t *testing.T) {
	up := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("refused") })

	out, ok := usecase.NewHealthUsecase(map[string]usecase.Pinger{"database": up, "redis": nil}).Check(context.Background())
	assert.True(t, ok)
	assert.Equal(t, map[string]string{"status": "ok", "database": "up", "redis": "disabled"}, out)

	out, ok = usecase.NewHealthUsecase(map[string]usecase.Pinger{"database": down}).Check(context.Background())
	assert.False(t, ok)
	assert.Equal(t, "degraded", out["status"])
	assert.Equal(t, "down", out["database"])
}
