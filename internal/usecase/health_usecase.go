package usecase

import (
	"context"
	"time"
)

// Pinger is satisfied by *pgxpool.Pool and by the redis adapter.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthUsecase interface {
	Check(ctx context.Context) (map[string]string, bool)
}

type healthUsecase struct {
	deps map[string]Pinger
}

// NewHealthUsecase checks every named dependency. Nil entries are reported as disabled.
func NewHealthUsecase(deps map[string]Pinger) HealthUsecase {
	return &healthUsecase{deps: deps}
}

func (u *healthUsecase) Check(ctx context.Context) (map[string]string, bool) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	out := map[string]string{"status": "ok"}
	healthy := true
	for name, dep := range u.deps {
		if dep == nil {
			out[name] = "disabled"
			continue
		}
		if err := dep.Ping(ctx); err != nil {
			out[name] = "down"
			healthy = false
			continue
		}
		out[name] = "up"
	}
	if !healthy {
		out["status"] = "degraded"
	}
	return out, healthy
}
