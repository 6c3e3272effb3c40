package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

const DecayJobName = "personality-decay"

// Decayer is the part of the trait store the decay sweep needs.
type Decayer interface {
	Decay(now time.Time) (int, error)
}

// DecayJob sweeps every stored trait vector toward baseline.
func DecayJob(schedule string, d Decayer, clock clockwork.Clock) Job {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return Job{
		Name:     DecayJobName,
		Schedule: schedule,
		Run: func(ctx context.Context) (string, error) {
			if err := ctx.Err(); err != nil {
				return "", err
			}
			n, err := d.Decay(clock.Now())
			if err != nil {
				return "", fmt.Errorf("decay %d records: %w", n, err)
			}
			return fmt.Sprintf("decayed %d records", n), nil
		},
	}
}
