package generate

import (
	"context"
	"strings"

	"github.com/stellarlinkco/moodclaw/internal/metrics"
)

// Deduper regenerates replies that repeat a line already in the channel
// history, up to a fixed number of extra attempts.
type Deduper struct {
	gen     Generator
	retries int
	metrics *metrics.Metrics
}

func NewDeduper(gen Generator, retries int, m *metrics.Metrics) *Deduper {
	if retries < 0 {
		retries = 0
	}
	return &Deduper{gen: gen, retries: retries, metrics: m}
}

// Generate returns the first reply not found in recent, or the last reply
// produced once retries are spent. A failed retry keeps the previous reply;
// only a failure of the first call is returned as an error.
func (d *Deduper) Generate(ctx context.Context, prompt string, recent []string) (string, int, error) {
	out, err := d.gen.Generate(ctx, prompt)
	if err != nil {
		return "", 0, err
	}
	attempts := 0
	for attempts < d.retries && IsDuplicate(out, recent) {
		attempts++
		d.metrics.ObserveDedupRetry()
		next, err := d.gen.Generate(ctx, prompt)
		if err != nil {
			break
		}
		out = next
	}
	return out, attempts, nil
}

// IsDuplicate reports whether out, trimmed, equals any trimmed line.
func IsDuplicate(out string, lines []string) bool {
	out = strings.TrimSpace(out)
	for _, line := range lines {
		if strings.TrimSpace(line) == out {
			return true
		}
	}
	return false
}
