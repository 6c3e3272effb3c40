package generate

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cexll/agentsdk-go/pkg/model"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/stellarlinkco/moodclaw/internal/config"
	"github.com/stellarlinkco/moodclaw/internal/metrics"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scripted returns outputs in order and then repeats the last one.
func scripted(outputs ...string) (Generator, *int32) {
	var calls int32
	return Func(func(ctx context.Context, prompt string) (string, error) {
		n := atomic.AddInt32(&calls, 1)
		i := int(n) - 1
		if i >= len(outputs) {
			i = len(outputs) - 1
		}
		return outputs[i], nil
	}), &calls
}

func TestDeduper_RegeneratesDuplicates(t *testing.T) {
	gen, calls := scripted("X", "X", "Y")
	d := NewDeduper(gen, 2, nil)

	out, retries, err := d.Generate(context.Background(), "p", []string{"hello", " X "})
	if err != nil {
		t.Fatal(err)
	}
	if out != "Y" || retries != 2 {
		t.Errorf("got %q after %d retries, want Y after 2", out, retries)
	}
	if *calls != 3 {
		t.Errorf("calls = %d, want 3", *calls)
	}
}

func TestDeduper_RetryBound(t *testing.T) {
	gen, calls := scripted("X")
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	d := NewDeduper(gen, 2, m)

	out, retries, err := d.Generate(context.Background(), "p", []string{"X"})
	if err != nil {
		t.Fatal(err)
	}
	if out != "X" {
		t.Errorf("out = %q, want the duplicate accepted", out)
	}
	if retries != 2 || *calls != 3 {
		t.Errorf("retries = %d calls = %d, want 2 and 3", retries, *calls)
	}
	if got := testutil.ToFloat64(m.DedupRetries); got != 2 {
		t.Errorf("dedup metric = %v, want 2", got)
	}
}

func TestDeduper_NoHistoryNoRetry(t *testing.T) {
	gen, calls := scripted("X")
	out, retries, _ := NewDeduper(gen, 2, nil).Generate(context.Background(), "p", nil)
	if out != "X" || retries != 0 || *calls != 1 {
		t.Errorf("out=%q retries=%d calls=%d", out, retries, *calls)
	}
}

func TestDeduper_FailedRetryKeepsPrevious(t *testing.T) {
	var calls int
	gen := Func(func(context.Context, string) (string, error) {
		calls++
		if calls == 1 {
			return "X", nil
		}
		return "", errors.New("boom")
	})
	out, _, err := NewDeduper(gen, 2, nil).Generate(context.Background(), "p", []string{"X"})
	if err != nil || out != "X" {
		t.Errorf("got %q, %v; want X, nil", out, err)
	}
}

func TestDeduper_FirstFailureReturned(t *testing.T) {
	gen := Func(func(context.Context, string) (string, error) { return "", errors.New("down") })
	if _, _, err := NewDeduper(gen, 2, nil).Generate(context.Background(), "p", nil); err == nil {
		t.Error("expected error")
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string { return "i/o timeout" }
func (timeoutErr) Timeout() bool { return true }
func (timeoutErr) Temporary() bool { return true }

func TestAsError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), KindTimeout},
		{"breaker open", gobreaker.ErrOpenState, KindUnavailable},
		{"empty", ErrEmptyReply, KindMalformed},
		{"net timeout", timeoutErr{}, KindTimeout},
		{"net op", &net.OpError{Op: "dial", Err: errors.New("refused")}, KindNetwork},
		{"typed passes through", &Error{Kind: KindRateLimited}, KindRateLimited},
		{"anything else", errors.New("400 bad request"), KindStatus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf = %q, want %q", got, tt.want)
			}
		})
	}
	if KindOf(nil) != "" {
		t.Error("KindOf(nil) should be empty")
	}
}

func TestApology(t *testing.T) {
	if got := Apology(&Error{Kind: KindTimeout}); got != apologies[KindTimeout] {
		t.Errorf("timeout apology = %q", got)
	}
	if got := Apology(errors.New("x")); got != defaultApology {
		t.Errorf("status apology = %q", got)
	}
}

func TestGuard_Timeout(t *testing.T) {
	slow := Func(func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	g := NewGuard(slow, GuardOptions{Timeout: 20 * time.Millisecond, Logger: zaptest.NewLogger(t)})

	_, err := g.Generate(context.Background(), "p")
	var ge *Error
	if !errors.As(err, &ge) || ge.Kind != KindTimeout {
		t.Fatalf("err = %v, want timeout *Error", err)
	}
}

func TestGuard_BreakerOpens(t *testing.T) {
	var calls int32
	failing := Func(func(context.Context, string) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "", errors.New("500")
	})
	g := NewGuard(failing, GuardOptions{BreakerFailures: 2, BreakerCooldown: time.Hour, Logger: zaptest.NewLogger(t)})

	for i := 0; i < 2; i++ {
		if KindOf(mustErr(t, g)) != KindStatus {
			t.Fatalf("call %d should be a status error", i)
		}
	}
	if got := KindOf(mustErr(t, g)); got != KindUnavailable {
		t.Errorf("kind after trip = %q, want unavailable", got)
	}
	if calls != 2 {
		t.Errorf("upstream calls = %d, want 2", calls)
	}
}

func TestGuard_RateLimit(t *testing.T) {
	gen, _ := scripted("ok")
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	g := NewGuard(gen, GuardOptions{RatePerMinute: 1, Metrics: m, Logger: zaptest.NewLogger(t)})

	if out, err := g.Generate(context.Background(), "p"); err != nil || out != "ok" {
		t.Fatalf("first call = %q, %v", out, err)
	}
	if got := KindOf(mustErr(t, g)); got != KindRateLimited {
		t.Errorf("second call kind = %q, want rate_limited", got)
	}
	if got := testutil.ToFloat64(m.GenerationErrors.WithLabelValues(string(KindRateLimited))); got != 1 {
		t.Errorf("rate limited metric = %v", got)
	}
}

func mustErr(t *testing.T, g Generator) error {
	t.Helper()
	_, err := g.Generate(context.Background(), "p")
	if err == nil {
		t.Fatal("expected error")
	}
	return err
}

func TestSDKModel_ProviderError(t *testing.T) {
	p := model.ProviderFunc(func(context.Context) (model.Model, error) {
		return nil, errors.New("no key")
	})
	_, err := NewSDKModel("test", p, 100).Generate(context.Background(), "hi")
	if err == nil || KindOf(err) != KindStatus {
		t.Errorf("err = %v", err)
	}
}

func TestNew_SelectsProvider(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Provider.APIKey = "k"

	for _, tt := range []struct {
		provider string
		want     string
	}{
		{"anthropic", "anthropic"},
		{"openai", "openai"},
	} {
		cfg.Provider.Type = tt.provider
		g, err := New(context.Background(), cfg)
		if err != nil {
			t.Fatalf("New(%s) error: %v", tt.provider, err)
		}
		sdk, ok := g.(*SDKModel)
		if !ok {
			t.Fatalf("New(%s) = %T, want *SDKModel", tt.provider, g)
		}
		if diff := cmp.Diff(tt.want, sdk.name); diff != "" {
			t.Errorf("name (-want +got):\n%s", diff)
		}
	}

	cfg.Provider.Type = "cohere"
	if _, err := New(context.Background(), cfg); err == nil {
		t.Error("expected error for unknown provider")
	}
}
