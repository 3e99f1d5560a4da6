package fetch

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/pageharvest/pageharvest/internal/scraper"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want scraper.FetchErrorKind
	}{
		{"deadline exceeded", context.DeadlineExceeded, scraper.FetchTimeout},
		{"network timeout", timeoutErr{}, scraper.FetchTimeout},
		{"connection refused", errors.New("connection refused"), scraper.FetchUnreachable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := Classify("https://x.test/", tc.err)
			var fe *scraper.FetchError
			if !errors.As(err, &fe) {
				t.Fatalf("Classify returned %T, want *scraper.FetchError", err)
			}
			if fe.Kind != tc.want {
				t.Errorf("kind = %q, want %q", fe.Kind, tc.want)
			}
			if fe.URL != "https://x.test/" {
				t.Errorf("url = %q", fe.URL)
			}
		})
	}
}

func TestClassifyPassesThroughClassified(t *testing.T) {
	t.Parallel()

	orig := scraper.NewFetchError(scraper.FetchElementWait, "https://x.test/", errors.New("gone"))
	if got := Classify("https://other.test/", orig); got != orig {
		t.Fatalf("Classify rewrapped an already classified error: %v", got)
	}
}

func TestWaitError(t *testing.T) {
	t.Parallel()

	// A deadline hit while waiting for the selector is an element-wait
	// failure, not a plain timeout.
	err := WaitError("https://x.test/", "#app", context.DeadlineExceeded)
	var fe *scraper.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("WaitError returned %T, want *scraper.FetchError", err)
	}
	if fe.Kind != scraper.FetchElementWait {
		t.Errorf("kind = %q, want %q", fe.Kind, scraper.FetchElementWait)
	}
	if !strings.Contains(err.Error(), "#app") {
		t.Errorf("error %q does not name the selector", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("cause not preserved")
	}

	// Classify must not downgrade it to Timeout.
	reclassified := Classify("https://x.test/", err)
	var fe2 *scraper.FetchError
	if !errors.As(reclassified, &fe2) || fe2.Kind != scraper.FetchElementWait {
		t.Errorf("reclassified kind = %v, want element_wait", reclassified)
	}
}

func TestIsTimeout(t *testing.T) {
	t.Parallel()

	if !IsTimeout(context.DeadlineExceeded) {
		t.Error("deadline exceeded not recognized")
	}
	if !IsTimeout(timeoutErr{}) {
		t.Error("net timeout not recognized")
	}
	if IsTimeout(errors.New("no route to host")) {
		t.Error("plain error recognized as timeout")
	}
	if IsTimeout(context.Canceled) {
		t.Error("cancellation recognized as timeout")
	}
}

func TestCookieHeader(t *testing.T) {
	t.Parallel()

	if got := CookieHeader(nil); got != "" {
		t.Errorf("empty map = %q, want empty", got)
	}
	got := CookieHeader(map[string]string{"session": "abc", "a": "1", "m": "2"})
	if want := "a=1; m=2; session=abc"; got != want {
		t.Errorf("CookieHeader = %q, want %q", got, want)
	}
}

type stubStrategy struct{}

func (stubStrategy) Fetch(context.Context, scraper.FetchRequest) (scraper.FetchResponse, error) {
	return scraper.FetchResponse{StatusCode: 200}, nil
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	if _, err := r.Strategy(scraper.MethodStatic); err == nil {
		t.Fatal("empty registry resolved a strategy")
	}

	r.Register(scraper.MethodStatic, stubStrategy{})
	s, err := r.Strategy(scraper.MethodStatic)
	if err != nil {
		t.Fatalf("Strategy: %v", err)
	}
	if s == nil {
		t.Fatal("nil strategy")
	}

	_, err = r.Strategy(scraper.MethodRod)
	if err == nil {
		t.Fatal("unregistered method resolved")
	}
	if !strings.Contains(err.Error(), "static") {
		t.Errorf("error %q does not list known methods", err)
	}
}
