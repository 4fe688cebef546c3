package mlgw_test

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/giachello/mlgw/mlgw"
)

func TestCommandStatsStringNoSamplesDoesNotPanic(t *testing.T) {
	cs := mlgw.NewCommandStats()

	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("String() panicked with no samples: %v", r)
		}
	}()

	s := cs.String()
	t.Output().Write([]byte(s))
}

func TestCommandStatsTracksMultipleNamesIndependently(t *testing.T) {
	cs := mlgw.NewCommandStats()
	cs.Sample("login", 100*time.Millisecond)
	cs.Sample("login", 300*time.Millisecond)
	cs.Sample("request_serial_number", 314*time.Millisecond)

	if got := cs.Count("login"); got != 2 {
		t.Fatalf("Count(login) = %d, want 2", got)
	}
	if got := cs.Count("request_serial_number"); got != 1 {
		t.Fatalf("Count(request_serial_number) = %d, want 1", got)
	}
	if got := cs.Mean("login"); got != 200*time.Millisecond {
		t.Fatalf("Mean(login) = %v, want 200ms", got)
	}
	if got := cs.Mean("request_serial_number"); got != 314*time.Millisecond {
		t.Fatalf("Mean(request_serial_number) = %v, want 314ms", got)
	}

	s := cs.String()
	for _, v := range []string{"login", "request_serial_number", "samples=2", "samples=1"} {
		if !strings.Contains(s, v) {
			t.Fatal("String() did not include", v, "\n", s)
		}
	}
}

func TestCommandStatsUnsampledNameReturnsZero(t *testing.T) {
	cs := mlgw.NewCommandStats()
	if got := cs.Count("never_sampled"); got != 0 {
		t.Fatalf("Count() = %d, want 0", got)
	}
	if got := cs.Mean("never_sampled"); got != 0 {
		t.Fatalf("Mean() = %v, want 0", got)
	}
}

func TestCommandStatsMinMax(t *testing.T) {
	cs := mlgw.NewCommandStats()
	cs.Sample("request_serial_number", 100*time.Millisecond)
	cs.Sample("request_serial_number", 300*time.Millisecond)
	cs.Sample("request_serial_number", 50*time.Millisecond)

	s := cs.String()
	for _, v := range []string{"min=50ms", "max=300ms"} {
		if !strings.Contains(s, v) {
			t.Fatal("String() did not include", v, "\n", s)
		}
	}
}

func TestCommandStatsConcurrentSamples(t *testing.T) {
	cs := mlgw.NewCommandStats()

	const n = 1000
	var wg sync.WaitGroup
	wg.Add(n)

	for range n {
		go func() {
			defer wg.Done()
			cs.Sample("login", time.Millisecond)
		}()
	}

	wg.Wait()

	if got := cs.Count("login"); got != n {
		t.Fatalf("Count(login) = %d, want %d", got, n)
	}
	if got := cs.Mean("login"); got != time.Millisecond {
		t.Fatalf("Mean(login) = %v, want 1ms", got)
	}
}
