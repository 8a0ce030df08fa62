package vulcan

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"
)

// newMockPool builds a pool whose renderers are fresh mocks, returned in creation order.
func newMockPool(n int) (*SessionPool, *[]*mockRenderer) {
	var made []*mockRenderer
	pool := newSessionPool(n, func() pdfRenderer {
		m := &mockRenderer{}
		made = append(made, m)
		return m
	})
	return pool, &made
}

// ---------------------------------------------------------------------------
// TestResolvePoolSize - Sizing
// ---------------------------------------------------------------------------

func TestResolvePoolSize(t *testing.T) {
	t.Parallel()

	gomaxprocs := runtime.GOMAXPROCS(0)

	tests := []struct {
		name    string
		workers int
		want    int
	}{
		{
			name:    "explicit takes priority",
			workers: 4,
			want:    4,
		},
		{
			name:    "explicit=1 for sequential",
			workers: 1,
			want:    1,
		},
		{
			name:    "zero uses auto calculation",
			workers: 0,
			want:    min(max(gomaxprocs/cpuDivisor, MinPoolSize), MaxPoolSize),
		},
		{
			name:    "negative uses auto calculation",
			workers: -3,
			want:    min(max(gomaxprocs/cpuDivisor, MinPoolSize), MaxPoolSize),
		},
		{
			name:    "explicit can exceed max",
			workers: 16,
			want:    16,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := ResolvePoolSize(tt.workers)
			if got != tt.want {
				t.Errorf("ResolvePoolSize(%d) = %d, want %d", tt.workers, got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestSessionPool_AcquireRelease - Reuse
// ---------------------------------------------------------------------------

func TestSessionPool_AcquireRelease(t *testing.T) {
	t.Parallel()

	pool, made := newMockPool(2)
	defer pool.Close()
	ctx := context.Background()

	r1, err := pool.acquire(ctx)
	if err != nil {
		t.Fatalf("acquire() error = %v", err)
	}
	r2, err := pool.acquire(ctx)
	if err != nil {
		t.Fatalf("acquire() error = %v", err)
	}
	if r1 == r2 {
		t.Error("expected different renderer instances")
	}

	pool.release(r1)
	r3, err := pool.acquire(ctx)
	if err != nil {
		t.Fatalf("acquire() error = %v", err)
	}
	if r3 != r1 {
		t.Error("expected to get back released renderer")
	}
	if len(*made) != 2 {
		t.Errorf("renderers created = %d, want 2", len(*made))
	}

	pool.release(r2)
	pool.release(r3)
}

func TestSessionPool_MinimumSize(t *testing.T) {
	t.Parallel()

	pool, _ := newMockPool(0)
	defer pool.Close()

	if pool.Size() != MinPoolSize {
		t.Errorf("Size() = %d, want %d", pool.Size(), MinPoolSize)
	}
}

// ---------------------------------------------------------------------------
// TestSessionPool_Bounded - Admission control
// ---------------------------------------------------------------------------

func TestSessionPool_Bounded(t *testing.T) {
	t.Parallel()

	pool, _ := newMockPool(1)
	defer pool.Close()

	held, err := pool.acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if _, err := pool.acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("acquire() on full pool error = %v, want DeadlineExceeded", err)
	}

	pool.release(held)

	if _, err := pool.acquire(context.Background()); err != nil {
		t.Errorf("acquire() after release error = %v", err)
	}
}

func TestSessionPool_WaiterAdmittedOnRelease(t *testing.T) {
	t.Parallel()

	pool, _ := newMockPool(1)
	defer pool.Close()

	held, err := pool.acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire() error = %v", err)
	}

	got := make(chan pdfRenderer, 1)
	go func() {
		r, err := pool.acquire(context.Background())
		if err != nil {
			t.Errorf("waiter acquire() error = %v", err)
		}
		got <- r
	}()

	select {
	case <-got:
		t.Fatal("waiter admitted while pool was full")
	case <-time.After(20 * time.Millisecond):
	}

	pool.release(held)

	select {
	case r := <-got:
		if r != held {
			t.Error("waiter should receive the released renderer")
		}
		pool.release(r)
	case <-time.After(5 * time.Second):
		t.Fatal("waiter not admitted after release")
	}
}

// ---------------------------------------------------------------------------
// TestSessionPool_Close - Shutdown
// ---------------------------------------------------------------------------

func TestSessionPool_Close(t *testing.T) {
	t.Parallel()

	pool, made := newMockPool(2)
	ctx := context.Background()

	r1, _ := pool.acquire(ctx)
	r2, _ := pool.acquire(ctx)
	pool.release(r1)

	if err := pool.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	for i, m := range *made {
		if !m.closed {
			t.Errorf("renderer %d not closed", i)
		}
	}

	// Releasing after close must not panic or resurrect the renderer.
	pool.release(r2)

	if _, err := pool.acquire(ctx); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("acquire() after Close error = %v, want ErrPoolClosed", err)
	}

	if err := pool.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

// failingCloser is a renderer whose Close fails.
type failingCloser struct {
	mockRenderer
	err error
}

func (f *failingCloser) Close() error { return f.err }

func TestSessionPool_CloseAggregatesErrors(t *testing.T) {
	t.Parallel()

	errA := errors.New("a")
	errB := errors.New("b")
	queue := []error{errA, errB}

	pool := newSessionPool(2, func() pdfRenderer {
		err := queue[0]
		queue = queue[1:]
		return &failingCloser{err: err}
	})
	ctx := context.Background()
	r1, _ := pool.acquire(ctx)
	r2, _ := pool.acquire(ctx)
	pool.release(r1)
	pool.release(r2)

	err := pool.Close()
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("Close() error = %v, want both errors", err)
	}
}
