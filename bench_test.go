//go:build bench

package vulcan

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
)

// benchRenderer returns a fixed PDF without recording calls.
type benchRenderer struct{}

func (benchRenderer) RenderFromFile(context.Context, string, Layout) ([]byte, error) {
	return []byte(fakePDF), nil
}

func (benchRenderer) Close() error { return nil }

// BenchmarkResolvePoolSize benchmarks pool size calculation.
func BenchmarkResolvePoolSize(b *testing.B) {
	for _, w := range []int{0, 1, 2, 4, 8} {
		b.Run(workerName(w), func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				_ = ResolvePoolSize(w)
			}
		})
	}
}

func workerName(w int) string {
	if w == 0 {
		return "auto"
	}
	return fmt.Sprintf("%d", w)
}

// BenchmarkSessionPoolAcquireRelease benchmarks the admission cycle.
// Uses mock renderers to avoid browser overhead.
func BenchmarkSessionPoolAcquireRelease(b *testing.B) {
	ctx := context.Background()

	for _, size := range []int{1, 2, 4, 8} {
		b.Run(fmt.Sprintf("size_%d", size), func(b *testing.B) {
			pool := newSessionPool(size, func() pdfRenderer { return benchRenderer{} })
			defer func() { _ = pool.Close() }()

			b.ReportAllocs()
			for b.Loop() {
				r, err := pool.acquire(ctx)
				if err != nil {
					b.Fatal(err)
				}
				pool.release(r)
			}
		})
	}
}

// BenchmarkSessionPoolContention simulates more callers than sessions.
func BenchmarkSessionPoolContention(b *testing.B) {
	const poolSize = 4
	ctx := context.Background()

	for _, g := range []int{4, 8, 16, 32} {
		b.Run(fmt.Sprintf("goroutines_%d", g), func(b *testing.B) {
			pool := newSessionPool(poolSize, func() pdfRenderer { return benchRenderer{} })
			defer func() { _ = pool.Close() }()

			b.ReportAllocs()
			b.ResetTimer()

			var wg sync.WaitGroup
			perWorker := b.N/g + 1
			for range g {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for range perWorker {
						r, err := pool.acquire(ctx)
						if err != nil {
							return
						}
						pool.release(r)
					}
				}()
			}
			wg.Wait()
		})
	}
}

// BenchmarkEngineRender measures staging, admission and persistence around
// a mock renderer, isolating the engine from Chrome.
func BenchmarkEngineRender(b *testing.B) {
	inputs := []struct {
		name    string
		html    string
		persist bool
	}{
		{name: "minimal", html: "<h1>Hello</h1>"},
		{name: "large", html: strings.Repeat("<p>lorem ipsum dolor sit amet</p>\n", 5000)},
		{name: "persist", html: "<h1>Hello</h1>", persist: true},
	}

	for _, in := range inputs {
		b.Run(in.name, func(b *testing.B) {
			engine, err := NewEngine(
				WithStagingDir(b.TempDir()),
				withRendererFactory(func() pdfRenderer { return benchRenderer{} }),
			)
			if err != nil {
				b.Fatal(err)
			}
			defer func() { _ = engine.Close() }()

			var store *Store
			if in.persist {
				if store, err = NewStore(b.TempDir()); err != nil {
					b.Fatal(err)
				}
			}

			ctx := context.Background()
			b.ReportAllocs()
			b.SetBytes(int64(len(in.html)))
			for b.Loop() {
				job := RenderJob{HTML: in.html, RequestID: "bench"}
				if store != nil {
					job.Destination = &Destination{Storage: store, Filename: NewFilename()}
				}
				if _, err := engine.Render(ctx, job); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkStoreResolve measures the validation and canonicalization path
// taken by every file request.
func BenchmarkStoreResolve(b *testing.B) {
	store, err := NewStore(b.TempDir())
	if err != nil {
		b.Fatal(err)
	}
	name := NewFilename()
	if err := store.Persist(context.Background(), []byte(fakePDF), name); err != nil {
		b.Fatal(err)
	}

	cases := map[string]string{
		"hit":       name,
		"miss":      NewFilename(),
		"traversal": "../../etc/passwd",
	}
	for label, candidate := range cases {
		b.Run(label, func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				_, _ = store.Resolve(candidate)
			}
		})
	}
}
