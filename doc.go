// Package vulcan converts HTML documents to PDF using headless Chrome and
// keeps rendered files in a flat, UUID-named store.
//
// # Quick Start
//
// Create an engine, render HTML, and close when done:
//
//	engine, err := vulcan.NewEngine()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Close()
//
//	pdf, err := engine.Render(ctx, vulcan.RenderJob{
//	    HTML: "<html><body>Hello</body></html>",
//	})
//
// # Rendering Pipeline
//
// Every call to Render runs these steps in order:
//
//  1. The HTML is written to a uniquely named staging file.
//  2. A browser session is borrowed from the engine's pool.
//  3. The staged file is loaded and printed with the engine's Layout.
//  4. The session is released and the staging file removed, on every path.
//  5. If the job has a Destination, the bytes are persisted.
//
// Renders are bounded by WithTimeout (30s by default). On expiry the session
// is torn down and, if that fails, the browser process group is killed.
//
// # Storage
//
// Store persists documents atomically under canonical names
// (lowercase UUID plus ".pdf") and resolves untrusted names for retrieval:
//
//	store, err := vulcan.NewStore("/var/lib/vulcan")
//	name := vulcan.NewFilename()
//	pdf, err := engine.Render(ctx, vulcan.RenderJob{
//	    HTML:        html,
//	    Destination: &vulcan.Destination{Storage: store, Filename: name},
//	})
//	data, err := store.Read(name)
//
// Read rejects anything outside the grammar with ErrInvalidFilename, paths
// escaping the root with ErrAccessDenied, and missing files with
// ErrFileNotFound. No retention policy ships; register an EvictionHook with
// WithEvictionHook and call Store.Remove to implement one.
//
// # Concurrency
//
// Engine and Store are safe for concurrent use. The number of simultaneous
// browser sessions is bounded by WithWorkers (see ResolvePoolSize); callers
// beyond that wait in arrival order until a session frees or their context ends.
//
// # Error Handling
//
// Errors can be checked with errors.Is:
//
//	if errors.Is(err, vulcan.ErrEmptyHTML) {
//	    // reject the request
//	}
//	if errors.Is(err, vulcan.ErrRender) {
//	    // staging, browser or page failure
//	}
//	if errors.Is(err, vulcan.ErrPersist) {
//	    // rendered, but could not be stored
//	}
package vulcan
