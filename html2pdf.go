package vulcan

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/alnah/vulcan/internal/process"
)

// pdfRenderer abstracts PDF rendering from an HTML file to enable testing without a browser.
type pdfRenderer interface {
	RenderFromFile(ctx context.Context, filePath string, layout Layout) ([]byte, error)
	Close() error
}

var _ pdfRenderer = (*rodRenderer)(nil)

// teardownTimeout bounds session disposal after a render, including after
// the render deadline has already expired.
const teardownTimeout = 5 * time.Second

// BrowserOptions configures how Chrome is launched.
type BrowserOptions struct {
	Bin       string // empty = rod lookup or managed download
	NoSandbox bool   // required in most containers
}

// rodRenderer implements pdfRenderer using go-rod.
// One rodRenderer owns at most one Chrome process; each render runs in its own
// incognito browser context, created and disposed per call.
// Rod automatically downloads Chromium on first run if not found.
type rodRenderer struct {
	mu       sync.Mutex
	opts     BrowserOptions
	launcher *launcher.Launcher
	browser  *rod.Browser
}

// newRodRenderer creates a rodRenderer. The browser starts lazily on first render.
func newRodRenderer(opts BrowserOptions) *rodRenderer {
	return &rodRenderer{opts: opts}
}

// ensureBrowser lazily launches and connects to the browser.
func (r *rodRenderer) ensureBrowser() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browser != nil {
		return r.browser, nil
	}

	l := launcher.New().Headless(true)
	if r.opts.Bin != "" {
		l = l.Bin(r.opts.Bin)
	}
	if r.opts.NoSandbox {
		l = l.NoSandbox(true).Set("disable-setuid-sandbox")
	}
	// Staged input is loaded through a file:// URL.
	l = l.Set("allow-file-access-from-files").Set("enable-local-file-accesses")

	u, err := l.Launch()
	if err != nil {
		killLauncher(l)
		return nil, fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		killLauncher(l)
		return nil, fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}

	r.launcher = l
	r.browser = browser
	return browser, nil
}

// RenderFromFile opens a local HTML file in an isolated browser session and prints it to PDF.
// The session is disposed on every path. If disposal fails, the whole browser
// is killed so no session can leak past the call.
func (r *rodRenderer) RenderFromFile(ctx context.Context, filePath string, layout Layout) (pdf []byte, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	browser, err := r.ensureBrowser()
	if err != nil {
		return nil, err
	}

	session, err := browser.Incognito()
	if err != nil {
		r.reset()
		return nil, fmt.Errorf("%w: %v", ErrSessionCreate, err)
	}
	defer func() {
		if closeErr := session.Timeout(teardownTimeout).Close(); closeErr != nil {
			r.reset()
		}
	}()

	page, err := session.Context(ctx).Page(proto.TargetCreateTarget{URL: fileURL(filePath)})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPageCreate, err)
	}

	if err := page.WaitLoad(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", ErrPageLoad, err)
	}

	reader, err := page.PDF(buildPDFOptions(layout))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", ErrPDFGeneration, err)
	}

	pdf, err = io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: reading PDF stream: %v", ErrPDFGeneration, err)
	}

	return pdf, nil
}

// Close releases browser resources.
func (r *rodRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	if r.browser != nil {
		err = r.browser.Timeout(teardownTimeout).Close()
		r.browser = nil
	}
	if r.launcher != nil {
		killLauncher(r.launcher)
		r.launcher = nil
	}
	return err
}

// reset kills the browser so the next render relaunches a fresh one.
func (r *rodRenderer) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.browser = nil
	if r.launcher != nil {
		killLauncher(r.launcher)
		r.launcher = nil
	}
}

// killLauncher terminates Chrome and its children, then removes the profile directory.
// A launcher that never started a process is left alone: PID 0 would target
// our own process group.
func killLauncher(l *launcher.Launcher) {
	pid := l.PID()
	if pid <= 0 {
		return
	}
	process.KillProcessGroup(pid)
	l.Kill()
	l.Cleanup()
}

// buildPDFOptions maps a Layout onto Chrome's print parameters.
func buildPDFOptions(layout Layout) *proto.PagePrintToPDF {
	width, height := layout.paperSize()

	return &proto.PagePrintToPDF{
		PaperWidth:      floatPtr(width),
		PaperHeight:     floatPtr(height),
		MarginTop:       floatPtr(layout.MarginTop),
		MarginBottom:    floatPtr(layout.MarginBottom),
		MarginLeft:      floatPtr(layout.MarginLeft),
		MarginRight:     floatPtr(layout.MarginRight),
		Scale:           floatPtr(layout.Scale),
		PrintBackground: layout.PrintBackground,
	}
}

// fileURL builds a file:// URL for an absolute or relative local path.
func fileURL(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	p := filepath.ToSlash(path)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p // Windows drive letters
	}
	u := url.URL{Scheme: "file", Path: p}
	return u.String()
}

// floatPtr returns a pointer to a float64 value.
func floatPtr(v float64) *float64 {
	return &v
}
