// internal/browser/browser.go
package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/autoform/internal/config"
)

const shutdownGracePeriod = 15 * time.Second

// Manager owns the Chrome process lifecycle and hands out tab-scoped
// pages. The browser is launched lazily on the first page request.
type Manager struct {
	logger *zap.Logger
	cfg    config.BrowserConfig

	allocCtx    context.Context
	allocCancel context.CancelFunc

	mu    sync.Mutex
	pages map[string]*Page

	initOnce sync.Once
	initErr  error
}

// NewManager creates a browser manager. Launching the browser is
// deferred until the first page is requested.
func NewManager(cfg config.BrowserConfig, logger *zap.Logger) *Manager {
	return &Manager{
		logger: logger.Named("browser"),
		cfg:    cfg,
		pages:  make(map[string]*Page),
	}
}

// initialize builds the exec allocator that owns the Chrome process.
func (m *Manager) initialize(ctx context.Context) error {
	m.initOnce.Do(func() {
		m.logger.Info("Launching browser",
			zap.Bool("headless", m.cfg.Headless),
			zap.String("exec_path", m.cfg.ExecPath))

		allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocatorOptions(m.cfg)...)
		m.allocCtx = allocCtx
		m.allocCancel = allocCancel
	})
	return m.initErr
}

// allocatorOptions maps the browser configuration onto chromedp exec
// allocator options.
func allocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("disable-dev-shm-usage", true),
	}

	if cfg.Headless {
		opts = append(opts, chromedp.Headless)
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.IgnoreTLSErrors {
		opts = append(opts, chromedp.Flag("ignore-certificate-errors", true))
	}

	for _, arg := range cfg.Args {
		key, value, found := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
		if found {
			opts = append(opts, chromedp.Flag(key, value))
		} else {
			opts = append(opts, chromedp.Flag(key, true))
		}
	}
	return opts
}

// NewPage opens a fresh tab and returns it as a driveable page.
func (m *Manager) NewPage(ctx context.Context) (*Page, error) {
	if err := m.initialize(ctx); err != nil {
		return nil, err
	}

	tabCtx, tabCancel := chromedp.NewContext(m.allocCtx)

	// Force target creation so a broken launch surfaces here instead
	// of on the first interaction, and pin a stable viewport so custom
	// widgets render their option lists consistently.
	err := chromedp.Run(tabCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			return emulation.SetDeviceMetricsOverride(1366, 900, 1, false).Do(ctx)
		}),
	)
	if err != nil {
		tabCancel()
		return nil, fmt.Errorf("failed to open browser tab: %w", err)
	}

	page := newPage(tabCtx, tabCancel, m.cfg, m.logger)
	page.onClose = func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.pages, page.ID())
	}

	m.mu.Lock()
	m.pages[page.ID()] = page
	m.mu.Unlock()

	m.logger.Debug("Opened browser tab", zap.String("page_id", page.ID()))
	return page, nil
}

// Shutdown closes all open pages and tears down the browser process.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	pages := make([]*Page, 0, len(m.pages))
	for _, p := range m.pages {
		pages = append(pages, p)
	}
	m.mu.Unlock()

	for _, p := range pages {
		p.Close()
	}

	if m.allocCancel != nil {
		done := make(chan struct{})
		go func() {
			chromedp.Cancel(m.allocCtx)
			m.allocCancel()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(shutdownGracePeriod):
			m.logger.Warn("Browser shutdown timed out, proceeding forcefully.")
			m.allocCancel()
		case <-ctx.Done():
			m.allocCancel()
			return ctx.Err()
		}
	}

	m.logger.Info("Browser manager shutdown complete.")
	return nil
}
