package dashboardhttp

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dojo-planner/dojo/internal/dashboard"
)

// PageFactory opens a new dashboard page bound to ctx.
type PageFactory func(ctx context.Context) *dashboard.Controller

type page struct {
	ctrl     *dashboard.Controller
	lastSeen time.Time
}

// Pages keeps one dashboard page per session and closes pages nobody has
// looked at for longer than the idle TTL.
type Pages struct {
	logger  *slog.Logger
	factory PageFactory
	idleTTL time.Duration
	now     func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	pages map[string]*page
}

// NewPages builds a registry. Pages live until closed, swept, or until ctx ends.
func NewPages(ctx context.Context, logger *slog.Logger, factory PageFactory, idleTTL time.Duration) *Pages {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Pages{
		logger:  logger,
		factory: factory,
		idleTTL: idleTTL,
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
		pages:   make(map[string]*page),
	}
}

// WithNow overrides the registry clock for testing.
func (p *Pages) WithNow(fn func() time.Time) {
	if fn != nil {
		p.now = fn
	}
}

// Open returns the page for key, creating it when missing or closed.
func (p *Pages) Open(key string) *dashboard.Controller {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pg, ok := p.pages[key]; ok {
		select {
		case <-pg.ctrl.Done():
		default:
			pg.lastSeen = p.now()
			return pg.ctrl
		}
	}
	ctrl := p.factory(p.ctx)
	p.pages[key] = &page{ctrl: ctrl, lastSeen: p.now()}
	return ctrl
}

// Close tears down the page for key. It reports whether a page existed.
func (p *Pages) Close(key string) bool {
	p.mu.Lock()
	pg, ok := p.pages[key]
	delete(p.pages, key)
	p.mu.Unlock()
	if ok {
		pg.ctrl.Close()
	}
	return ok
}

// Len returns the number of open pages.
func (p *Pages) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pages)
}

// Sweep closes pages idle for longer than the TTL and returns how many it closed.
func (p *Pages) Sweep() int {
	if p.idleTTL <= 0 {
		return 0
	}
	cutoff := p.now().Add(-p.idleTTL)
	var idle []*dashboard.Controller
	p.mu.Lock()
	for key, pg := range p.pages {
		if pg.lastSeen.Before(cutoff) {
			idle = append(idle, pg.ctrl)
			delete(p.pages, key)
		}
	}
	p.mu.Unlock()
	for _, ctrl := range idle {
		ctrl.Close()
	}
	return len(idle)
}

// Run sweeps idle pages every interval until ctx ends, then closes every page.
func (p *Pages) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.Shutdown()
			return
		case <-ticker.C:
			if n := p.Sweep(); n > 0 {
				p.logger.Info("closed idle dashboard pages", slog.Int("count", n))
			}
		}
	}
}

// Shutdown closes every page.
func (p *Pages) Shutdown() {
	p.cancel()
	p.mu.Lock()
	pages := p.pages
	p.pages = make(map[string]*page)
	p.mu.Unlock()
	for _, pg := range pages {
		pg.ctrl.Close()
	}
}
