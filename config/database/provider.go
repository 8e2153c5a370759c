package database

import (
	"context"
	"errors"
	"sync"

	"naskah/config"

	"go.uber.org/zap"
)

// ErrClosed is returned by Provider.Get after Close.
var ErrClosed = errors.New("database provider closed")

// Provider owns the process's Data-Access Handle. The handle is built on the
// first Get; a failed build is returned to that caller and retried by the next.
type Provider struct {
	cfg  *config.Config
	log  *zap.Logger
	open func(context.Context, *config.Config, *zap.Logger) (*Handle, error)

	mu     sync.Mutex
	handle *Handle
	closed bool
}

func NewProvider(cfg *config.Config, log *zap.Logger) *Provider {
	if log == nil {
		log = zap.NewNop()
	}
	return &Provider{cfg: cfg, log: log, open: Open}
}

// Get returns the shared handle, constructing it on first use.
func (p *Provider) Get(ctx context.Context) (*Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrClosed
	}
	if p.handle != nil {
		return p.handle, nil
	}

	h, err := p.open(ctx, p.cfg, p.log)
	if err != nil {
		p.log.Error("Failed to open database connection", zap.Error(err))
		return nil, err
	}
	p.handle = h
	return h, nil
}

// Ping builds the handle if needed and checks connectivity.
func (p *Provider) Ping(ctx context.Context) error {
	h, err := p.Get(ctx)
	if err != nil {
		return err
	}
	return h.Ping(ctx)
}

// Close is the shutdown hook for the handle. It releases this provider's
// reference, so a handle shared with another provider stays open for it. It
// is safe to call when the handle was never built.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	if p.handle == nil {
		return nil
	}
	err := p.handle.Close()
	p.handle = nil
	return err
}
