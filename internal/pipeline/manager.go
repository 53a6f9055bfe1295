package pipeline

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/wxwire/wxwire/internal/types"
)

// Manager owns a set of named pipelines and fans submitted events into
// every one of them.
type Manager struct {
	mu        sync.RWMutex
	pipelines map[string]*Pipeline
	order     []string
	logger    *zap.SugaredLogger
	started   bool
}

// NewManager returns an empty manager.
func NewManager(logger *zap.SugaredLogger) *Manager {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Manager{
		pipelines: make(map[string]*Pipeline),
		logger:    logger.Named("pipeline-manager"),
	}
}

// Add registers a pipeline under its configured name. Pipelines must be
// added before Start.
func (m *Manager) Add(p *Pipeline) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return fmt.Errorf("pipeline manager already started")
	}
	if _, dup := m.pipelines[p.name]; dup {
		return fmt.Errorf("duplicate pipeline %q", p.name)
	}
	m.pipelines[p.name] = p
	m.order = append(m.order, p.name)
	return nil
}

// Get returns the named pipeline.
func (m *Manager) Get(name string) (*Pipeline, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pipelines[name]
	return p, ok
}

// Start launches every registered pipeline.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = true
	for _, name := range m.order {
		m.pipelines[name].Start(ctx)
		m.logger.Infow("pipeline started", "pipeline", name)
	}
}

// Submit delivers an event to every pipeline, honoring each pipeline's
// backpressure in registration order.
func (m *Manager) Submit(ctx context.Context, ev types.Event) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, name := range m.order {
		if err := m.pipelines[name].Submit(ctx, ev); err != nil {
			return fmt.Errorf("pipeline %s: %w", name, err)
		}
	}
	return nil
}

// Stop drains every pipeline. The first error is returned after all
// pipelines have stopped.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var first error
	for _, name := range m.order {
		if err := m.pipelines[name].Stop(ctx); err != nil {
			m.logger.Errorw("pipeline stop failed", "pipeline", name, "error", err)
			if first == nil {
				first = err
			}
		} else {
			m.logger.Infow("pipeline stopped", "pipeline", name)
		}
	}
	return first
}
