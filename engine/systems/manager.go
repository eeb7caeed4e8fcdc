package systems

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer"
)

// SystemManager owns one RendererSystem per window. Renderers share
// nothing: each has its own geometry cache, atlas and batches.
type SystemManager struct {
	config *core.Config

	mutex     sync.RWMutex
	renderers map[uuid.UUID]*RendererSystem
	order     []uuid.UUID
}

func NewSystemManager(config *core.Config) (*SystemManager, error) {
	if config == nil {
		return nil, fmt.Errorf("func NewSystemManager - config must not be nil")
	}
	return &SystemManager{
		config:    config,
		renderers: make(map[uuid.UUID]*RendererSystem),
	}, nil
}

// CreateRenderer builds a renderer on top of backend and registers it
// under a fresh id.
func (sm *SystemManager) CreateRenderer(name string, backend renderer.RendererBackend) (uuid.UUID, *RendererSystem, error) {
	r, err := NewRendererSystem(backend, NewRendererSystemConfig(name, sm.config))
	if err != nil {
		return uuid.Nil, nil, err
	}
	id := uuid.New()

	sm.mutex.Lock()
	sm.renderers[id] = r
	sm.order = append(sm.order, id)
	sm.mutex.Unlock()

	core.LogInfo("renderer '%s' registered as %s", name, id)
	return id, r, nil
}

func (sm *SystemManager) Renderer(id uuid.UUID) (*RendererSystem, bool) {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	r, ok := sm.renderers[id]
	return r, ok
}

// DestroyRenderer shuts a renderer down and forgets it.
func (sm *SystemManager) DestroyRenderer(id uuid.UUID) error {
	sm.mutex.Lock()
	r, ok := sm.renderers[id]
	if ok {
		delete(sm.renderers, id)
		for i, o := range sm.order {
			if o == id {
				sm.order = append(sm.order[:i], sm.order[i+1:]...)
				break
			}
		}
	}
	sm.mutex.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", core.ErrUnknownWindow, id)
	}
	return r.Shutdown()
}

// Each visits the renderers in creation order until fn returns false.
func (sm *SystemManager) Each(fn func(uuid.UUID, *RendererSystem) bool) {
	sm.mutex.RLock()
	ids := make([]uuid.UUID, len(sm.order))
	copy(ids, sm.order)
	sm.mutex.RUnlock()

	for _, id := range ids {
		r, ok := sm.Renderer(id)
		if !ok {
			continue
		}
		if !fn(id, r) {
			return
		}
	}
}

func (sm *SystemManager) Count() int {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	return len(sm.renderers)
}

func (sm *SystemManager) Shutdown() error {
	sm.mutex.Lock()
	ids := sm.order
	sm.order = nil
	sm.mutex.Unlock()

	var errs []error
	for _, id := range ids {
		sm.mutex.Lock()
		r := sm.renderers[id]
		delete(sm.renderers, id)
		sm.mutex.Unlock()
		if r == nil {
			continue
		}
		if err := r.Shutdown(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
