package fsq

import (
	"sync"

	"github.com/995933447/runtimeutil"
)

// Supervisor manages a set of named Engines sharing one process, the way
// internal/mgr/topic.go's TopicMgr manages named topics: a per-name mutex
// factory so concurrent operations on different names never contend,
// guarding a plain map for the actual registry.
type Supervisor struct {
	mu           sync.RWMutex
	engines      map[string]*Engine
	opMuFactory  *runtimeutil.MulElemMuFactory
	newConfig    func(name string) Config
}

// NewSupervisor builds an empty Supervisor. newConfig is called once per
// name the first time Open sees it, to produce that Engine's Config.
func NewSupervisor(newConfig func(name string) Config) *Supervisor {
	return &Supervisor{
		engines:     map[string]*Engine{},
		opMuFactory: runtimeutil.NewMulElemMuFactory(),
		newConfig:   newConfig,
	}
}

// Open returns the Engine for name, constructing it on first use.
// Concurrent Open calls for different names never block each other;
// concurrent Open calls for the same name are serialized so the Engine is
// constructed exactly once.
func (s *Supervisor) Open(name string) (*Engine, error) {
	s.mu.RLock()
	if e, ok := s.engines[name]; ok {
		s.mu.RUnlock()
		return e, nil
	}
	s.mu.RUnlock()

	opMu := s.opMuFactory.MakeOrGetSpecElemMu(name)
	opMu.Lock()
	defer opMu.Unlock()

	s.mu.RLock()
	if e, ok := s.engines[name]; ok {
		s.mu.RUnlock()
		return e, nil
	}
	s.mu.RUnlock()

	e, err := New(s.newConfig(name))
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.engines[name] = e
	s.mu.Unlock()

	return e, nil
}

// Close shuts down and evicts the Engine registered under name, if any.
func (s *Supervisor) Close(name string) error {
	opMu := s.opMuFactory.MakeOrGetSpecElemMu(name)
	opMu.Lock()
	defer opMu.Unlock()

	s.mu.Lock()
	e, ok := s.engines[name]
	if ok {
		delete(s.engines, name)
	}
	s.mu.Unlock()

	if !ok {
		return nil
	}
	return e.Shutdown()
}

// CloseAll shuts down every registered Engine, collecting the first error
// but still attempting the rest.
func (s *Supervisor) CloseAll() error {
	s.mu.Lock()
	engines := make(map[string]*Engine, len(s.engines))
	for name, e := range s.engines {
		engines[name] = e
	}
	s.engines = map[string]*Engine{}
	s.mu.Unlock()

	var firstErr error
	for _, e := range engines {
		if err := e.Shutdown(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Names returns the currently open engine names.
func (s *Supervisor) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.engines))
	for name := range s.engines {
		names = append(names, name)
	}
	return names
}
