package model

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

// Engine is the opaque inference backend: a 4-D input in, a 4-D output out.
// Implementations need not be safe for concurrent use.
type Engine interface {
	Run(Tensor) (Tensor, error)
	Close() error
}

// EngineLoader builds an Engine for the model file at path.
type EngineLoader func(path string) (Engine, error)

// PathResolver finds the model and config files.
type PathResolver func() (Paths, error)

// Session binds one loaded model to its ModelConfig. Loading is deferred to the
// first call that needs it and happens at most once; a failed load is kept and
// returned to every later caller.
type Session struct {
	resolve PathResolver
	load    EngineLoader

	once   sync.Once
	engine Engine
	config ModelConfig
	paths  Paths
	err    error
	ready  atomic.Bool

	// engine handles are not reentrant
	runMu sync.Mutex
}

// NewSession returns an unloaded session.
func NewSession(resolve PathResolver, load EngineLoader) *Session {
	return &Session{resolve: resolve, load: load}
}

// Load resolves paths, parses the config and loads the engine on first use.
// Concurrent callers block until the first attempt finishes.
func (s *Session) Load() error {
	s.once.Do(func() {
		s.err = s.doLoad()
		if s.err != nil {
			log.WithError(s.err).Error("Model init failed")
		}
	})
	return s.err
}

func (s *Session) doLoad() error {
	paths, err := s.resolve()
	if err != nil {
		return err
	}

	cfg, err := LoadConfig(paths.Config)
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"model":    paths.Model,
		"backbone": cfg.Backbone,
		"channels": cfg.InChannels,
	}).Info("Loading model")

	engine, err := s.load(paths.Model)
	if err != nil {
		if !errors.Is(err, ErrModelLoad) {
			err = fmt.Errorf("%w: %w", ErrModelLoad, err)
		}
		return err
	}

	s.engine = engine
	s.config = cfg
	s.paths = paths
	s.ready.Store(true)
	return nil
}

// Config returns the loaded ModelConfig, loading the model if needed.
func (s *Session) Config() (ModelConfig, error) {
	if err := s.Load(); err != nil {
		return ModelConfig{}, err
	}
	return s.config, nil
}

// Paths returns the resolved model files, loading the model if needed.
func (s *Session) Paths() (Paths, error) {
	if err := s.Load(); err != nil {
		return Paths{}, err
	}
	return s.paths, nil
}

// Ready reports whether a load has completed successfully. It never triggers
// a load.
func (s *Session) Ready() bool {
	return s.ready.Load()
}

// Run executes one inference under the session lock and checks that the
// output is a rank-4 tensor consistent with its data.
func (s *Session) Run(in Tensor) (Tensor, error) {
	if err := s.Load(); err != nil {
		return Tensor{}, err
	}

	s.runMu.Lock()
	if s.engine == nil {
		s.runMu.Unlock()
		return Tensor{}, fmt.Errorf("%w: session closed", ErrInference)
	}
	out, err := s.engine.Run(in)
	s.runMu.Unlock()
	if err != nil {
		return Tensor{}, fmt.Errorf("%w: %w", ErrInference, err)
	}

	if len(out.Shape) != 4 {
		return Tensor{}, fmt.Errorf("%w: %v", ErrShape, out.Shape)
	}
	if out.Size() != int64(len(out.Data)) {
		return Tensor{}, fmt.Errorf("%w: shape %v holds %d values, got %d",
			ErrShape, out.Shape, out.Size(), len(out.Data))
	}
	return out, nil
}

// Close releases the engine if one was loaded.
func (s *Session) Close() error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.engine == nil {
		return nil
	}
	err := s.engine.Close()
	s.engine = nil
	s.ready.Store(false)
	return err
}
