package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrUnknownEngine is returned when no engine is registered under a name
var ErrUnknownEngine = errors.New("unknown decode engine")

// EngineRegistry holds the decode engines available to the host
type EngineRegistry struct {
	engines []Engine
}

// NewEngineRegistry creates a new empty engine registry
func NewEngineRegistry() *EngineRegistry {
	slog.Debug("creating new engine registry")
	return &EngineRegistry{
		engines: make([]Engine, 0),
	}
}

// Register adds an engine to the registry. A later engine with the same name
// replaces the earlier one.
func (r *EngineRegistry) Register(engine Engine) {
	if engine == nil {
		slog.Warn("attempted to register nil engine")
		return
	}

	name := engine.Name()
	for i, existing := range r.engines {
		if strings.EqualFold(existing.Name(), name) {
			slog.Debug("replacing registered engine", "engine", name)
			r.engines[i] = engine
			return
		}
	}

	r.engines = append(r.engines, engine)
	slog.Debug("engine registered", "engine", name, "total_engines", len(r.engines))
}

// GetEngines returns all registered engines in registration order
func (r *EngineRegistry) GetEngines() []Engine {
	return r.engines
}

// GetSupportedEngines returns the names of all registered engines
func (r *EngineRegistry) GetSupportedEngines() []string {
	names := make([]string, 0, len(r.engines))
	for _, engine := range r.engines {
		names = append(names, engine.Name())
	}
	return names
}

// Lookup finds an engine by name. An empty name selects the first
// registered engine.
func (r *EngineRegistry) Lookup(name string) (Engine, error) {
	if name == "" || name == "auto" {
		if len(r.engines) == 0 {
			return nil, fmt.Errorf("%w: registry is empty", ErrUnknownEngine)
		}
		slog.Debug("selected default engine", "engine", r.engines[0].Name())
		return r.engines[0], nil
	}

	for _, engine := range r.engines {
		if strings.EqualFold(engine.Name(), name) {
			return engine, nil
		}
	}

	slog.Error("no engine registered under name", "engine", name, "supported", r.GetSupportedEngines())
	return nil, fmt.Errorf("%w: %s", ErrUnknownEngine, name)
}
