// Package tool implements the capability registry the model calls into
// during generation. Capabilities are declared explicitly at startup with a
// typed parameter schema; there is no runtime reflection discovery.
package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/chatgate-dev/chatgate/internal/ledger"
)

// InvokeFunc executes a capability with decoded arguments. A returned error
// is normalized to a textual result at the registry boundary; it never
// propagates to the enclosing stream.
type InvokeFunc func(ctx context.Context, args map[string]any) (string, error)

// Capability describes one callable function exposed to the model.
type Capability struct {
	// Name is the function name the model calls, unique across plugins.
	Name string

	// PluginName groups related capabilities for the call ledger.
	PluginName string

	// Description tells the model when to call this capability.
	Description string

	// Parameters is the JSON schema of the arguments object.
	Parameters *jsonschema.Schema

	// Invoke runs the capability.
	Invoke InvokeFunc
}

// Definition is the backend-facing tool declaration.
type Definition struct {
	Name        string
	Description string
	Parameters  *jsonschema.Schema
}

// Registry holds the registered capabilities, looked up by function name at
// call time.
type Registry struct {
	logger *slog.Logger

	mu    sync.RWMutex
	names []string // registration order
	caps  map[string]Capability
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger: logger,
		caps:   make(map[string]Capability),
	}
}

// Register adds a capability. Registering a duplicate or incomplete
// capability is a startup error.
func (r *Registry) Register(c Capability) error {
	if c.Name == "" {
		return fmt.Errorf("capability name required")
	}
	if c.Invoke == nil {
		return fmt.Errorf("capability %q has no invoker", c.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.caps[c.Name]; exists {
		return fmt.Errorf("capability %q already registered", c.Name)
	}
	r.caps[c.Name] = c
	r.names = append(r.names, c.Name)

	r.logger.Info("capability registered",
		slog.String("function", c.Name),
		slog.String("plugin", c.PluginName),
	)
	return nil
}

// Count returns the number of registered capabilities.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.caps)
}

// FunctionNames returns the registered function names in registration order.
func (r *Registry) FunctionNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Definitions exports the tool declarations sent to the backend.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]Definition, 0, len(r.names))
	for _, name := range r.names {
		c := r.caps[name]
		defs = append(defs, Definition{
			Name:        c.Name,
			Description: c.Description,
			Parameters:  c.Parameters,
		})
	}
	return defs
}

// Invoke runs the named capability with the given JSON-encoded arguments and
// returns its result as text. Failures of any kind (unknown function, bad
// arguments, capability error) degrade to a descriptive error string; tool
// failures never abort the enclosing stream. Every invocation, success or
// failure, is reported to the session ledger carried by ctx, if one exists,
// with measured wall-clock execution time.
func (r *Registry) Invoke(ctx context.Context, functionName, argsJSON string) string {
	start := time.Now()

	args := map[string]any{}
	if argsJSON != "" {
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			result := fmt.Sprintf("Error: invalid arguments for %s: %v", functionName, err)
			r.record(ctx, functionName, "", args, result, time.Since(start))
			return result
		}
	}

	r.mu.RLock()
	c, ok := r.caps[functionName]
	r.mu.RUnlock()

	if !ok {
		result := fmt.Sprintf("Error: unknown function '%s'", functionName)
		r.logger.Warn("unknown function invoked", slog.String("function", functionName))
		r.record(ctx, functionName, "", args, result, time.Since(start))
		return result
	}

	result, err := c.Invoke(ctx, args)
	elapsed := time.Since(start)
	if err != nil {
		result = fmt.Sprintf("Error: %v", err)
		r.logger.Warn("capability failed",
			slog.String("function", functionName),
			slog.String("error", err.Error()),
		)
	} else {
		r.logger.Info("capability invoked",
			slog.String("function", functionName),
			slog.Duration("duration", elapsed),
		)
	}

	r.record(ctx, functionName, c.PluginName, args, result, elapsed)
	return result
}

func (r *Registry) record(ctx context.Context, functionName, pluginName string, args map[string]any, result string, elapsed time.Duration) {
	l := ledger.FromContext(ctx)
	if l == nil {
		return
	}
	l.Record(functionName, pluginName, args, result, elapsed)
}
