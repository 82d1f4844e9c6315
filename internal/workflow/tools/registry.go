// Package tools holds the registry of named state-transforming tools and
// the built-in data-quality pipeline tools.
package tools

import (
	"sync"

	"github.com/awmpietro/golang-workflow-engine-case/internal/workflow"
)

// Func adapts a plain function to the workflow.Tool interface.
type Func func(state map[string]any) (map[string]any, error)

func (f Func) Apply(state map[string]any) (map[string]any, error) {
	return f(state)
}

// Registry is a closed-but-extensible lookup table: the engine only reads
// it, callers may register additional tools before starting runs.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]workflow.Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: map[string]workflow.Tool{}}
}

func (r *Registry) Register(name string, t workflow.Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[name] = t
}

func (r *Registry) Lookup(name string) (workflow.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Builtin returns a registry preloaded with the data-quality tools.
func Builtin() *Registry {
	r := NewRegistry()
	r.Register("profile", Func(Profile))
	r.Register("detect_anomalies", Func(DetectAnomalies))
	r.Register("generate_rules", Func(GenerateRules))
	r.Register("apply_rules", Func(ApplyRules))
	return r
}
