package model

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ekisa-team/predictd/internal/backend"
)

// Built-in artifact formats.
const (
	FormatTree   = "tree"
	FormatForest = "forest"
	FormatLinear = "linear"
	FormatBridge = "bridge"
)

// Builder turns a decoded artifact into a predictor.
type Builder func(ctx context.Context, a *Artifact) (Predictor, error)

// Registry maps artifact formats to builders.
type Registry struct {
	builders map[string]Builder
	mu       sync.RWMutex
}

// NewRegistry creates an empty format registry.
func NewRegistry() *Registry {
	return &Registry{
		builders: make(map[string]Builder),
	}
}

// DefaultRegistry returns a registry with every built-in format.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register(FormatTree, buildTree)
	_ = r.Register(FormatForest, buildForest)
	_ = r.Register(FormatLinear, buildLinear)
	_ = r.Register(FormatBridge, buildBridge)

	return r
}

// Register adds a builder for format.
func (r *Registry) Register(format string, b Builder) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(format)
	if _, exists := r.builders[key]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, format)
	}
	r.builders[key] = b

	return nil
}

// Get retrieves the builder for format.
func (r *Registry) Get(format string) (Builder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.builders[strings.ToLower(format)]
	return b, ok
}

// Formats lists the registered formats in sorted order.
func (r *Registry) Formats() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	formats := make([]string, 0, len(r.builders))
	for f := range r.builders {
		formats = append(formats, f)
	}
	sort.Strings(formats)

	return formats
}

// Build builds the predictor for a.
func (r *Registry) Build(ctx context.Context, a *Artifact) (Predictor, error) {
	b, ok := r.Get(a.Format)
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownFormat, a.Format, strings.Join(r.Formats(), ", "))
	}

	return b(ctx, a)
}

func buildTree(_ context.Context, a *Artifact) (Predictor, error) {
	return NewForest(FormatTree, a.Task, a.NFeatures, a.Classes, []TreeSpec{{Nodes: a.Nodes}})
}

func buildForest(_ context.Context, a *Artifact) (Predictor, error) {
	return NewForest(FormatForest, a.Task, a.NFeatures, a.Classes, a.Trees)
}

func buildLinear(_ context.Context, a *Artifact) (Predictor, error) {
	return NewLinear(a)
}

func buildBridge(ctx context.Context, a *Artifact) (Predictor, error) {
	return NewBridge(ctx, a, backend.ExecCommandRunner{})
}
