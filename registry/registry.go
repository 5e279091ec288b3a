// Package registry provides the two-level stage -> name -> plugin mapping
// shared by every pipeline (spec.md §4.5, C5), grounded on the teacher's
// duck-typed tool/model registration style (graph/tool, graph/model) but
// generalised to the five RAG pipeline stages instead of a flat tool set.
package registry

import (
	"fmt"
	"sync"
)

// Stage names one of the five pipeline roles a plugin can fill.
type Stage string

const (
	StageLoader    Stage = "loader"
	StageEmbedder  Stage = "embedder"
	StageRetriever Stage = "retriever"
	StageReranker  Stage = "reranker"
	StageLLM       Stage = "llm"
)

var validStages = map[Stage]bool{
	StageLoader:    true,
	StageEmbedder:  true,
	StageRetriever: true,
	StageReranker:  true,
	StageLLM:       true,
}

// Registry is a thread-safe stage -> name -> plugin table. Plugins are
// stored as `any` and duck-typed against each stage's capability interface
// at the call site (pipeline.Loader, pipeline.Embedder, …), per spec.md
// §4.5 and §6.1.
type Registry struct {
	mu      sync.RWMutex
	plugins map[Stage]map[string]any
}

// New constructs an empty, independently lockable Registry — tests should
// use this rather than the process-wide Default.
func New() *Registry {
	return &Registry{plugins: make(map[Stage]map[string]any)}
}

var defaultRegistry = New()

// Default returns the process-wide singleton registry.
func Default() *Registry { return defaultRegistry }

// Register stores plugin under stage/name, overwriting any previous
// registration at that key. Returns an error if stage is not one of the
// five recognised values.
func (r *Registry) Register(stage Stage, name string, plugin any) error {
	if !validStages[stage] {
		return fmt.Errorf("unknown plugin stage: %s", stage)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.plugins[stage] == nil {
		r.plugins[stage] = make(map[string]any)
	}
	r.plugins[stage][name] = plugin
	return nil
}

// Get looks up a plugin by stage and name.
func (r *Registry) Get(stage Stage, name string) (any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	byName, ok := r.plugins[stage]
	if !ok {
		return nil, fmt.Errorf("plugin not found: %s/%s", stage, name)
	}
	plugin, ok := byName[name]
	if !ok {
		return nil, fmt.Errorf("plugin not found: %s/%s", stage, name)
	}
	return plugin, nil
}

// List returns the registered plugin names for stage, or every registered
// name across all stages when stage is empty.
func (r *Registry) List(stage Stage) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if stage != "" {
		names := make([]string, 0, len(r.plugins[stage]))
		for name := range r.plugins[stage] {
			names = append(names, name)
		}
		return names
	}
	var all []string
	for _, byName := range r.plugins {
		for name := range byName {
			all = append(all, name)
		}
	}
	return all
}
