// Package pipeline runs a batch as an explicit dependency graph of named
// stages. Each stage declares the stages it depends on and stages with
// satisfied dependencies run concurrently. The first stage failure cancels
// the rest of the run.
package pipeline

import (
	"fmt"

	"golang.org/x/net/context"
)

// StageFunc does the work of one stage. It should honour ctx cancellation on
// blocking operations and return an error to fail the run.
type StageFunc func(ctx context.Context) error

// Stage is one named node in the graph.
type Stage struct {
	Name      string
	DependsOn []string // names of stages that must complete before this one starts.
	Run       StageFunc
}

// Graph is a validated set of stages ready to run.
type Graph struct {
	stages []Stage
	byName map[string]int // stage name to index in stages.
}

// NewGraph validates the supplied stages and returns a runnable Graph.
// Validation fails on empty or duplicate stage names, dependencies on unknown
// stages, missing Run funcs and dependency cycles.
func NewGraph(stages ...Stage) (*Graph, error) {
	g := &Graph{
		stages: stages,
		byName: make(map[string]int, len(stages)),
	}
	for idx, s := range stages {
		if s.Name == "" {
			return nil, fmt.Errorf("stage %v has no name", idx)
		}
		if s.Run == nil {
			return nil, fmt.Errorf("stage %v has no run func", s.Name)
		}
		if _, exists := g.byName[s.Name]; exists {
			return nil, fmt.Errorf("duplicate stage name %v", s.Name)
		}
		g.byName[s.Name] = idx
	}
	for _, s := range stages {
		for _, dep := range s.DependsOn {
			if _, exists := g.byName[dep]; !exists {
				return nil, fmt.Errorf("stage %v depends on unknown stage %v", s.Name, dep)
			}
		}
	}
	if cycle := g.findCycle(); cycle != "" {
		return nil, fmt.Errorf("dependency cycle involving stage %v", cycle)
	}
	return g, nil
}

// Stages returns the stage names in a valid topological execution order.
func (g *Graph) Stages() []string {
	order := make([]string, 0, len(g.stages))
	visited := make(map[string]bool, len(g.stages))
	var visit func(name string)
	visit = func(name string) {
		if visited[name] {
			return
		}
		visited[name] = true
		for _, dep := range g.stages[g.byName[name]].DependsOn {
			visit(dep)
		}
		order = append(order, name)
	}
	for _, s := range g.stages {
		visit(s.Name)
	}
	return order
}

// findCycle returns the name of a stage on a dependency cycle, or "".
func (g *Graph) findCycle() string {
	const (
		unvisited = iota
		inProgress
		complete
	)
	state := make(map[string]int, len(g.stages))
	var visit func(name string) string
	visit = func(name string) string {
		switch state[name] {
		case inProgress: // we came back around to a stage on the current path...
			return name
		case complete:
			return ""
		}
		state[name] = inProgress
		for _, dep := range g.stages[g.byName[name]].DependsOn {
			if found := visit(dep); found != "" {
				return found
			}
		}
		state[name] = complete
		return ""
	}
	for _, s := range g.stages {
		if found := visit(s.Name); found != "" {
			return found
		}
	}
	return ""
}
