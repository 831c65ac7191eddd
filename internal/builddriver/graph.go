package builddriver

import (
	"fmt"
	"sort"

	"github.com/snowdamiz/meshcore/internal/ast"
	"github.com/snowdamiz/meshcore/internal/stdlib"
)

// dependsOn returns the user-module names m imports directly, skipping
// stdlib modules (§4.I "topo-sort by import graph"). Both import forms
// (`import M1...Mn` and `from M1...Mn import a, b`) name the dependency
// in imp.Names's last segment.
func dependsOn(m *ast.Module) []string {
	var deps []string
	for _, imp := range m.Imports {
		if len(imp.Names) == 0 {
			continue
		}
		name := imp.Names[len(imp.Names)-1]
		if stdlib.IsModule(name) {
			continue
		}
		deps = append(deps, name)
	}
	return deps
}

// ErrImportCycle is returned by levels (and so by Build) when the import
// graph contains a cycle.
type ErrImportCycle struct {
	Cycle []string
}

func (e *ErrImportCycle) Error() string {
	return fmt.Sprintf("builddriver: import cycle detected: %v", e.Cycle)
}

// levels groups module names into dependency "levels": level 0 has no
// user-module dependencies, level k's modules depend only on modules in
// levels < k. Modules within one level have no edges between them, so
// the driver can check them concurrently while still processing levels
// themselves in dependency order (§4.I "for each module in order").
func levels(modules []*ast.Module) ([][]string, error) {
	byName := make(map[string]*ast.Module, len(modules))
	for _, m := range modules {
		byName[m.Name] = m
	}

	depth := make(map[string]int, len(modules))
	visiting := make(map[string]bool)
	resolved := make(map[string]bool)

	var path []string
	var resolve func(name string) (int, error)
	resolve = func(name string) (int, error) {
		if d, ok := depth[name]; ok && resolved[name] {
			return d, nil
		}
		if visiting[name] {
			cycle := append(append([]string{}, path...), name)
			return 0, &ErrImportCycle{Cycle: cycle}
		}

		mod, ok := byName[name]
		if !ok {
			// A dependency on a module outside this build's module
			// set (e.g. a library compiled separately) has no depth
			// contribution of its own.
			return 0, nil
		}

		visiting[name] = true
		path = append(path, name)

		maxDep := -1
		for _, dep := range dependsOn(mod) {
			d, err := resolve(dep)
			if err != nil {
				return 0, err
			}
			if d > maxDep {
				maxDep = d
			}
		}

		path = path[:len(path)-1]
		visiting[name] = false

		d := maxDep + 1
		depth[name] = d
		resolved[name] = true
		return d, nil
	}

	maxLevel := -1
	for _, m := range modules {
		d, err := resolve(m.Name)
		if err != nil {
			return nil, err
		}
		if d > maxLevel {
			maxLevel = d
		}
	}

	out := make([][]string, maxLevel+1)
	for _, m := range modules {
		d := depth[m.Name]
		out[d] = append(out[d], m.Name)
	}
	for _, lvl := range out {
		sort.Strings(lvl)
	}
	return out, nil
}
