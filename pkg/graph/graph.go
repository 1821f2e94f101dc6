// Package graph discovers every config file a target depends on by following
// their include sections.
package graph

import (
	"context"
	"fmt"

	"github.com/gaia-platform/gdev/pkg/cfg"
	"github.com/gaia-platform/gdev/pkg/memo"
	"github.com/sirupsen/logrus"
)

// Loader is how the builder gets at parsed config files
type Loader interface {
	Load(target string) (*cfg.File, error)
}

// Graph is the set of config files reachable from a root file plus the direct
// include edges between them. It is never modified, Merge returns a new graph.
type Graph struct {
	Root *cfg.File

	files     []*cfg.File
	index     map[string]*cfg.File
	adjacency map[string][]*cfg.File
}

// Files returns every file in the graph in discovery order, root first
func (g *Graph) Files() []*cfg.File {
	return append([]*cfg.File{}, g.files...)
}

// File returns the file for target, if it is part of the graph
func (g *Graph) File(target string) (*cfg.File, bool) {
	file, ok := g.index[cfg.NormalizeTarget(target)]
	return file, ok
}

// Includes returns the files target directly includes, in include order
func (g *Graph) Includes(target string) []*cfg.File {
	return append([]*cfg.File{}, g.adjacency[cfg.NormalizeTarget(target)]...)
}

// Targets returns the target of every file in the graph, in discovery order
func (g *Graph) Targets() []string {
	targets := make([]string, len(g.files))
	for i, file := range g.files {
		targets[i] = file.Target
	}
	return targets
}

// Merge returns a graph holding g plus every file and edge of others. The
// root stays g's root.
func (g *Graph) Merge(others ...*Graph) *Graph {
	merged := &Graph{
		Root:      g.Root,
		index:     map[string]*cfg.File{},
		adjacency: map[string][]*cfg.File{},
	}
	for _, graph := range append([]*Graph{g}, others...) {
		for _, file := range graph.files {
			if _, ok := merged.index[file.Target]; ok {
				continue
			}
			merged.files = append(merged.files, file)
			merged.index[file.Target] = file
			merged.adjacency[file.Target] = graph.adjacency[file.Target]
		}
	}
	return merged
}

// Builder builds dependency graphs for one option set
type Builder struct {
	Log     *logrus.Entry
	Loader  Loader
	Enables cfg.Enables

	memo *memo.Cache
}

// NewBuilder returns a builder filtering includes against enables
func NewBuilder(log *logrus.Entry, loader Loader, enables cfg.Enables, cache *memo.Cache) *Builder {
	return &Builder{
		Log:     log,
		Loader:  loader,
		Enables: enables,
		memo:    cache,
	}
}

// Build walks the include sections breadth first from root. Each file is
// loaded once however many files include it; a missing file anywhere fails
// the whole build.
func (b *Builder) Build(ctx context.Context, root string) (*Graph, error) {
	root = cfg.NormalizeTarget(root)

	return memo.Get(b.memo, memo.Key("graph", root, b.Enables.Key()), func() (*Graph, error) {
		rootFile, err := b.Loader.Load(root)
		if err != nil {
			return nil, err
		}

		graph := &Graph{
			Root:      rootFile,
			files:     []*cfg.File{rootFile},
			index:     map[string]*cfg.File{root: rootFile},
			adjacency: map[string][]*cfg.File{},
		}

		queue := []*cfg.File{rootFile}
		for len(queue) > 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			file := queue[0]
			queue = queue[1:]

			includes := []*cfg.File{}
			for _, line := range file.Lines(cfg.SectionInclude, b.Enables) {
				target := cfg.NormalizeTarget(line)
				if cfg.OutsideRepo(target) {
					return nil, fmt.Errorf("Include '%s' in %s is not inside the repo", line, file.Path)
				}
				included, ok := graph.index[target]
				if !ok {
					included, err = b.Loader.Load(target)
					if err != nil {
						return nil, err
					}
					graph.files = append(graph.files, included)
					graph.index[target] = included
					queue = append(queue, included)
				}
				includes = append(includes, included)
			}
			graph.adjacency[file.Target] = includes

			b.Log.WithField("target", file.Target).Debugf("includes %d targets", len(includes))
		}

		return graph, nil
	})
}
