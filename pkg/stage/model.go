package stage

import (
	"path"
	"strings"

	"github.com/go-errors/errors"
	"github.com/gaia-platform/gdev/pkg/cfg"
	"github.com/gaia-platform/gdev/pkg/graph"
	"github.com/gaia-platform/gdev/pkg/memo"
	"github.com/sirupsen/logrus"
)

// Model derives stages from a dependency graph for one option set. Stages are
// memoized by key, so a target reached along several paths is one stage.
type Model struct {
	Log     *logrus.Entry
	Graph   *graph.Graph
	Layout  cfg.Layout
	Enables cfg.Enables

	memo *memo.Cache
}

// NewModel returns a model over g
func NewModel(log *logrus.Entry, g *graph.Graph, layout cfg.Layout, enables cfg.Enables, cache *memo.Cache) *Model {
	return &Model{
		Log:     log,
		Graph:   g,
		Layout:  layout,
		Enables: enables,
		memo:    cache,
	}
}

// Stage returns the stage of the given kind for target
func (m *Model) Stage(target string, kind Kind) (*Stage, error) {
	return m.resolve(Key{Target: cfg.NormalizeTarget(target), Kind: kind}, []Key{})
}

func (m *Model) resolve(key Key, path []Key) (*Stage, error) {
	for _, seen := range path {
		if seen == key {
			return nil, errors.Errorf("Include cycle: %s", describeCycle(append(path, key)))
		}
	}
	path = append(path, key)

	return memo.Get(m.memo, memo.Key("stage", key.Target, string(key.Kind), m.Enables.Key()), func() (*Stage, error) {
		spec, ok := kinds[key.Kind]
		if !ok {
			return nil, errors.Errorf("Stage kind %q can't be derived from a config file", key.Kind)
		}

		file, ok := m.Graph.File(key.Target)
		if !ok {
			return nil, errors.Errorf("Target %q is not part of the dependency graph of %q", key.Target, m.Graph.Root.Target)
		}

		stage := &Stage{
			Key:     key,
			Name:    Name(key.Target, key.Kind),
			Base:    spec.base,
			Workdir: m.Layout.BuildPath(key.Target),
			Inputs:  []*Stage{},
		}

		if spec.includes {
			for _, included := range m.Graph.Includes(key.Target) {
				input, err := m.resolve(Key{Target: included.Target, Kind: KindStage}, path)
				if err != nil {
					return nil, err
				}
				stage.Inputs = append(stage.Inputs, input)
			}
		}
		for _, kind := range spec.inputs {
			input, err := m.resolve(Key{Target: key.Target, Kind: kind}, path)
			if err != nil {
				return nil, err
			}
			stage.Inputs = append(stage.Inputs, input)
		}

		if spec.run != nil {
			stage.Run = spec.run(file.Lines(spec.section, m.Enables))
		}
		if spec.env {
			stage.Env = m.env(key.Target, map[string]bool{})
		}
		if key.Kind == KindPreStage {
			stage.Copies = m.copies(file)
		}

		m.Log.WithField("stage", stage.Name).Debugf("resolved with %d inputs", len(stage.Inputs))

		return stage, nil
	})
}

// env aggregates ENV lines depth first over the include graph: everything a
// target includes comes before its own lines, and each target counts once
func (m *Model) env(target string, seen map[string]bool) []string {
	if seen[target] {
		return nil
	}
	seen[target] = true

	lines := []string{}
	for _, included := range m.Graph.Includes(target) {
		lines = append(lines, m.env(included.Target, seen)...)
	}
	if file, ok := m.Graph.File(target); ok {
		lines = append(lines, file.Lines(cfg.SectionEnv, m.Enables)...)
	}
	return lines
}

// copies returns the COPY lines bringing a target's own sources into the
// image: the paths of its copy section, or else the whole directory when it
// holds anything besides its config file
func (m *Model) copies(file *cfg.File) []string {
	if file.HasSection(cfg.SectionCopy) {
		copies := []string{}
		for _, rel := range file.Lines(cfg.SectionCopy, m.Enables) {
			contextPath := path.Join(file.Target, rel)
			copies = append(copies, "COPY "+contextPath+" "+m.Layout.SourcePath(contextPath))
		}
		return copies
	}
	if file.HasSiblings {
		return []string{"COPY " + file.Target + " " + m.Layout.SourcePath(file.Target)}
	}
	return nil
}

func describeCycle(keys []Key) string {
	targets := []string{}
	for _, key := range keys {
		if key.Kind == KindStage {
			targets = append(targets, key.Target)
		}
	}
	return strings.Join(targets, " -> ")
}
