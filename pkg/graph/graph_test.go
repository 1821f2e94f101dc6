package graph

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/gaia-platform/gdev/pkg/cfg"
	"github.com/gaia-platform/gdev/pkg/commands"
	"github.com/gaia-platform/gdev/pkg/config"
	"github.com/gaia-platform/gdev/pkg/memo"
	"github.com/gaia-platform/gdev/pkg/utils"
	"github.com/stretchr/testify/assert"
)

type countingLoader struct {
	loader *cfg.Loader
	loads  map[string]int
}

func (l *countingLoader) Load(target string) (*cfg.File, error) {
	l.loads[cfg.NormalizeTarget(target)]++
	return l.loader.Load(target)
}

func newRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	repo := t.TempDir()
	for target, content := range files {
		path := filepath.Join(repo, target, "gdev.cfg")
		assert.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		assert.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return repo
}

func newBuilder(repo string, enables ...string) (*Builder, *countingLoader) {
	cache := memo.New()
	layout := cfg.NewLayout(repo, config.GetDefaultConfig().Layout)
	loader := &countingLoader{
		loader: cfg.NewLoader(commands.NewDummyLog(), layout, cache),
		loads:  map[string]int{},
	}
	return NewBuilder(commands.NewDummyLog(), loader, cfg.NewEnables(enables...), cache), loader
}

func TestBuildFollowsEnabledIncludes(t *testing.T) {
	repo := newRepo(t, map[string]string{
		"root": "[include]\na\n{enable_if('X')}b\n",
		"a":    "[apt]\ncurl\n",
		"b":    "[apt]\nwget\n",
	})

	builder, _ := newBuilder(repo)
	graph, err := builder.Build(context.Background(), "root")
	assert.NoError(t, err)
	assert.EqualValues(t, []string{"root", "a"}, graph.Targets())

	_, ok := graph.File("b")
	assert.False(t, ok)

	builder, _ = newBuilder(repo, "X")
	graph, err = builder.Build(context.Background(), "root")
	assert.NoError(t, err)
	assert.EqualValues(t, []string{"root", "a", "b"}, graph.Targets())

	includes := graph.Includes("root")
	assert.Len(t, includes, 2)
	assert.EqualValues(t, "a", includes[0].Target)
	assert.EqualValues(t, "b", includes[1].Target)
}

func TestBuildLoadsSharedIncludesOnce(t *testing.T) {
	repo := newRepo(t, map[string]string{
		"root":       "[include]\nleft\nright\n",
		"left":       "[include]\ncommon\n",
		"right":      "[include]\ncommon\n",
		"common":     "[include]\ncommon/sub\n",
		"common/sub": "[apt]\ncurl\n",
	})

	builder, loader := newBuilder(repo)
	graph, err := builder.Build(context.Background(), "root")
	assert.NoError(t, err)

	assert.EqualValues(t, []string{"root", "left", "right", "common", "common/sub"}, graph.Targets())
	for target, loads := range loader.loads {
		assert.EqualValues(t, 1, loads, target)
	}
	assert.Same(t, graph.Includes("left")[0], graph.Includes("right")[0])

	again, err := builder.Build(context.Background(), "root")
	assert.NoError(t, err)
	assert.Same(t, graph, again)
}

func TestBuildToleratesIncludeCycles(t *testing.T) {
	repo := newRepo(t, map[string]string{
		"a": "[include]\nb\n",
		"b": "[include]\na\n",
	})

	builder, _ := newBuilder(repo)
	graph, err := builder.Build(context.Background(), "a")
	assert.NoError(t, err)
	assert.EqualValues(t, []string{"a", "b"}, graph.Targets())
	assert.EqualValues(t, "a", graph.Includes("b")[0].Target)
}

func TestBuildMissingInclude(t *testing.T) {
	repo := newRepo(t, map[string]string{
		"root": "[include]\na\n",
		"a":    "[include]\nmissing/child\n",
	})

	builder, _ := newBuilder(repo)
	graph, err := builder.Build(context.Background(), "root")
	assert.Nil(t, graph)
	assert.True(t, utils.HasErrorCode(err, utils.ConfigNotFound))
	assert.EqualValues(t, `File "<repo_root>/missing/child/gdev.cfg" must exist.`, utils.ErrorMessage(err))
}

// TestBuildIncludeOutsideRepo is a function.
func TestBuildIncludeOutsideRepo(t *testing.T) {
	type scenario struct {
		testName string
		include  string
	}

	scenarios := []scenario{
		{testName: "parent dir", include: ".."},
		{testName: "climbs out", include: "../../etc"},
		{testName: "climbs out after descending", include: "a/../../etc"},
	}

	for _, s := range scenarios {
		s := s
		t.Run(s.testName, func(t *testing.T) {
			repo := newRepo(t, map[string]string{
				"root": "[include]\n" + s.include + "\n",
			})

			builder, loader := newBuilder(repo)
			graph, err := builder.Build(context.Background(), "root")
			assert.Nil(t, graph)
			assert.Error(t, err)
			assert.Contains(t, err.Error(), "is not inside the repo")
			assert.Contains(t, err.Error(), s.include)
			assert.EqualValues(t, map[string]int{"root": 1}, loader.loads)
		})
	}
}

func TestMerge(t *testing.T) {
	repo := newRepo(t, map[string]string{
		"root":       "[include]\ncommon\n",
		"common":     "[apt]\ncurl\n",
		"mixin/sudo": "[include]\ncommon\n[apt]\nsudo\n",
		"mixin/gdb":  "[apt]\ngdb\n",
	})

	builder, _ := newBuilder(repo)
	root, err := builder.Build(context.Background(), "root")
	assert.NoError(t, err)
	sudo, err := builder.Build(context.Background(), "mixin/sudo")
	assert.NoError(t, err)
	gdb, err := builder.Build(context.Background(), "mixin/gdb")
	assert.NoError(t, err)

	merged := root.Merge(sudo, gdb)
	assert.Same(t, root.Root, merged.Root)
	assert.EqualValues(t, []string{"root", "common", "mixin/sudo", "mixin/gdb"}, merged.Targets())
	assert.EqualValues(t, "common", merged.Includes("mixin/sudo")[0].Target)

	// the inputs are untouched
	assert.EqualValues(t, []string{"root", "common"}, root.Targets())
}
