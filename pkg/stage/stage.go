// Package stage derives build stages from config files and composes them into
// a multi-stage dockerfile.
package stage

import (
	"fmt"
	"strings"

	"github.com/gaia-platform/gdev/pkg/cfg"
)

// Key identifies a stage: one kind of one target
type Key struct {
	Target string
	Kind   Kind
}

func (k Key) String() string {
	return fmt.Sprintf("%s(%s)", k.Kind, k.Target)
}

// Stage is one `FROM ... AS <name>` unit. A stage with an empty Run is never
// emitted unless it is the target itself, and is never copied from. Stages
// are shared between everything that depends on them and never modified.
type Stage struct {
	Key  Key
	Name string
	// Base is the stage named in the FROM line
	Base    string
	Run     string
	Env     []string
	Workdir string
	// Copies are the path scoped COPY lines this stage contributes to whatever
	// stage ends up holding its filesystem
	Copies []string
	Inputs []*Stage
}

// Name returns the docker stage name of a kind of a target
func Name(target string, kind Kind) string {
	prefix := strings.ReplaceAll(target, "/", "__")
	if target == cfg.RootTarget {
		prefix = "root"
	}
	return strings.ToLower(prefix + "__" + string(kind))
}

// NewCustom layers extra input stages on top of base, as a new stage. base
// itself is left as it is.
func NewCustom(base *Stage, extra []*Stage, run string) *Stage {
	env := append([]string{}, base.Env...)
	seen := map[string]bool{}
	for _, line := range env {
		seen[line] = true
	}
	for _, input := range extra {
		for _, line := range input.Env {
			if !seen[line] {
				seen[line] = true
				env = append(env, line)
			}
		}
	}

	key := Key{Target: base.Key.Target, Kind: KindCustom}
	return &Stage{
		Key:     key,
		Name:    Name(key.Target, key.Kind),
		Base:    BaseStage,
		Run:     run,
		Env:     env,
		Workdir: base.Workdir,
		Inputs:  append([]*Stage{base}, extra...),
	}
}
