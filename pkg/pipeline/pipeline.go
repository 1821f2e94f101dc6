// Package pipeline implements gdev's actions. Each action depends on the one
// before it: cfg, dockerfile, build, then run or push. Every action runs at
// most once per distinct set of options within an invocation.
package pipeline

import (
	"context"
	"fmt"

	"github.com/distribution/reference"
	"github.com/gaia-platform/gdev/pkg/cache"
	"github.com/gaia-platform/gdev/pkg/cfg"
	"github.com/gaia-platform/gdev/pkg/commands"
	"github.com/gaia-platform/gdev/pkg/config"
	"github.com/gaia-platform/gdev/pkg/graph"
	"github.com/gaia-platform/gdev/pkg/i18n"
	"github.com/gaia-platform/gdev/pkg/memo"
	"github.com/gaia-platform/gdev/pkg/mixin"
	"github.com/gaia-platform/gdev/pkg/run"
	"github.com/gaia-platform/gdev/pkg/stage"
	"github.com/gaia-platform/gdev/pkg/utils"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/sirupsen/logrus"
)

// Docker is what the pipeline needs from the container engine
type Docker interface {
	cache.Images
	Build(ctx context.Context, opts commands.BuildOptions) error
	Prune(ctx context.Context) error
	Tag(ctx context.Context, source string, target string) error
	Push(ctx context.Context, ref string) error
	// Run only returns if it fails
	Run(flags []string, ref string, trailingArgs string) error
}

// Files is what the pipeline needs from the filesystem
type Files interface {
	ReadFile(path string) (string, bool, error)
	WriteFile(path string, content string) error
	Remove(path string) error
	MkdirAll(path string) error
	FileExists(path string) (bool, error)
}

// Pipeline runs actions against the repo described by Layout
type Pipeline struct {
	Log    *logrus.Entry
	Tr     *i18n.TranslationSet
	Config *config.AppConfig
	Layout cfg.Layout
	Git    cache.Source
	Docker Docker
	Files  Files
	User   mixin.HostUser

	loader  *cfg.Loader
	decider *cache.Decider
	runner  *run.Builder
	memo    *memo.Cache
}

// NewPipeline returns a pipeline. Everything it computes is remembered in cache.
func NewPipeline(
	log *logrus.Entry,
	tr *i18n.TranslationSet,
	appConfig *config.AppConfig,
	layout cfg.Layout,
	git cache.Source,
	docker Docker,
	files Files,
	user mixin.HostUser,
	memoCache *memo.Cache,
) *Pipeline {
	return &Pipeline{
		Log:     log,
		Tr:      tr,
		Config:  appConfig,
		Layout:  layout,
		Git:     git,
		Docker:  docker,
		Files:   files,
		User:    user,
		loader:  cfg.NewLoader(log, layout, memoCache),
		decider: cache.NewDecider(log, git, docker, layout.RepoRoot, memoCache),
		runner:  run.NewBuilder(log, layout, appConfig.UserConfig.Mixins, user, appConfig.UserConfig.Build.ShmSize),
		memo:    memoCache,
	}
}

// Composed is the outcome of the dockerfile action
type Composed struct {
	Dockerfile *stage.Dockerfile
	// Path is where the dockerfile was written
	Path string
	// Graph holds every config file that went into the dockerfile, mixins included
	Graph *graph.Graph
}

func (p *Pipeline) enables(opts config.Options) cfg.Enables {
	return cfg.NewEnables(opts.Enables()...)
}

func (p *Pipeline) logFor(opts config.Options) *logrus.Entry {
	return p.Log.WithField("target", opts.Target)
}

// Cfg renders the target's config file as it reads with these options, with
// every disabled line commented out behind a hint saying how to enable it
func (p *Pipeline) Cfg(ctx context.Context, opts config.Options) (string, error) {
	return memo.Get(p.memo, memo.Key("action.cfg", opts.Key()), func() (string, error) {
		file, err := p.loader.Load(opts.Target)
		if err != nil {
			return "", err
		}
		return file.Render(p.enables(opts)) + "\n", nil
	})
}

// Dockerfile composes the target's dockerfile and writes it to the output dir
func (p *Pipeline) Dockerfile(ctx context.Context, opts config.Options) (*Composed, error) {
	return memo.Get(p.memo, memo.Key("action.dockerfile", opts.Key()), func() (*Composed, error) {
		if _, err := p.Cfg(ctx, opts); err != nil {
			return nil, err
		}

		log := p.logFor(opts)
		enables := p.enables(opts)
		builder := graph.NewBuilder(log, p.loader, enables, p.memo)

		g, err := builder.Build(ctx, opts.Target)
		if err != nil {
			return nil, err
		}

		base, err := stage.NewModel(log, g, p.Layout, enables, p.memo).Stage(opts.Target, stage.KindStage)
		if err != nil {
			return nil, err
		}

		composer := mixin.NewComposer(log, builder, p.Layout, enables, p.Config.UserConfig.Mixins, p.User, p.memo)
		composition, err := composer.Compose(ctx, base, g, opts.SortedMixins())
		if err != nil {
			return nil, err
		}

		dockerfile := stage.Compose(composition.Stage, opts.BaseImage)
		path := p.Layout.DockerfilePath(opts.Target, string(composition.Stage.Key.Kind))

		if err := p.write(log, path, dockerfile.Text); err != nil {
			return nil, err
		}

		return &Composed{Dockerfile: dockerfile, Path: path, Graph: composition.Graph}, nil
	})
}

func (p *Pipeline) write(log *logrus.Entry, path string, text string) error {
	previous, exists, err := p.Files.ReadFile(path)
	if err != nil {
		return err
	}
	if exists && previous == text {
		return nil
	}

	if exists {
		diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        difflib.SplitLines(previous),
			B:        difflib.SplitLines(text),
			FromFile: path,
			ToFile:   path,
			Context:  2,
		})
		if err == nil {
			log.Debug(utils.ResolvePlaceholderString(p.Tr.DockerfileChanged, map[string]string{"path": path}) + "\n" + diff)
		}
	} else {
		log.Info(utils.ResolvePlaceholderString(p.Tr.CreatingDockerfile, map[string]string{"path": path}))
	}

	return p.Files.WriteFile(path, text)
}

func (p *Pipeline) decide(ctx context.Context, opts config.Options) (*Composed, *cache.Decision, error) {
	composed, err := p.Dockerfile(ctx, opts)
	if err != nil {
		return nil, nil, err
	}

	decision, err := p.decider.Decide(ctx, cache.Request{
		Dockerfile: composed.Dockerfile,
		Dirs:       composed.Graph.Targets(),
		Mixins:     opts.SortedMixins(),
		Force:      opts.Force,
		Tainted:    opts.Tainted,
	})
	if err != nil {
		return nil, nil, err
	}
	return composed, decision, nil
}

// Build builds the target's image unless an image with the labels we want is
// already there. A failed build removes the dockerfile it was built from.
func (p *Pipeline) Build(ctx context.Context, opts config.Options) (*cache.Decision, error) {
	return memo.Get(p.memo, memo.Key("action.build", opts.Key()), func() (*cache.Decision, error) {
		composed, decision, err := p.decide(ctx, opts)
		if err != nil {
			return nil, err
		}

		log := p.logFor(opts)
		placeholders := map[string]string{"tag": decision.Tag.String(), "path": composed.Path}

		if !decision.NeedsBuild {
			log.Info(utils.ResolvePlaceholderString(p.Tr.ImageUpToDate, placeholders))
			return decision, nil
		}

		log.Info(utils.ResolvePlaceholderString(p.Tr.BuildingImage, placeholders))

		err = p.Docker.Build(ctx, commands.BuildOptions{
			Dockerfile: composed.Path,
			Tag:        decision.Tag.String(),
			Labels:     decision.Wanted,
			Platform:   opts.Platform,
			ShmSize:    p.Config.UserConfig.Build.ShmSize,
			CacheFrom:  cache.CacheFrom(opts.Registry, composed.Dockerfile),
			Context:    p.Layout.RepoRoot,
		})
		if err != nil {
			log.Warn(utils.ResolvePlaceholderString(p.Tr.RemovingFailedDockerfile, placeholders))
			if removeErr := p.Files.Remove(composed.Path); removeErr != nil {
				log.Error(removeErr)
			}
			return nil, err
		}

		if err := p.Docker.Prune(ctx); err != nil {
			return nil, err
		}

		return decision, nil
	})
}

// Run builds the target's image if need be, then replaces gdev with a
// container running it. Arguments are checked before anything else happens.
// On success Run never returns.
func (p *Pipeline) Run(ctx context.Context, opts config.Options) error {
	if _, err := run.TrailingArgs(opts.Args); err != nil {
		return err
	}

	decision, err := p.Build(ctx, opts)
	if err != nil {
		return err
	}
	composed, err := p.Dockerfile(ctx, opts)
	if err != nil {
		return err
	}

	log := p.logFor(opts)
	for _, mount := range opts.Mounts {
		placeholders := map[string]string{"path": mount.HostPath}
		exists, err := p.Files.FileExists(mount.HostPath)
		if err != nil {
			return utils.WrapError(err)
		}
		if exists {
			log.Info(utils.ResolvePlaceholderString(p.Tr.BindingHostPath, placeholders))
			continue
		}
		log.Info(utils.ResolvePlaceholderString(p.Tr.CreatingHostPath, placeholders))
		if err := p.Files.MkdirAll(mount.HostPath); err != nil {
			return err
		}
	}

	spec, err := p.runner.Flags(composed.Dockerfile.Target, opts)
	if err != nil {
		return err
	}

	log.Info(utils.ResolvePlaceholderString(p.Tr.RunningContainer, map[string]string{"tag": decision.Tag.String()}))

	return p.Docker.Run(spec.Flags, decision.Tag.String(), spec.TrailingArgs)
}

// Push builds the target's image if need be and uploads it to the registry
// under its own tag and as latest. Tainted images are refused before anything
// gets built.
func (p *Pipeline) Push(ctx context.Context, opts config.Options) error {
	_, err := memo.Get(p.memo, memo.Key("action.push", opts.Key()), func() (struct{}, error) {
		if opts.Registry == "" {
			return struct{}{}, fmt.Errorf("Pushing %s needs a registry, set one with --registry or build.registry in your config", opts.Target)
		}

		_, decision, err := p.decide(ctx, opts)
		if err != nil {
			return struct{}{}, err
		}
		if err := decision.CheckPush(); err != nil {
			return struct{}{}, err
		}

		refs := []string{decision.Tag.Remote(opts.Registry), decision.Tag.RemoteLatest(opts.Registry)}
		for _, ref := range refs {
			if _, err := reference.ParseNormalizedNamed(ref); err != nil {
				return struct{}{}, fmt.Errorf("Invalid image reference '%s': %v", ref, err)
			}
		}

		if _, err := p.Build(ctx, opts); err != nil {
			return struct{}{}, err
		}

		log := p.logFor(opts)
		for _, ref := range refs {
			log.Info(utils.ResolvePlaceholderString(p.Tr.PushingImage, map[string]string{"ref": ref}))
			if err := p.Docker.Tag(ctx, decision.Tag.String(), ref); err != nil {
				return struct{}{}, err
			}
			if err := p.Docker.Push(ctx, ref); err != nil {
				return struct{}{}, err
			}
		}
		return struct{}{}, nil
	})
	return err
}
