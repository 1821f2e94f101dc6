package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/distribution/reference"
	"github.com/gaia-platform/gdev/pkg/cfg"
	"github.com/gaia-platform/gdev/pkg/commands"
	"github.com/gaia-platform/gdev/pkg/commands/ssh"
	"github.com/gaia-platform/gdev/pkg/config"
	"github.com/gaia-platform/gdev/pkg/i18n"
	"github.com/gaia-platform/gdev/pkg/log"
	"github.com/gaia-platform/gdev/pkg/memo"
	"github.com/gaia-platform/gdev/pkg/mixin"
	"github.com/gaia-platform/gdev/pkg/pipeline"
	"github.com/gaia-platform/gdev/pkg/utils"
	"github.com/sirupsen/logrus"
)

// App struct
type App struct {
	closers []io.Closer

	Config        *config.AppConfig
	Log           *logrus.Entry
	OSCommand     *commands.OSCommand
	GitCommand    *commands.GitCommand
	DockerCommand *commands.DockerCommand
	Tr            *i18n.TranslationSet
	Pipeline      *pipeline.Pipeline
	Options       config.Options
	// Out is where cfg and dockerfile print their result
	Out io.Writer
}

// NewApp bootstrap a new application
func NewApp(ctx context.Context, config *config.AppConfig, commandLine *CommandLine) (*App, error) {
	app := &App{
		closers: []io.Closer{},
		Config:  config,
		Out:     os.Stdout,
	}
	var err error
	app.Log = log.NewLogger(config, commandLine.LogLevel)
	app.Tr, err = i18n.NewTranslationSetFromConfig(app.Log, config.UserConfig.Language)
	if err != nil {
		return app, err
	}
	app.OSCommand = commands.NewOSCommand(app.Log, config)
	app.OSCommand.DryRun = commandLine.DryRun

	// everything gdev works out is computed once per invocation
	memoCache := memo.New()

	app.GitCommand = commands.NewGitCommand(app.Log, app.OSCommand, config, memoCache)

	// the engine client reads DOCKER_HOST when it is created, so the tunnel comes first
	tunnel, err := ssh.NewSSHHandler(app.OSCommand).HandleSSHDockerHost(ctx)
	if err != nil {
		return app, err
	}
	app.closers = append(app.closers, tunnel)

	app.DockerCommand, err = commands.NewDockerCommand(app.Log, app.OSCommand, app.Tr, config, memoCache)
	if err != nil {
		return app, err
	}
	app.closers = append(app.closers, app.DockerCommand)

	cwd, err := os.Getwd()
	if err != nil {
		return app, utils.WrapError(err)
	}
	repoRoot, err := app.GitCommand.RepoRoot(ctx, cwd)
	if err != nil {
		return app, err
	}
	layout := cfg.NewLayout(repoRoot, config.UserConfig.Layout)

	app.Options, err = ResolveOptions(commandLine, config.UserConfig, layout, cwd)
	if err != nil {
		return app, err
	}
	app.Log = app.Log.WithField("target", app.Options.Target)

	user, err := mixin.CurrentUser()
	if err != nil {
		return app, err
	}

	app.Pipeline = pipeline.NewPipeline(app.Log, app.Tr, config, layout, app.GitCommand, app.DockerCommand, app.OSCommand, user, memoCache)
	return app, nil
}

// Run carries out action against the resolved options
func (app *App) Run(ctx context.Context, action Action) error {
	app.Log.WithField("action", action).Debug("starting")
	defer app.Log.WithField("action", action).Debug("finished")

	switch action {
	case ActionCfg:
		text, err := app.Pipeline.Cfg(ctx, app.Options)
		if err != nil {
			return err
		}
		fmt.Fprint(app.Out, text)
		return nil
	case ActionDockerfile:
		composed, err := app.Pipeline.Dockerfile(ctx, app.Options)
		if err != nil {
			return err
		}
		fmt.Fprint(app.Out, composed.Dockerfile.Text)
		return nil
	case ActionBuild:
		_, err := app.Pipeline.Build(ctx, app.Options)
		return err
	case ActionRun:
		return app.Pipeline.Run(ctx, app.Options)
	case ActionPush:
		return app.Pipeline.Push(ctx, app.Options)
	}
	return fmt.Errorf("Unknown action '%s'", action)
}

func (app *App) Close() error {
	return utils.CloseMany(app.closers)
}

// ResolveOptions fills in everything the command line left out, from the user
// config and the current directory, and validates the result
func ResolveOptions(commandLine *CommandLine, userConfig *config.UserConfig, layout cfg.Layout, cwd string) (config.Options, error) {
	opts := config.Options{
		CfgEnables: commandLine.CfgEnables,
		Mixins:     commandLine.Mixins,
		BaseImage:  firstNonEmpty(commandLine.BaseImage, userConfig.Build.BaseImage),
		Registry:   firstNonEmpty(commandLine.Registry, userConfig.Build.Registry),
		Ports:      commandLine.Ports,
		Force:      commandLine.Force,
		Tainted:    commandLine.Tainted,
		DryRun:     commandLine.DryRun,
		LogLevel:   commandLine.LogLevel,
		Args:       commandLine.Args,
	}

	if commandLine.Target == "" {
		target, ok := layout.TargetFromDir(cwd)
		if !ok {
			return config.Options{}, fmt.Errorf("Directory '%s' is not inside the repo at '%s'", cwd, layout.RepoRoot)
		}
		opts.Target = target
	} else {
		opts.Target = cfg.NormalizeTarget(commandLine.Target)
		if cfg.OutsideRepo(opts.Target) {
			return config.Options{}, fmt.Errorf("Target '%s' is not inside the repo", commandLine.Target)
		}
	}

	if _, err := reference.ParseNormalizedNamed(opts.BaseImage); err != nil {
		return config.Options{}, fmt.Errorf("Invalid base image '%s': %v", opts.BaseImage, err)
	}

	platform := firstNonEmpty(commandLine.Platform, userConfig.Build.Platform)
	if platform == "" {
		opts.Platform = config.HostPlatform()
	} else {
		normalized, err := config.NormalizePlatform(platform)
		if err != nil {
			return config.Options{}, err
		}
		opts.Platform = normalized
	}

	for _, port := range opts.Ports {
		if err := config.ValidatePort(port); err != nil {
			return config.Options{}, err
		}
	}

	for _, spec := range commandLine.Mounts {
		mount, err := config.ParseMount(spec, cwd, layout.BuildPath(opts.Target))
		if err != nil {
			return config.Options{}, err
		}
		opts.Mounts = append(opts.Mounts, mount)
	}

	return opts, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

type errorMapping struct {
	originalError string
	newError      string
}

// KnownError takes an error and tells us whether it's an error that we know about where we can print a nicely formatted version of it rather than panicking with a stack trace
func (app *App) KnownError(err error) (string, bool) {
	for _, code := range []utils.ErrorCode{
		utils.ConfigNotFound,
		utils.UnrecognizedSection,
		utils.UnrecognizedConditional,
		utils.TaintedUpload,
		utils.MissingSeparatorArgs,
		utils.ExternalInvocationFailure,
	} {
		if utils.HasErrorCode(err, code) {
			return fmt.Sprintf("%s: %s", code, utils.ErrorMessage(err)), true
		}
	}

	errorMessage := err.Error()

	mappings := []errorMapping{
		{
			originalError: "Got permission denied while trying to connect to the Docker daemon socket",
			newError:      app.Tr.CannotAccessDockerSocketError,
		},
	}

	for _, mapping := range mappings {
		if strings.Contains(errorMessage, mapping.originalError) {
			return mapping.newError, true
		}
	}

	return "", false
}
