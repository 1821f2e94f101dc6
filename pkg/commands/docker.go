package commands

import (
	"context"
	"io"
	"sort"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/gaia-platform/gdev/pkg/config"
	"github.com/gaia-platform/gdev/pkg/i18n"
	"github.com/gaia-platform/gdev/pkg/memo"
	"github.com/gaia-platform/gdev/pkg/utils"
	"github.com/mgutz/str"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// ImageAPI is the part of the docker engine API we query
type ImageAPI interface {
	ImageInspect(ctx context.Context, imageID string, opts ...client.ImageInspectOption) (image.InspectResponse, error)
}

// DockerCommand queries the docker engine and shells out to the docker cli
// for the commands whose output the user wants to watch
type DockerCommand struct {
	Log       *logrus.Entry
	OSCommand *OSCommand
	Tr        *i18n.TranslationSet
	Config    *config.AppConfig
	Client    ImageAPI

	memo *memo.Cache
}

// NewDockerCommand it runs docker commands
func NewDockerCommand(log *logrus.Entry, osCommand *OSCommand, tr *i18n.TranslationSet, config *config.AppConfig, cache *memo.Cache) (*DockerCommand, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, utils.WrapError(err)
	}

	return &DockerCommand{
		Log:       log,
		OSCommand: osCommand,
		Tr:        tr,
		Config:    config,
		Client:    cli,
		memo:      cache,
	}, nil
}

// BuildOptions is everything `docker buildx build` needs to know
type BuildOptions struct {
	Dockerfile string
	Tag        string
	Labels     map[string]string
	Platform   string
	ShmSize    string
	CacheFrom  []string
	Context    string
}

// Close closes the engine client, if it holds a connection
func (c *DockerCommand) Close() error {
	if closer, ok := c.Client.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

type labelsResult struct {
	labels map[string]string
	exists bool
}

// ImageLabels returns the labels of the image tagged ref, and false if there is no such image
func (c *DockerCommand) ImageLabels(ctx context.Context, ref string) (map[string]string, bool, error) {
	result, err := memo.Get(c.memo, memo.Key("docker.labels", ref), func() (labelsResult, error) {
		response, err := c.Client.ImageInspect(ctx, ref)
		if err != nil {
			if errdefs.IsNotFound(err) {
				return labelsResult{labels: map[string]string{}}, nil
			}
			if client.IsErrConnectionFailed(err) {
				if c.OSCommand.DryRun {
					c.Log.Warn(c.Tr.ConnectionFailed)
					return labelsResult{labels: map[string]string{}}, nil
				}
				return labelsResult{}, utils.NewComplexError(utils.ExternalInvocationFailure, "%s: %v", c.Tr.CannotAccessDockerSocketError, err)
			}
			return labelsResult{}, utils.WrapError(err)
		}

		labels := map[string]string{}
		if response.Config != nil {
			for key, value := range response.Config.Labels {
				labels[key] = value
			}
		}
		return labelsResult{labels: labels, exists: true}, nil
	})
	return result.labels, result.exists, err
}

func (c *DockerCommand) argv(args ...string) []string {
	return append(str.ToArgv(c.Config.UserConfig.CommandTemplates.Docker), args...)
}

// BuildArgs returns the command line building an image
func (c *DockerCommand) BuildArgs(opts BuildOptions) []string {
	args := []string{"buildx", "build", "-f", opts.Dockerfile, "-t", opts.Tag}

	keys := lo.Keys(opts.Labels)
	sort.Strings(keys)
	for _, key := range keys {
		args = append(args, "--label", key+"="+opts.Labels[key])
	}

	args = append(args,
		"--build-arg", "BUILDKIT_INLINE_CACHE=1",
		"--platform", opts.Platform,
		"--shm-size", opts.ShmSize,
		"--ssh", "default",
	)
	for _, cacheFrom := range opts.CacheFrom {
		args = append(args, "--cache-from", cacheFrom)
	}

	return c.argv(append(args, opts.Context)...)
}

// Build builds an image, streaming buildx's progress
func (c *DockerCommand) Build(ctx context.Context, opts BuildOptions) error {
	return c.OSCommand.Stream(ctx, c.BuildArgs(opts))
}

// Prune removes the dangling images a build leaves behind
func (c *DockerCommand) Prune(ctx context.Context) error {
	return c.OSCommand.Stream(ctx, c.argv("image", "prune", "-f"))
}

// Tag gives the image tagged source the extra tag target
func (c *DockerCommand) Tag(ctx context.Context, source string, target string) error {
	return c.OSCommand.Stream(ctx, c.argv("tag", source, target))
}

// Push uploads an image to its registry
func (c *DockerCommand) Push(ctx context.Context, ref string) error {
	return c.OSCommand.Stream(ctx, c.argv("push", ref))
}

// RunArgs returns the command line running a container
func (c *DockerCommand) RunArgs(flags []string, ref string, trailingArgs string) []string {
	args := append([]string{"run"}, flags...)
	args = append(args, ref)
	if trailingArgs != "" {
		args = append(args, "-c", trailingArgs)
	}
	return c.argv(args...)
}

// Run replaces gdev with `docker run`. It does not return unless it fails.
func (c *DockerCommand) Run(flags []string, ref string, trailingArgs string) error {
	return c.OSCommand.Exec(c.RunArgs(flags, ref, trailingArgs))
}
