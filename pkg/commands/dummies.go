package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/gaia-platform/gdev/pkg/config"
	"github.com/gaia-platform/gdev/pkg/i18n"
	"github.com/gaia-platform/gdev/pkg/memo"
	dockerspec "github.com/moby/docker-image-spec/specs-go/v1"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/sirupsen/logrus"
)

// This file exports dummy constructors for use by tests in other packages

// NewDummyOSCommand creates a new dummy OSCommand for testing
func NewDummyOSCommand() *OSCommand {
	return NewOSCommand(NewDummyLog(), NewDummyAppConfig())
}

// NewDummyAppConfig creates a new dummy AppConfig for testing
func NewDummyAppConfig() *config.AppConfig {
	userConfig := config.GetDefaultConfig()
	userConfig.Language = "en"
	appConfig := &config.AppConfig{
		Name:        "gdev",
		Version:     "unversioned",
		Commit:      "",
		BuildDate:   "",
		Debug:       false,
		BuildSource: "",
		UserConfig:  &userConfig,
	}
	return appConfig
}

// NewDummyLog creates a new dummy Log for testing
func NewDummyLog() *logrus.Entry {
	log := logrus.New()
	log.Out = io.Discard
	return log.WithField("test", "test")
}

// NewDummyGitCommand creates a new dummy GitCommand for testing
func NewDummyGitCommand() *GitCommand {
	return NewDummyGitCommandWithOSCommand(NewDummyOSCommand())
}

// NewDummyGitCommandWithOSCommand creates a new dummy GitCommand for testing
func NewDummyGitCommandWithOSCommand(osCommand *OSCommand) *GitCommand {
	return NewGitCommand(NewDummyLog(), osCommand, NewDummyAppConfig(), memo.New())
}

// NewDummyDockerCommand creates a new dummy DockerCommand for testing
func NewDummyDockerCommand(api ImageAPI) *DockerCommand {
	return NewDummyDockerCommandWithOSCommand(NewDummyOSCommand(), api)
}

// NewDummyDockerCommandWithOSCommand creates a new dummy DockerCommand for testing
func NewDummyDockerCommandWithOSCommand(osCommand *OSCommand, api ImageAPI) *DockerCommand {
	return &DockerCommand{
		Log:       NewDummyLog(),
		OSCommand: osCommand,
		Tr:        i18n.NewTranslationSet(NewDummyLog(), "en"),
		Config:    NewDummyAppConfig(),
		Client:    api,
		memo:      memo.New(),
	}
}

// FakeImageAPI serves image labels from a map, counting the lookups
type FakeImageAPI struct {
	Images  map[string]map[string]string
	Err     error
	Lookups int
}

// ImageInspect implements ImageAPI
func (f *FakeImageAPI) ImageInspect(ctx context.Context, imageID string, opts ...client.ImageInspectOption) (image.InspectResponse, error) {
	f.Lookups++
	if f.Err != nil {
		return image.InspectResponse{}, f.Err
	}
	labels, ok := f.Images[imageID]
	if !ok {
		return image.InspectResponse{}, fmt.Errorf("No such image: %s: %w", imageID, errdefs.ErrNotFound)
	}
	if labels == nil {
		return image.InspectResponse{ID: imageID}, nil
	}
	return image.InspectResponse{ID: imageID, Config: &dockerspec.DockerOCIImageConfig{ImageConfig: ocispec.ImageConfig{Labels: labels}}}, nil
}
