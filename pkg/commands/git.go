package commands

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gaia-platform/gdev/pkg/config"
	"github.com/gaia-platform/gdev/pkg/memo"
	"github.com/gaia-platform/gdev/pkg/utils"
	"github.com/mgutz/str"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// GitCommand answers the few questions gdev has about source control
type GitCommand struct {
	Log       *logrus.Entry
	OSCommand *OSCommand
	Config    *config.AppConfig

	memo *memo.Cache
}

// NewGitCommand returns a git command remembering every answer for the rest of the invocation
func NewGitCommand(log *logrus.Entry, osCommand *OSCommand, config *config.AppConfig, cache *memo.Cache) *GitCommand {
	return &GitCommand{
		Log:       log,
		OSCommand: osCommand,
		Config:    config,
		memo:      cache,
	}
}

func (c *GitCommand) run(ctx context.Context, dir string, args ...string) (string, error) {
	argv := append(str.ToArgv(c.Config.UserConfig.CommandTemplates.Git), "-C", dir)
	return c.OSCommand.RunArgsWithOutput(ctx, append(argv, args...))
}

// RepoRoot returns the top level directory of the repo holding dir
func (c *GitCommand) RepoRoot(ctx context.Context, dir string) (string, error) {
	return memo.Get(c.memo, memo.Key("git.toplevel", dir), func() (string, error) {
		root, err := c.run(ctx, dir, "rev-parse", "--show-toplevel")
		if err != nil {
			return "", err
		}
		return filepath.FromSlash(strings.TrimSpace(root)), nil
	})
}

// RevisionHash returns the commit HEAD points at
func (c *GitCommand) RevisionHash(ctx context.Context, repoRoot string) (string, error) {
	return memo.Get(c.memo, memo.Key("git.head", repoRoot), func() (string, error) {
		hash, err := c.run(ctx, repoRoot, "rev-parse", "HEAD")
		return strings.TrimSpace(hash), err
	})
}

// Uncommitted returns the repo relative paths under any of dirs that differ
// from HEAD, untracked files included, sorted. gdev's own output dir never
// counts, since the dockerfile is written there before we ask.
func (c *GitCommand) Uncommitted(ctx context.Context, repoRoot string, dirs []string) ([]string, error) {
	dirs = lo.Uniq(dirs)
	sort.Strings(dirs)

	return memo.Get(c.memo, memo.Key("git.status", append([]string{repoRoot}, dirs...)...), func() ([]string, error) {
		args := append([]string{"status", "--short", "--untracked-files=all", "--"}, dirs...)
		if outputDir := c.Config.UserConfig.Layout.OutputDir; outputDir != "" {
			args = append(args, ":(exclude)"+filepath.ToSlash(outputDir))
		}
		output, err := c.run(ctx, repoRoot, args...)
		if err != nil {
			return nil, err
		}
		paths := parseStatus(output)
		if len(paths) > 0 {
			c.Log.WithField("paths", paths).Debug("uncommitted changes")
		}
		return paths, nil
	})
}

// parseStatus pulls the paths out of `git status --short` output. A rename
// counts as both its old and its new path.
func parseStatus(output string) []string {
	paths := []string{}
	for _, line := range utils.SplitLines(output) {
		if len(line) < 4 {
			continue
		}
		for _, path := range strings.Split(line[3:], " -> ") {
			paths = append(paths, strings.Trim(path, `"`))
		}
	}
	paths = lo.Uniq(paths)
	sort.Strings(paths)
	return paths
}
