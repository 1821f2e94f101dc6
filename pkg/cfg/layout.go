package cfg

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/gaia-platform/gdev/pkg/config"
)

// RootTarget is the target naming the repo root itself
const RootTarget = "."

// Layout knows where targets live on the host and inside the image
type Layout struct {
	RepoRoot       string
	ConfigFilename string
	OutputDir      string
	MixinDir       string
	SourceDir      string
	BuildDir       string
}

// NewLayout builds a layout for the repo at repoRoot
func NewLayout(repoRoot string, c config.LayoutConfig) Layout {
	return Layout{
		RepoRoot:       repoRoot,
		ConfigFilename: c.ConfigFilename,
		OutputDir:      c.OutputDir,
		MixinDir:       NormalizeTarget(c.MixinDir),
		SourceDir:      c.SourceDir,
		BuildDir:       c.BuildDir,
	}
}

// NormalizeTarget turns a user supplied target into its canonical, slash
// separated, repo relative form
func NormalizeTarget(target string) string {
	target = path.Clean(filepath.ToSlash(strings.TrimSpace(target)))
	target = strings.TrimPrefix(target, "/")
	if target == "" {
		return RootTarget
	}
	return target
}

// OutsideRepo tells us a normalized target climbs above the repo root
func OutsideRepo(target string) bool {
	return target == ".." || strings.HasPrefix(target, "../")
}

// TargetFromDir works out the target for a host directory inside the repo
func (l Layout) TargetFromDir(dir string) (string, bool) {
	rel, err := filepath.Rel(l.RepoRoot, dir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return NormalizeTarget(rel), true
}

// TargetDir is the host directory of a target
func (l Layout) TargetDir(target string) string {
	return filepath.Join(l.RepoRoot, filepath.FromSlash(target))
}

// ConfigPath is the host path of a target's config file
func (l Layout) ConfigPath(target string) string {
	return filepath.Join(l.TargetDir(target), l.ConfigFilename)
}

// DisplayPath is how we name a target's config file in messages
func (l Layout) DisplayPath(target string) string {
	return "<repo_root>/" + path.Join(target, l.ConfigFilename)
}

// SourcePath is where a repo relative path ends up inside the image
func (l Layout) SourcePath(rel string) string {
	return path.Join(l.SourceDir, rel)
}

// BuildPath is where a repo relative path is built inside the image
func (l Layout) BuildPath(rel string) string {
	return path.Join(l.BuildDir, rel)
}

// DockerfilePath is the host path we write a target's composed dockerfile to
func (l Layout) DockerfilePath(target string, kind string) string {
	return filepath.Join(l.RepoRoot, filepath.FromSlash(l.OutputDir), filepath.FromSlash(target), kind+".dockerfile.gdev")
}

// MixinTarget is the target holding a mixin's config
func (l Layout) MixinTarget(name string) string {
	return path.Join(l.MixinDir, name)
}
