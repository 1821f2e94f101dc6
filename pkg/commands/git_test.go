package commands

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/gaia-platform/gdev/pkg/utils"
	"github.com/stretchr/testify/assert"
)

// TestParseStatus is a function.
func TestParseStatus(t *testing.T) {
	type scenario struct {
		output   string
		expected []string
	}

	scenarios := []scenario{
		{"", []string{}},
		{
			" M production/gdev.cfg\n?? production/src/new.cpp\n",
			[]string{"production/gdev.cfg", "production/src/new.cpp"},
		},
		{
			"R  scripts/old.sh -> scripts/new.sh\n M scripts/new.sh\n",
			[]string{"scripts/new.sh", "scripts/old.sh"},
		},
		{
			`?? "third_party/file with spaces"` + "\n",
			[]string{"third_party/file with spaces"},
		},
	}

	for _, s := range scenarios {
		assert.EqualValues(t, s.expected, parseStatus(s.output))
	}
}

// TestGitCommandRevisionHash is a function.
func TestGitCommandRevisionHash(t *testing.T) {
	calls := 0
	gitCommand := NewDummyGitCommand()
	gitCommand.OSCommand.SetCommand(func(name string, args ...string) *exec.Cmd {
		calls++
		assert.EqualValues(t, "git", name)
		assert.EqualValues(t, []string{"-C", "/repo", "rev-parse", "HEAD"}, args)
		return exec.Command("echo", "3f8a1c2e9b7d4f6a0c5e8b1d2f4a6c8e0b2d4f6a")
	})

	for i := 0; i < 2; i++ {
		hash, err := gitCommand.RevisionHash(context.Background(), "/repo")
		assert.NoError(t, err)
		assert.EqualValues(t, "3f8a1c2e9b7d4f6a0c5e8b1d2f4a6c8e0b2d4f6a", hash)
	}
	assert.EqualValues(t, 1, calls)
}

// TestGitCommandUncommitted is a function.
func TestGitCommandUncommitted(t *testing.T) {
	gitCommand := NewDummyGitCommand()
	gitCommand.OSCommand.SetCommand(func(name string, args ...string) *exec.Cmd {
		assert.EqualValues(t, []string{"-C", "/repo", "status", "--short", "--untracked-files=all", "--", "a", "b", ":(exclude).gdev"}, args)
		return exec.Command("printf", ` M b/gdev.cfg\n?? a/x.cpp\n`)
	})

	paths, err := gitCommand.Uncommitted(context.Background(), "/repo", []string{"b", "a", "b"})
	assert.NoError(t, err)
	assert.EqualValues(t, []string{"a/x.cpp", "b/gdev.cfg"}, paths)
}

// TestGitCommandUncommittedWithoutOutputDir is a function.
func TestGitCommandUncommittedWithoutOutputDir(t *testing.T) {
	gitCommand := NewDummyGitCommand()
	gitCommand.Config.UserConfig.Layout.OutputDir = ""
	gitCommand.OSCommand.SetCommand(func(name string, args ...string) *exec.Cmd {
		assert.EqualValues(t, []string{"-C", "/repo", "status", "--short", "--untracked-files=all", "--", "."}, args)
		return exec.Command("printf", "")
	})

	paths, err := gitCommand.Uncommitted(context.Background(), "/repo", []string{"."})
	assert.NoError(t, err)
	assert.EqualValues(t, []string{}, paths)
}

// TestGitCommandUncommittedIgnoresOutputDir is a function.
func TestGitCommandUncommittedIgnoresOutputDir(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git is not installed")
	}

	repo := t.TempDir()
	gitIn := func(args ...string) {
		cmd := exec.Command("git", append([]string{"-C", repo, "-c", "user.name=gdev", "-c", "user.email=gdev@example.com"}, args...)...)
		output, err := cmd.CombinedOutput()
		if err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, output)
		}
	}
	gitIn("init", "-q")
	assert.NoError(t, os.WriteFile(filepath.Join(repo, "gdev.cfg"), []byte("[apt]\ncurl\n"), 0o644))
	gitIn("add", "gdev.cfg")
	gitIn("commit", "-q", "-m", "initial")

	osCommand := NewDummyOSCommand()
	assert.NoError(t, osCommand.WriteFile(filepath.Join(repo, ".gdev", "stage.dockerfile.gdev"), "FROM base AS root__stage\n"))

	paths, err := NewDummyGitCommandWithOSCommand(osCommand).Uncommitted(context.Background(), repo, []string{"."})
	assert.NoError(t, err)
	assert.EqualValues(t, []string{}, paths)

	assert.NoError(t, os.WriteFile(filepath.Join(repo, "new.cpp"), []byte("int main() {}\n"), 0o644))
	paths, err = NewDummyGitCommandWithOSCommand(osCommand).Uncommitted(context.Background(), repo, []string{"."})
	assert.NoError(t, err)
	assert.EqualValues(t, []string{"new.cpp"}, paths)
}

// TestGitCommandFailure is a function.
func TestGitCommandFailure(t *testing.T) {
	gitCommand := NewDummyGitCommand()
	gitCommand.OSCommand.SetCommand(func(name string, args ...string) *exec.Cmd {
		return exec.Command("sh", "-c", "echo 'fatal: not a git repository' >&2; exit 128")
	})

	_, err := gitCommand.RepoRoot(context.Background(), "/tmp")
	assert.True(t, utils.HasErrorCode(err, utils.ExternalInvocationFailure))
	assert.Contains(t, err.Error(), "fatal: not a git repository")
}
