package commands

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/gaia-platform/gdev/pkg/config"
	"github.com/gaia-platform/gdev/pkg/utils"
	"github.com/jesseduffield/kill"
	"github.com/mgutz/str"
	"github.com/moby/sys/atomicwriter"
	"github.com/sirupsen/logrus"
)

// OSCommand holds all the os commands
type OSCommand struct {
	Log    *logrus.Entry
	Config *config.AppConfig
	// DryRun prints the commands that would change something instead of running them
	DryRun bool
	// Out is where streamed command output and dry run lines go
	Out io.Writer

	command     func(string, ...string) *exec.Cmd
	getenv      func(string) string
	lookPath    func(string) (string, error)
	execProcess func(argv0 string, argv []string, envv []string) error
}

// NewOSCommand os command runner
func NewOSCommand(log *logrus.Entry, config *config.AppConfig) *OSCommand {
	return &OSCommand{
		Log:         log,
		Config:      config,
		Out:         os.Stdout,
		command:     exec.Command,
		getenv:      os.Getenv,
		lookPath:    exec.LookPath,
		execProcess: execProcess,
	}
}

// SetCommand sets the command function used by the struct.
// To be used for testing only
func (c *OSCommand) SetCommand(cmd func(string, ...string) *exec.Cmd) {
	c.command = cmd
}

// SetExec sets the function replacing the current process.
// To be used for testing only
func (c *OSCommand) SetExec(fn func(argv0 string, argv []string, envv []string) error) {
	c.execProcess = fn
}

// RunCommandWithOutput wrapper around commands returning their output and error
func (c *OSCommand) RunCommandWithOutput(command string) (string, error) {
	return c.RunArgsWithOutput(context.Background(), str.ToArgv(command))
}

// RunArgsWithOutput runs argv, returning its stdout. A non-zero exit becomes an
// ExternalInvocationFailure carrying whatever the command wrote to stderr.
// This is for queries, so it runs even in dry run mode.
func (c *OSCommand) RunArgsWithOutput(ctx context.Context, argv []string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := c.NewCmd(argv[0], argv[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	before := time.Now()
	err := c.runCmd(ctx, cmd)
	c.Log.Debug(fmt.Sprintf("'%s': %s", utils.ShellJoin(argv), time.Since(before)))

	return sanitisedCommandOutput(argv, stdout.String(), stderr.String(), err)
}

// NewCmd returns a command inheriting our environment
func (c *OSCommand) NewCmd(cmdName string, commandArgs ...string) *exec.Cmd {
	cmd := c.command(cmdName, commandArgs...)
	cmd.Env = os.Environ()
	return cmd
}

// runCmd runs cmd to completion, killing its whole process group if ctx is
// done first
func (c *OSCommand) runCmd(ctx context.Context, cmd *exec.Cmd) error {
	c.PrepareForChildren(cmd)
	if err := cmd.Start(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if err := c.Kill(cmd); err != nil {
			c.Log.Warn(err)
		}
		<-done
		return ctx.Err()
	}
}

// Stream runs argv with its output going straight to Out and our stderr, for
// the long running docker commands whose progress the user wants to see. In
// dry run mode the command is only printed.
func (c *OSCommand) Stream(ctx context.Context, argv []string) error {
	if c.DryRun {
		fmt.Fprintf(c.Out, "[execute:%s]\n", utils.ShellJoin(argv))
		return nil
	}

	c.Log.Debugf("streaming '%s'", utils.ShellJoin(argv))

	cmd := c.NewCmd(argv[0], argv[1:]...)
	cmd.Stdout = c.Out
	cmd.Stderr = os.Stderr
	if err := c.runCmd(ctx, cmd); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return utils.NewComplexError(utils.ExternalInvocationFailure, "Command '%s' failed: %v", utils.ShellJoin(argv), err)
	}
	return nil
}

// Exec replaces the current process with argv, so that the new process gets
// our stdio, signals and terminal. It only returns on failure, or straight
// away in dry run mode after printing the command.
func (c *OSCommand) Exec(argv []string) error {
	if c.DryRun {
		fmt.Fprintf(c.Out, "[execvpe:%s]\n", utils.ShellJoin(argv))
		return nil
	}

	path, err := c.lookPath(argv[0])
	if err != nil {
		return utils.NewComplexError(utils.ExternalInvocationFailure, "Could not find '%s': %v", argv[0], err)
	}

	c.Log.Debugf("replacing process with '%s'", utils.ShellJoin(argv))

	if err := c.execProcess(path, argv, os.Environ()); err != nil {
		return utils.NewComplexError(utils.ExternalInvocationFailure, "Command '%s' failed: %v", utils.ShellJoin(argv), err)
	}
	return nil
}

func sanitisedCommandOutput(argv []string, stdout string, stderr string, err error) (string, error) {
	if err != nil {
		// errors like 'exit status 1' are not very useful so we'll create an error
		// from stderr if we got an ExitError
		if _, ok := err.(*exec.ExitError); ok {
			return stdout, utils.NewComplexError(
				utils.ExternalInvocationFailure,
				"Command '%s' failed: %s",
				utils.ShellJoin(argv),
				strings.TrimSpace(stderr),
			)
		}
		return "", utils.WrapError(err)
	}
	return stdout, nil
}

// ReadFile returns the content of a file, and false if there is no such file
func (c *OSCommand) ReadFile(path string) (string, bool, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, utils.WrapError(err)
	}
	return string(content), true, nil
}

// WriteFile replaces the file at path with content, creating its directory if
// need be. A reader never sees a half written file.
func (c *OSCommand) WriteFile(path string, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return utils.WrapError(err)
	}
	return utils.WrapError(atomicwriter.WriteFile(path, []byte(content), 0o644))
}

// Remove removes a file or directory at the specified path
func (c *OSCommand) Remove(filename string) error {
	err := os.RemoveAll(filename)
	return utils.WrapError(err)
}

// MkdirAll creates a directory and any missing parents
func (c *OSCommand) MkdirAll(path string) error {
	return utils.WrapError(os.MkdirAll(path, 0o755))
}

// FileExists checks whether a file exists at the specified path
func (c *OSCommand) FileExists(path string) (bool, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Getenv reads an environment variable
func (c *OSCommand) Getenv(name string) string {
	return c.getenv(name)
}

// Kill kills a process. If the process has Setpgid == true, then we have anticipated that it might spawn its own child processes, so we've given it a process group ID (PGID) equal to its process id (PID) and given its child processes will inherit the PGID, we can kill that group, rather than killing the process itself.
func (c *OSCommand) Kill(cmd *exec.Cmd) error {
	return kill.Kill(cmd)
}

// PrepareForChildren sets Setpgid to true on the cmd, so that when we run it as a subprocess, we can kill its group rather than the process itself. buildx spawns its own children, and killing the parent process isn't sufficient for killing those.
func (c *OSCommand) PrepareForChildren(cmd *exec.Cmd) {
	kill.PrepareForChildren(cmd)
}
