package commands

import (
	"errors"
	"os"
	"os/exec"
)

// execProcess has no way to replace the current process on windows, so we run
// the program attached to our stdio and exit with its exit code once it's done
func execProcess(argv0 string, argv []string, envv []string) error {
	cmd := exec.Command(argv0, argv[1:]...)
	cmd.Env = envv
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	var exitError *exec.ExitError
	if errors.As(err, &exitError) {
		os.Exit(exitError.ExitCode())
	}
	if err != nil {
		return err
	}
	os.Exit(0)
	return nil
}
