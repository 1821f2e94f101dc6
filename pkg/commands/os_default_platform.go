//go:build !windows
// +build !windows

package commands

import "golang.org/x/sys/unix"

// execProcess hands our process over to the program at argv0. It never returns on success.
func execProcess(argv0 string, argv []string, envv []string) error {
	return unix.Exec(argv0, argv, envv)
}
