// Package run assembles the `docker run` command line for a built image.
package run

import (
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gaia-platform/gdev/pkg/cfg"
	"github.com/gaia-platform/gdev/pkg/config"
	"github.com/gaia-platform/gdev/pkg/mixin"
	"github.com/gaia-platform/gdev/pkg/stage"
	"github.com/gaia-platform/gdev/pkg/utils"
	"github.com/mattn/go-isatty"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// Separator must come before any arguments meant for the container
const Separator = "--"

const sshPort = "22"

// Spec is what goes between `docker run` and the image, plus the command to
// run in the container, if any
type Spec struct {
	Flags        []string
	TrailingArgs string
}

// Builder builds run specs
type Builder struct {
	Log     *logrus.Entry
	Layout  cfg.Layout
	Classes config.MixinConfig
	User    mixin.HostUser
	ShmSize string

	isTerminal func() bool
	fileExists func(string) bool
}

// NewBuilder returns a builder for containers run by user
func NewBuilder(log *logrus.Entry, layout cfg.Layout, classes config.MixinConfig, user mixin.HostUser, shmSize string) *Builder {
	return &Builder{
		Log:     log,
		Layout:  layout,
		Classes: classes,
		User:    user,
		ShmSize: shmSize,
		isTerminal: func() bool {
			return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
		},
		fileExists: func(path string) bool {
			_, err := os.Stat(path)
			return err == nil
		},
	}
}

// TrailingArgs checks that args, if there are any, start with the separator,
// and returns what comes after it as one command line
func TrailingArgs(args []string) (string, error) {
	if len(args) == 0 {
		return "", nil
	}
	if args[0] != Separator {
		return "", utils.NewComplexError(
			utils.MissingSeparatorArgs,
			"Arguments %q must come after a %q separator, e.g. `gdev run -- %s`",
			strings.Join(args, " "),
			Separator,
			strings.Join(args, " "),
		)
	}
	return strings.Join(args[1:], " "), nil
}

// Flags returns the run spec for the image of s
func (b *Builder) Flags(s *stage.Stage, opts config.Options) (Spec, error) {
	trailingArgs, err := TrailingArgs(opts.Args)
	if err != nil {
		return Spec{}, err
	}

	mixins := opts.SortedMixins()

	flags := []string{
		"--rm",
		"--init",
		"--entrypoint", "/bin/bash",
		"--hostname", s.Name,
		"--platform", opts.Platform,
		"--shm-size", b.ShmSize,
		"--volume", b.Layout.RepoRoot + ":" + b.Layout.SourceDir,
	}

	if b.isTerminal() {
		flags = append(flags, "-it")
	}

	for _, mount := range opts.Mounts {
		flags = append(flags, "--mount", strings.Join([]string{
			"type=volume",
			"dst=" + mount.ContainerPath,
			"volume-driver=local",
			"volume-opt=type=none",
			"volume-opt=o=bind",
			"volume-opt=device=" + mount.HostPath,
		}, ","))
	}

	ports := append([]string{}, opts.Ports...)
	remoteAccess := mixin.HasAny(b.Classes.RemoteAccess, mixins)
	if remoteAccess {
		ports = append(ports, sshPort)
	}
	ports = lo.Uniq(ports)
	sort.Strings(ports)
	for _, port := range ports {
		flags = append(flags, "-p", port+":"+port)
	}

	if remoteAccess {
		hostKeys := filepath.Join(b.User.Home, ".ssh", "authorized_keys")
		if b.fileExists(hostKeys) {
			containerKeys := "/root/.ssh/authorized_keys"
			if mixin.HasAny(b.Classes.HostIdentity, mixins) {
				containerKeys = path.Join(filepath.ToSlash(b.User.Home), ".ssh", "authorized_keys")
			}
			flags = append(flags, "-v", hostKeys+":"+containerKeys)
		} else {
			b.Log.Debugf("no %s to bind into the container", hostKeys)
		}
	}

	if mixin.HasAny(b.Classes.Debugger, mixins) {
		flags = append(flags, "--cap-add=SYS_PTRACE", "--security-opt", "seccomp=unconfined")
	}

	if mixin.HasAny(b.Classes.OwnershipPreserving, mixins) {
		flags = append(flags, "--user", b.User.UID+":"+b.User.GID)
	}

	return Spec{Flags: flags, TrailingArgs: trailingArgs}, nil
}
