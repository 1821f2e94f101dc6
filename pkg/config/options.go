package config

import (
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/containerd/platforms"
	"github.com/samber/lo"
)

// Mount is a host directory bound into the container at run time
type Mount struct {
	HostPath      string
	ContainerPath string
}

func (m Mount) String() string {
	return m.HostPath + ":" + m.ContainerPath
}

// ParseMount parses a `host:container` pair. A relative host path is taken
// relative to cwd, and a relative container path relative to buildDir.
func ParseMount(spec string, cwd string, buildDir string) (Mount, error) {
	parts := strings.Split(spec, ":")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Mount{}, fmt.Errorf("Mount '%s' must be of the form <host_path>:<container_path>", spec)
	}

	hostPath := parts[0]
	if !filepath.IsAbs(hostPath) {
		hostPath = filepath.Join(cwd, hostPath)
	}

	containerPath := parts[1]
	if !path.IsAbs(containerPath) {
		containerPath = path.Join(buildDir, containerPath)
	}

	return Mount{HostPath: filepath.Clean(hostPath), ContainerPath: path.Clean(containerPath)}, nil
}

// Options are the per-invocation settings, gathered from the command line over the user config
type Options struct {
	// Target is the repo relative directory whose gdev.cfg we build
	Target     string
	CfgEnables []string
	Mixins     []string
	BaseImage  string
	// Platform is always in os/arch form once the options are built
	Platform string
	Registry string
	Mounts   []Mount
	Ports    []string
	Force    bool
	Tainted  bool
	DryRun   bool
	LogLevel string
	// Args is everything from the `--` separator onwards, with the separator itself
	// kept so that a missing separator can be told apart from no arguments at all
	Args []string
}

// Enables returns the full, sorted set of enabled options used to evaluate
// config conditionals: the base image, the explicit enables and the mixins
func (o Options) Enables() []string {
	enables := append([]string{o.BaseImage}, o.CfgEnables...)
	enables = append(enables, o.Mixins...)
	enables = lo.Filter(lo.Uniq(enables), func(enable string, _ int) bool {
		return enable != ""
	})
	sort.Strings(enables)
	return enables
}

// SortedMixins returns the mixins in canonical order. The order mixins are
// given on the command line never changes the image.
func (o Options) SortedMixins() []string {
	mixins := lo.Uniq(o.Mixins)
	sort.Strings(mixins)
	return mixins
}

// Key returns a string identifying these options, suitable for memoizing
// anything computed from them
func (o Options) Key() string {
	mounts := lo.Map(o.Mounts, func(mount Mount, _ int) string {
		return mount.String()
	})
	return strings.Join([]string{
		"target=" + o.Target,
		"enables=" + strings.Join(o.Enables(), ","),
		"mixins=" + strings.Join(o.SortedMixins(), ","),
		"base=" + o.BaseImage,
		"platform=" + o.Platform,
		"registry=" + o.Registry,
		"mounts=" + strings.Join(mounts, ","),
		"ports=" + strings.Join(o.Ports, ","),
		"force=" + strconv.FormatBool(o.Force),
		"tainted=" + strconv.FormatBool(o.Tainted),
		"args=" + strings.Join(o.Args, " "),
	}, "|")
}

// WithTarget returns a copy of the options pointed at another target
func (o Options) WithTarget(target string) Options {
	o.Target = target
	return o
}

// NormalizePlatform turns `amd64` or `linux/arm64/v8` style platforms into the
// canonical os/arch[/variant] form docker expects. A bare architecture is
// taken to mean linux, since that's all we build.
func NormalizePlatform(platform string) (string, error) {
	if !strings.Contains(platform, "/") {
		platform = "linux/" + platform
	}
	spec, err := platforms.Parse(platform)
	if err != nil {
		return "", fmt.Errorf("Invalid platform '%s': %v", platform, err)
	}
	return platforms.Format(platforms.Normalize(spec)), nil
}

// HostPlatform returns the linux platform matching the host's architecture
func HostPlatform() string {
	spec := platforms.DefaultSpec()
	spec.OS = "linux"
	return platforms.Format(platforms.Normalize(spec))
}

// ValidatePort makes sure a port is a plain port number
func ValidatePort(port string) error {
	number, err := strconv.Atoi(port)
	if err != nil || number < 1 || number > 65535 {
		return fmt.Errorf("Port '%s' must be a number between 1 and 65535", port)
	}
	return nil
}
