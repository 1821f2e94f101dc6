package app

import (
	"fmt"
	"strings"

	"github.com/gaia-platform/gdev/pkg/run"
	"github.com/integrii/flaggy"
	"github.com/samber/lo"
)

// Action is one of gdev's subcommands
type Action string

const (
	ActionCfg        Action = "cfg"
	ActionDockerfile Action = "dockerfile"
	ActionBuild      Action = "build"
	ActionRun        Action = "run"
	ActionPush       Action = "push"
)

type actionEntry struct {
	action      Action
	description string
}

var actionDescriptions = []actionEntry{
	{ActionCfg, "Print the target's gdev.cfg with every disabled line commented out"},
	{ActionDockerfile, "Compose the target's dockerfile and print it"},
	{ActionBuild, "Build the target's image, unless an up to date one already exists"},
	{ActionRun, "Build the target's image and run a container from it. Arguments after -- are run inside the container"},
	{ActionPush, "Build the target's image and push it to the registry"},
}

// flags taking a value, so that we know which arguments are flag values when
// looking for stray positional arguments
var valueFlags = map[string]bool{
	"cfg-enables": true,
	"mixins":      true,
	"base-image":  true,
	"platform":    true,
	"registry":    true,
	"mounts":      true,
	"p":           true,
	"ports":       true,
	"log-level":   true,
}

// flags taking no value. flaggy wants a value after any flag that ends the
// argument list, so these are always handed over in --flag=true form.
var boolFlags = map[string]bool{
	"c":       true,
	"config":  true,
	"d":       true,
	"debug":   true,
	"f":       true,
	"force":   true,
	"tainted": true,
	"dry-run": true,
}

// CommandLine is what the user asked for, before any of the defaults from the
// user config are filled in
type CommandLine struct {
	Action Action
	// Target is empty when the user wants the current directory
	Target     string
	CfgEnables []string
	Mixins     []string
	BaseImage  string
	Platform   string
	Registry   string
	Mounts     []string
	Ports      []string
	Force      bool
	Tainted    bool
	DryRun     bool
	LogLevel   string
	Debug      bool
	// PrintConfig asks for the default user config instead of an action
	PrintConfig bool
	// Args is everything from the `--` separator onwards. Stray positional
	// arguments given to run without a separator open the list, so that the
	// run action can complain about them.
	Args []string
}

// ParseCommandLine parses gdev's arguments, not including the program name
func ParseCommandLine(args []string, version string) (*CommandLine, error) {
	commandLine := &CommandLine{}

	flagArgs, trailing := splitAtSeparator(args)
	flagArgs, stray := splitStrayArgs(flagArgs)
	flagArgs = explicitBoolFlags(flagArgs)

	parser := flaggy.NewParser("gdev")
	parser.Description = "Compose, build, run and push the docker images described by gdev.cfg files"
	parser.AdditionalHelpPrepend = "https://github.com/gaia-platform/GaiaPlatform"
	parser.Version = version
	parser.Bool(&commandLine.PrintConfig, "c", "config", "Print the current default config")
	parser.Bool(&commandLine.Debug, "d", "debug", "Also log everything as json to development.log in the config dir")

	subcommands := make(map[Action]*flaggy.Subcommand, len(actionDescriptions))
	for _, entry := range actionDescriptions {
		subcommand := flaggy.NewSubcommand(string(entry.action))
		subcommand.Description = entry.description
		subcommand.AddPositionalValue(&commandLine.Target, "target", 1, false, "Repo relative directory holding the gdev.cfg to build. Defaults to the current directory")
		addOptionFlags(subcommand, commandLine)
		parser.AttachSubcommand(subcommand, 1)
		subcommands[entry.action] = subcommand
	}

	if err := parser.ParseArgs(flagArgs); err != nil {
		return nil, err
	}

	for _, entry := range actionDescriptions {
		if subcommands[entry.action].Used {
			commandLine.Action = entry.action
		}
	}
	if commandLine.Action == "" && !commandLine.PrintConfig {
		names := lo.Map(actionDescriptions, func(entry actionEntry, _ int) string {
			return string(entry.action)
		})
		return nil, fmt.Errorf("Missing action, expected one of: %s", strings.Join(names, ", "))
	}

	commandLine.CfgEnables = splitList(commandLine.CfgEnables)
	commandLine.Mixins = splitList(commandLine.Mixins)
	commandLine.Mounts = splitList(commandLine.Mounts)
	commandLine.Ports = splitList(commandLine.Ports)
	commandLine.Args = append(stray, trailing...)

	return commandLine, nil
}

func addOptionFlags(subcommand *flaggy.Subcommand, commandLine *CommandLine) {
	subcommand.StringSlice(&commandLine.CfgEnables, "", "cfg-enables", "Enable lines in gdev.cfg files gated by enable_if, enable_if_any and enable_if_all")
	subcommand.StringSlice(&commandLine.Mixins, "", "mixins", "Image mixins providing dev tools from the mixin directory")
	subcommand.String(&commandLine.BaseImage, "", "base-image", "Image every stage is built from. Defaults to build.baseImage from the user config")
	subcommand.String(&commandLine.Platform, "", "platform", "Platform to build for, e.g. amd64 or linux/arm64. Defaults to the host's")
	subcommand.String(&commandLine.Registry, "", "registry", "Registry to push images to and pull cached stages from")
	subcommand.StringSlice(&commandLine.Mounts, "", "mounts", "<host_path>:<container_path> mounts created, or resumed, by run. Relative host paths are taken from the current directory and relative container paths from the build dir")
	subcommand.StringSlice(&commandLine.Ports, "p", "ports", "Ports to expose from the container")
	subcommand.Bool(&commandLine.Force, "f", "force", "Build even if an up to date image exists")
	subcommand.Bool(&commandLine.Tainted, "", "tainted", "Mark the image as built from uncommitted changes")
	subcommand.Bool(&commandLine.DryRun, "", "dry-run", "Print the docker commands that would change anything instead of running them")
	subcommand.String(&commandLine.LogLevel, "", "log-level", "One of debug, info, warning or error. Defaults to $LOG_LEVEL, then info")
}

// splitAtSeparator splits args at the first `--`, which stays with the trailing half
func splitAtSeparator(args []string) ([]string, []string) {
	index := lo.IndexOf(args, run.Separator)
	if index == -1 {
		return args, nil
	}
	return args[:index], args[index:]
}

// splitStrayArgs pulls out the positional arguments given to run after its
// target. Everything else is left for the flag parser to deal with.
func splitStrayArgs(args []string) ([]string, []string) {
	positions := []int{}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if strings.HasPrefix(arg, "-") {
			name := strings.TrimLeft(arg, "-")
			if !strings.Contains(name, "=") && valueFlags[name] {
				i++
			}
			continue
		}
		positions = append(positions, i)
	}

	if len(positions) < 3 || args[positions[0]] != string(ActionRun) {
		return args, nil
	}

	strayPositions := positions[2:]
	kept := make([]string, 0, len(args))
	stray := make([]string, 0, len(strayPositions))
	for i, arg := range args {
		if lo.Contains(strayPositions, i) {
			stray = append(stray, arg)
		} else {
			kept = append(kept, arg)
		}
	}
	return kept, stray
}

// explicitBoolFlags turns every bare bool flag into its --flag=true form
func explicitBoolFlags(args []string) []string {
	return lo.Map(args, func(arg string, _ int) string {
		if !strings.HasPrefix(arg, "-") || strings.Contains(arg, "=") {
			return arg
		}
		if boolFlags[strings.TrimLeft(arg, "-")] {
			return arg + "=true"
		}
		return arg
	})
}

// splitList accepts both repeated flags and comma separated values
func splitList(values []string) []string {
	result := []string{}
	for _, value := range values {
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				result = append(result, item)
			}
		}
	}
	return lo.Uniq(result)
}
