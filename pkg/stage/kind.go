package stage

import (
	"strings"

	"github.com/gaia-platform/gdev/pkg/cfg"
)

// Kind is the kind of build stage derived from one section of a config file
type Kind string

const (
	KindApt      Kind = "apt"
	KindPip      Kind = "pip"
	KindGit      Kind = "git"
	KindWeb      Kind = "web"
	KindEnv      Kind = "env"
	KindInclude  Kind = "include"
	KindPreStage Kind = "pre_stage"
	KindStage    Kind = "stage"
	KindCustom   Kind = "custom"
)

// names of the static stages every dockerfile starts with
const (
	BaseStage    = "base"
	AptBaseStage = "apt_base"
	GitBaseStage = "git_base"
	PipBaseStage = "pip_base"
	WebBaseStage = "web_base"
)

const runJoin = " \\\n    && "

type kindSpec struct {
	// section is the config section the stage's lines come from
	section cfg.SectionName
	// base is the stage we build FROM
	base string
	// inputs are stages of the same target that come directly before this one
	inputs []Kind
	// includes makes the stage of every included target an input
	includes bool
	// env gives the stage the aggregated ENV lines of its target
	env bool
	run func(lines []string) string
}

// kinds is layered: the leaves have no inputs, pre_stage only depends on
// leaves and stage only depends on pre_stage. custom stages are built by the
// mixin composer on top of a stage.
var kinds = map[Kind]kindSpec{
	KindApt: {
		section: cfg.SectionApt,
		base:    AptBaseStage,
		run:     aptRun,
	},
	KindPip: {
		section: cfg.SectionPip,
		base:    PipBaseStage,
		run:     pipRun,
	},
	KindGit: {
		section: cfg.SectionGit,
		base:    GitBaseStage,
		run:     gitRun,
	},
	KindWeb: {
		section: cfg.SectionWeb,
		base:    WebBaseStage,
		run:     webRun,
	},
	KindEnv: {
		section: cfg.SectionEnv,
		base:    BaseStage,
		env:     true,
	},
	KindInclude: {
		section:  cfg.SectionInclude,
		base:     BaseStage,
		includes: true,
	},
	KindPreStage: {
		section: cfg.SectionPreStage,
		base:    BaseStage,
		inputs:  []Kind{KindInclude, KindApt, KindGit, KindPip, KindWeb, KindEnv},
		env:     true,
		run:     scriptRun,
	},
	KindStage: {
		section: cfg.SectionStage,
		base:    BaseStage,
		inputs:  []Kind{KindPreStage},
		env:     true,
		run:     scriptRun,
	},
}

// Kinds returns the kinds that can be derived straight from a config file
func Kinds() []Kind {
	return []Kind{KindApt, KindPip, KindGit, KindWeb, KindEnv, KindInclude, KindPreStage, KindStage}
}

func aptRun(packages []string) string {
	if len(packages) == 0 {
		return ""
	}
	return strings.Join([]string{
		"apt-get update",
		"DEBIAN_FRONTEND=noninteractive apt-get install -y " + strings.Join(packages, " "),
		"apt-get clean",
	}, runJoin)
}

func pipRun(packages []string) string {
	if len(packages) == 0 {
		return ""
	}
	return strings.Join([]string{
		"python3 -m pip install " + strings.Join(packages, " "),
		"apt-get remove --autoremove -y python3-pip",
	}, runJoin)
}

func gitRun(repos []string) string {
	if len(repos) == 0 {
		return ""
	}
	commands := []string{}
	for _, repo := range repos {
		commands = append(commands, "git clone --depth 1 "+repo)
	}
	commands = append(commands, "rm -rf */.git", "apt-get remove --autoremove -y git")
	return strings.Join(commands, runJoin)
}

func webRun(urls []string) string {
	if len(urls) == 0 {
		return ""
	}
	commands := []string{}
	for _, url := range urls {
		commands = append(commands, "wget "+url)
	}
	commands = append(commands, "apt-get remove --autoremove -y wget")
	return strings.Join(commands, runJoin)
}

func scriptRun(lines []string) string {
	return JoinCommands(lines...)
}

// JoinCommands chains shell commands into one RUN line, one command per line
func JoinCommands(commands ...string) string {
	return strings.Join(commands, runJoin)
}
