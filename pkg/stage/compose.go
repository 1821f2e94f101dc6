package stage

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

const entrypoint = `ENTRYPOINT [ "/bin/bash" ]`

// Dockerfile is the composed build description of one target stage
type Dockerfile struct {
	Target *Stage
	// Emitted are the stages that got a block of their own, in output order
	Emitted []*Stage
	Text    string
}

// HasStage tells us whether a stage by that name has a block in the dockerfile
func (d *Dockerfile) HasStage(name string) bool {
	return lo.ContainsBy(d.Emitted, func(s *Stage) bool {
		return s.Name == name
	})
}

// Compose walks the stages target depends on and composes them, after the
// static preamble, into one multi-stage dockerfile. A stage gets a block of
// its own only when it has a RUN line or is the target itself; everything
// else is collapsed into the stages copying from it, so that every
// `COPY --from` source carries a RUN instruction for the inline cache to
// attach to. Inputs always come before the stages copying from them.
func Compose(target *Stage, baseImage string) *Dockerfile {
	c := &composer{
		target: target,
		seen:   map[Key]bool{},
	}
	c.emit(target)

	blocks := append([]string{preamble(baseImage)}, c.blocks...)
	return &Dockerfile{
		Target:  target,
		Emitted: c.emitted,
		Text:    strings.Join(blocks, "\n") + "\n",
	}
}

type composer struct {
	target  *Stage
	seen    map[Key]bool
	emitted []*Stage
	blocks  []string
}

func (c *composer) isEmitted(s *Stage) bool {
	return s.Run != "" || s == c.target
}

// emit is a depth first post-order walk, so a block is only appended once
// the blocks of everything it copies from are in place
func (c *composer) emit(s *Stage) {
	if c.seen[s.Key] {
		return
	}
	c.seen[s.Key] = true

	for _, input := range s.Inputs {
		c.emit(input)
	}

	if c.isEmitted(s) {
		c.emitted = append(c.emitted, s)
		c.blocks = append(c.blocks, c.block(s))
	}
}

// copySources returns the COPY lines a stage needs to take in the filesystem
// of its inputs, reaching through collapsed inputs to theirs
func (c *composer) copySources(s *Stage, visited map[Key]bool) []string {
	lines := []string{}
	for _, input := range s.Inputs {
		if visited[input.Key] {
			continue
		}
		visited[input.Key] = true

		if c.isEmitted(input) {
			lines = append(lines, "COPY --from="+input.Name+" / /")
			continue
		}
		lines = append(lines, c.copySources(input, visited)...)
		lines = append(lines, input.Copies...)
	}
	return lines
}

func (c *composer) block(s *Stage) string {
	copies := c.copySources(s, map[Key]bool{s.Key: true})
	copies = lo.Uniq(append(copies, s.Copies...))

	env := lo.Map(s.Env, func(line string, _ int) string {
		return "ENV " + line
	})

	run := ""
	if s.Run != "" {
		run = "RUN " + s.Run
	}

	parts := []string{
		"",
		"# " + s.Key.String(),
		fmt.Sprintf("FROM %s AS %s", s.Base, s.Name),
		strings.Join(copies, "\n"),
		strings.Join(env, "\n"),
		"WORKDIR " + s.Workdir,
		run,
		entrypoint,
	}

	// the leading empty part separates the block from the one before it
	return parts[0] + strings.Join(lo.Filter(parts[1:], func(part string, _ int) bool {
		return part != ""
	}), "\n")
}

func preamble(baseImage string) string {
	groups := []string{
		"groupadd -r -g 101 messagebus",
		"groupadd -r -g 102 postgres",
		"groupadd -r -g 103 ssh",
		"groupadd -r -g 104 ssl-cert",
		"groupadd -r -g 105 systemd-timesync",
		"groupadd -r -g 106 systemd-journal",
		"groupadd -r -g 107 systemd-network",
		"groupadd -r -g 108 systemd-resolve",
	}
	users := []string{
		"useradd messagebus -l -r -u 101 -g 101",
		"useradd postgres -l -r -u 102 -g 102 -G ssl-cert",
		"useradd systemd-timesync -l -r -u 103 -g 105 -d /run/systemd -s /usr/sbin/nologin",
		"useradd systemd-network -l -r -u 104 -g 107 -d /run/systemd -s /usr/sbin/nologin",
		"useradd systemd-resolve -l -r -u 105 -g 108 -d /run/systemd -s /usr/sbin/nologin",
		"useradd sshd -l -r -u 106 -d /run/sshd -s /usr/sbin/nologin",
	}

	install := func(name string, pkg string) string {
		return fmt.Sprintf("FROM %s AS %s\nRUN %s", AptBaseStage, name, strings.Join([]string{
			"apt-get update",
			"DEBIAN_FRONTEND=noninteractive apt-get install -y " + pkg,
			"apt-get clean",
		}, runJoin))
	}

	return strings.Join([]string{
		"#syntax=docker/dockerfile-upstream:master-experimental",
		"",
		"# Static definition of base stages.",
		fmt.Sprintf("FROM %s AS %s", baseImage, BaseStage),
		"RUN " + strings.Join(append(groups, users...), runJoin),
		"",
		fmt.Sprintf("FROM %s AS %s", BaseStage, AptBaseStage),
		`RUN echo "APT::Acquire::Retries \"5\";" > /etc/apt/apt.conf.d/80-retries` + runJoin + "apt-get update",
		"",
		install(GitBaseStage, "git"),
		"",
		install(PipBaseStage, "python3-pip"),
		"",
		install(WebBaseStage, "wget"),
	}, "\n")
}
