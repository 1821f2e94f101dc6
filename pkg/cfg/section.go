package cfg

import "strings"

// SectionName names a bracketed section of a config file
type SectionName string

const (
	SectionInclude   SectionName = "include"
	SectionApt       SectionName = "apt"
	SectionPip       SectionName = "pip"
	SectionGit       SectionName = "git"
	SectionWeb       SectionName = "web"
	SectionEnv       SectionName = "env"
	SectionPreStage  SectionName = "pre-stage"
	SectionStage     SectionName = "stage"
	SectionCopy      SectionName = "copy"
	SectionArtifacts SectionName = "artifacts"
	SectionPackage   SectionName = "package"
	SectionTests     SectionName = "tests"
	SectionInstalls  SectionName = "installs"
)

const installPrefix = "install:"

var knownSections = map[SectionName]bool{
	SectionInclude:   true,
	SectionApt:       true,
	SectionPip:       true,
	SectionGit:       true,
	SectionWeb:       true,
	SectionEnv:       true,
	SectionPreStage:  true,
	SectionStage:     true,
	SectionCopy:      true,
	SectionArtifacts: true,
	SectionPackage:   true,
	SectionTests:     true,
	SectionInstalls:  true,
}

// InstallSection returns the section holding the install steps for one artifact
func InstallSection(name string) SectionName {
	return SectionName(installPrefix + name)
}

// ParseSectionName validates a section header's name
func ParseSectionName(name string) (SectionName, bool) {
	section := SectionName(strings.TrimSpace(name))
	if knownSections[section] {
		return section, true
	}
	if strings.HasPrefix(string(section), installPrefix) && len(section) > len(installPrefix) {
		return section, true
	}
	return "", false
}
