package cfg

import (
	"regexp"
	"strings"

	"github.com/gaia-platform/gdev/pkg/utils"
)

var headerPattern = regexp.MustCompile(`^\[([^\[\]]+)\]$`)

type sectionState struct {
	name        SectionName
	conditional *Conditional
}

// Parse splits the text of target's config file into its sections. Comments
// and blank lines are dropped, predicates are extracted and continuations
// are joined; conditionals are only evaluated later, against the active
// options, so one parse serves every option set.
func Parse(target string, text string, layout Layout) (*File, error) {
	file := &File{
		Target:   target,
		Path:     layout.ConfigPath(target),
		layout:   layout,
		sections: map[SectionName][]Line{},
	}
	displayPath := layout.DisplayPath(target)

	var current *sectionState
	var pending *Line

	for i, raw := range utils.SplitLines(utils.NormalizeLinefeeds(text)) {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		conditional, rest, err := extractConditional(trimmed)
		if err != nil {
			return nil, unrecognizedConditional(err, displayPath, i+1)
		}
		rest = strings.TrimSpace(rest)

		if pending != nil {
			pending.Parts = append(pending.Parts, Part{Text: rest, Conditional: conditional})
			if !continues(rest) {
				file.add(current.name, *pending)
				pending = nil
			}
			continue
		}

		if match := headerPattern.FindStringSubmatch(rest); match != nil {
			name, ok := ParseSectionName(match[1])
			if !ok {
				return nil, utils.NewComplexError(utils.UnrecognizedSection,
					"Unrecognized section %q in %s on line %d", rest, displayPath, i+1)
			}
			current = &sectionState{name: name, conditional: conditional}
			file.touch(name)
			continue
		}

		if current == nil {
			return nil, utils.NewComplexError(utils.UnrecognizedSection,
				"Line %q in %s on line %d appears before any section header", trimmed, displayPath, i+1)
		}

		if conditional == nil {
			conditional = current.conditional
		}
		line := Line{Conditional: conditional, Parts: []Part{{Text: rest}}, Number: i + 1}
		if continues(rest) {
			pending = &line
			continue
		}
		file.add(current.name, line)
	}

	if pending != nil {
		file.add(current.name, *pending)
	}

	return file, nil
}

func continues(text string) bool {
	return strings.HasSuffix(text, `\`)
}

func unrecognizedConditional(err error, displayPath string, number int) error {
	if unrecognized, ok := err.(errUnrecognizedConditional); ok {
		return utils.NewComplexError(utils.UnrecognizedConditional,
			"Unrecognized conditional %q in %s on line %d", unrecognized.text, displayPath, number)
	}
	return err
}
