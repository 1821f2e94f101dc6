package cfg

import (
	"regexp"
	"strings"
)

// continuationJoin is what physical lines of one logical line are joined with
const continuationJoin = "\n    "

var placeholderPattern = regexp.MustCompile(`\{\s*(source_dir|build_dir)\(\s*(?:'([^']*)'|"([^"]*)")\s*\)\s*\}`)

// Part is one physical line of a logical line
type Part struct {
	Text string
	// Conditional is only ever set on continuation parts that carry their own predicate
	Conditional *Conditional
}

// Line is one logical config line, possibly continued over several physical lines
type Line struct {
	// Conditional governs the whole logical line. It is the line's own predicate,
	// or the section's default when the line has none
	Conditional *Conditional
	Parts       []Part
	// Number is the physical line number the logical line starts on
	Number int
}

// Enabled tells us whether the line survives conditional filtering
func (l Line) Enabled(enables Enables) bool {
	return l.Conditional.Evaluate(enables)
}

// Resolve joins the line's enabled parts and substitutes placeholders
func (l Line) Resolve(enables Enables, layout Layout) string {
	parts := []string{}
	for _, part := range l.Parts {
		if part.Conditional.Evaluate(enables) {
			parts = append(parts, part.Text)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	// a dropped final continuation must not leave a dangling backslash behind
	last := len(parts) - 1
	parts[last] = strings.TrimRight(strings.TrimSuffix(parts[last], `\`), " \t")

	return substitute(strings.Join(parts, continuationJoin), layout)
}

// Raw is the line as written, every part included, for display
func (l Line) Raw(layout Layout) string {
	parts := make([]string, len(l.Parts))
	for i, part := range l.Parts {
		parts[i] = part.Text
		if part.Conditional != nil {
			parts[i] = part.Conditional.Text + part.Text
		}
	}
	return substitute(strings.Join(parts, continuationJoin), layout)
}

func substitute(text string, layout Layout) string {
	return placeholderPattern.ReplaceAllStringFunc(text, func(call string) string {
		match := placeholderPattern.FindStringSubmatch(call)
		rel := match[2]
		if rel == "" {
			rel = match[3]
		}
		switch match[1] {
		case "source_dir":
			return layout.SourcePath(rel)
		default:
			return layout.BuildPath(rel)
		}
	})
}
