package cfg

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// ConditionalKind is one of the four predicate forms a line may open with
type ConditionalKind int

const (
	EnableIf ConditionalKind = iota
	EnableIfNot
	EnableIfAny
	EnableIfNotAny
)

var conditionalNames = map[string]ConditionalKind{
	"enable_if":         EnableIf,
	"enable_if_not":     EnableIfNot,
	"enable_if_any":     EnableIfAny,
	"enable_if_not_any": EnableIfNotAny,
}

// placeholder functions share the brace syntax but are substituted, not evaluated
var placeholderNames = map[string]bool{
	"source_dir": true,
	"build_dir":  true,
}

const maxConditionalOptions = 3

var (
	leadingCallPattern = regexp.MustCompile(`^\{\s*([A-Za-z_][A-Za-z0-9_]*)\((.*?)\)\s*\}\s*`)
	argumentPattern    = regexp.MustCompile(`^\s*(?:'([^']*)'|"([^"]*)")\s*(?:,|$)`)
)

// Enables is the set of active options conditionals are evaluated against
type Enables map[string]struct{}

// NewEnables builds an option set
func NewEnables(names ...string) Enables {
	enables := Enables{}
	for _, name := range names {
		enables[name] = struct{}{}
	}
	return enables
}

// Has tells us whether an option is active
func (e Enables) Has(name string) bool {
	_, ok := e[name]
	return ok
}

// Key returns the canonical form of the set
func (e Enables) Key() string {
	names := make([]string, 0, len(e))
	for name := range e {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

// Conditional gates a line or a whole section on the active options
type Conditional struct {
	Kind    ConditionalKind
	Options []string
	// Text is the predicate as written, braces included
	Text string
}

// Evaluate tells us whether a line carrying this conditional is enabled. A nil
// conditional is always enabled.
func (c *Conditional) Evaluate(enables Enables) bool {
	if c == nil {
		return true
	}

	intersects := false
	for _, option := range c.Options {
		if enables.Has(option) {
			intersects = true
			break
		}
	}

	switch c.Kind {
	case EnableIfNot, EnableIfNotAny:
		return !intersects
	default:
		return intersects
	}
}

// Hint explains what it would take to enable a line carrying this conditional
func (c *Conditional) Hint() string {
	if c == nil {
		return ""
	}

	options := append([]string{}, c.Options...)
	sort.Strings(options)

	switch c.Kind {
	case EnableIf:
		return fmt.Sprintf("# enable by setting %q: ", options[0])
	case EnableIfNot:
		return fmt.Sprintf("# enable by not setting %q: ", options[0])
	case EnableIfAny:
		return fmt.Sprintf("# enable by setting any of \"%v\": ", options)
	default:
		return fmt.Sprintf("# enable by not setting any of \"%v\": ", options)
	}
}

func (c *Conditional) String() string {
	if c == nil {
		return ""
	}
	return c.Text
}

// errUnrecognizedConditional is returned by ParseConditional; callers add the file
type errUnrecognizedConditional struct {
	text string
}

func (e errUnrecognizedConditional) Error() string {
	return fmt.Sprintf("unrecognized conditional %q", e.text)
}

// ParseConditional parses a full predicate such as `{enable_if_any('A', "B")}`
func ParseConditional(text string) (*Conditional, error) {
	conditional, rest, err := extractConditional(text)
	if err != nil {
		return nil, err
	}
	if conditional == nil || rest != "" {
		return nil, errUnrecognizedConditional{text: text}
	}
	return conditional, nil
}

// extractConditional splits a leading predicate off a line. A line that does
// not open with a brace call, or opens with a placeholder, has no conditional.
func extractConditional(line string) (*Conditional, string, error) {
	match := leadingCallPattern.FindStringSubmatch(line)
	if match == nil || placeholderNames[match[1]] {
		return nil, line, nil
	}

	predicate := strings.TrimSpace(match[0])
	kind, ok := conditionalNames[match[1]]
	if !ok {
		return nil, "", errUnrecognizedConditional{text: predicate}
	}

	options, ok := parseArguments(match[2])
	if !ok || len(options) == 0 || len(options) > maxConditionalOptions {
		return nil, "", errUnrecognizedConditional{text: predicate}
	}
	if (kind == EnableIf || kind == EnableIfNot) && len(options) != 1 {
		return nil, "", errUnrecognizedConditional{text: predicate}
	}

	conditional := &Conditional{Kind: kind, Options: options, Text: predicate}
	return conditional, line[len(match[0]):], nil
}

// parseArguments parses a comma separated list of quoted strings
func parseArguments(arguments string) ([]string, bool) {
	options := []string{}
	for strings.TrimSpace(arguments) != "" {
		match := argumentPattern.FindStringSubmatchIndex(arguments)
		if match == nil {
			return nil, false
		}
		if match[2] >= 0 {
			options = append(options, arguments[match[2]:match[3]])
		} else {
			options = append(options, arguments[match[4]:match[5]])
		}
		arguments = arguments[match[1]:]
	}
	return options, true
}
