package cfg

import "strings"

// File is a parsed config file. It is never modified once parsed.
type File struct {
	// Target is the repo relative directory holding the file
	Target string
	// Path is the file's host path
	Path string
	// HasSiblings tells us the target directory holds more than just the config file
	HasSiblings bool

	layout   Layout
	sections map[SectionName][]Line
	order    []SectionName
}

func (f *File) touch(name SectionName) {
	if _, ok := f.sections[name]; !ok {
		f.sections[name] = []Line{}
		f.order = append(f.order, name)
	}
}

func (f *File) add(name SectionName, line Line) {
	f.touch(name)
	f.sections[name] = append(f.sections[name], line)
}

// Sections returns the section names in the order they first appear
func (f *File) Sections() []SectionName {
	return append([]SectionName{}, f.order...)
}

// HasSection tells us whether the file has a section of that name, even an empty one
func (f *File) HasSection(name SectionName) bool {
	_, ok := f.sections[name]
	return ok
}

// RawLines returns every logical line of a section, enabled or not
func (f *File) RawLines(name SectionName) []Line {
	return append([]Line{}, f.sections[name]...)
}

// Lines returns the resolved text of each enabled line of a section, in order
func (f *File) Lines(name SectionName, enables Enables) []string {
	lines := []string{}
	for _, line := range f.sections[name] {
		if !line.Enabled(enables) {
			continue
		}
		if text := line.Resolve(enables, f.layout); text != "" {
			lines = append(lines, text)
		}
	}
	return lines
}

// Render prints the file back out section by section, with disabled lines
// commented out behind a hint saying how to enable them
func (f *File) Render(enables Enables) string {
	blocks := []string{}
	for _, name := range f.order {
		block := []string{"[" + string(name) + "]"}
		for _, line := range f.sections[name] {
			if line.Enabled(enables) {
				if text := line.Resolve(enables, f.layout); text != "" {
					block = append(block, text)
				}
				continue
			}
			block = append(block, line.Conditional.Hint()+line.Raw(f.layout))
		}
		blocks = append(blocks, strings.Join(block, "\n"))
	}
	return strings.Join(blocks, "\n\n")
}
