package cfg

import (
	"testing"

	"github.com/gaia-platform/gdev/pkg/config"
	"github.com/gaia-platform/gdev/pkg/utils"
	"github.com/stretchr/testify/assert"
)

func newTestLayout(repoRoot string) Layout {
	return NewLayout(repoRoot, config.GetDefaultConfig().Layout)
}

func mustParse(t *testing.T, text string) *File {
	t.Helper()
	file, err := Parse("production", text, newTestLayout("/repo"))
	if err != nil {
		t.Fatalf("Unexpected error: %s", err)
	}
	return file
}

func TestParseSections(t *testing.T) {
	file := mustParse(t, `
# a comment before anything
[apt]
curl

# comments and blank lines vanish
wget

[stage]
cmake .
make -j$(nproc)
`)

	assert.EqualValues(t, []SectionName{SectionApt, SectionStage}, file.Sections())
	assert.EqualValues(t, []string{"curl", "wget"}, file.Lines(SectionApt, NewEnables()))
	assert.EqualValues(t, []string{"cmake .", "make -j$(nproc)"}, file.Lines(SectionStage, NewEnables()))
	assert.EqualValues(t, []string{}, file.Lines(SectionPip, NewEnables()))
	assert.EqualValues(t, "/repo/production/gdev.cfg", file.Path)
}

func TestParseConditionals(t *testing.T) {
	file := mustParse(t, `
[apt]
curl
{enable_if('CI_GitHub')}gh
{enable_if_not('CI_GitHub')}  vim

{enable_if('GaiaRelease')}[stage]
make release
{enable_if_not('GaiaRelease')}make debug
`)

	type scenario struct {
		enables Enables
		apt     []string
		stage   []string
	}

	scenarios := []scenario{
		{
			NewEnables(),
			[]string{"curl", "vim"},
			[]string{"make debug"},
		},
		{
			NewEnables("CI_GitHub"),
			[]string{"curl", "gh"},
			[]string{"make debug"},
		},
		{
			NewEnables("GaiaRelease"),
			[]string{"curl", "vim"},
			[]string{"make release"},
		},
	}

	for _, s := range scenarios {
		assert.EqualValues(t, s.apt, file.Lines(SectionApt, s.enables))
		assert.EqualValues(t, s.stage, file.Lines(SectionStage, s.enables))
	}
}

func TestParseContinuations(t *testing.T) {
	file := mustParse(t, `
[stage]
{enable_if('X')}cmake \
    -DCMAKE_BUILD_TYPE=Release \
    # a commented continuation line is skipped
    {enable_if('Y')}-DEXTRA=ON \
    .
echo done
`)

	assert.EqualValues(t, []string{"echo done"}, file.Lines(SectionStage, NewEnables()))
	assert.EqualValues(t,
		[]string{"cmake \\\n    -DCMAKE_BUILD_TYPE=Release \\\n    .", "echo done"},
		file.Lines(SectionStage, NewEnables("X")),
	)
	assert.EqualValues(t,
		[]string{"cmake \\\n    -DCMAKE_BUILD_TYPE=Release \\\n    -DEXTRA=ON \\\n    .", "echo done"},
		file.Lines(SectionStage, NewEnables("X", "Y")),
	)
	// Y on its own does nothing, the first physical line governs the whole line
	assert.EqualValues(t, []string{"echo done"}, file.Lines(SectionStage, NewEnables("Y")))
}

func TestParseDroppedFinalContinuation(t *testing.T) {
	file := mustParse(t, `
[stage]
make \
    {enable_if('V')}VERBOSE=1
`)

	assert.EqualValues(t, []string{"make"}, file.Lines(SectionStage, NewEnables()))
	assert.EqualValues(t, []string{"make \\\n    VERBOSE=1"}, file.Lines(SectionStage, NewEnables("V")))
}

func TestParsePlaceholders(t *testing.T) {
	file := mustParse(t, `
[stage]
cmake {source_dir('production')} -B {build_dir("production")}
{enable_if('X')}ln -s {source_dir('third_party')} third_party
`)

	assert.EqualValues(t,
		[]string{"cmake /source/production -B /build/production", "ln -s /source/third_party third_party"},
		file.Lines(SectionStage, NewEnables("X")),
	)
}

func TestParseRepeatedHeaderAccumulates(t *testing.T) {
	file := mustParse(t, `
[apt]
curl
[pip]
pyyaml
[apt]
wget
`)

	assert.EqualValues(t, []SectionName{SectionApt, SectionPip}, file.Sections())
	assert.EqualValues(t, []string{"curl", "wget"}, file.Lines(SectionApt, NewEnables()))
}

func TestParseIsIdempotent(t *testing.T) {
	text := `
[apt]
curl
{enable_if('X')}wget
[install:gaia]
make install
`
	first := mustParse(t, text)
	second := mustParse(t, text)
	assert.EqualValues(t, first, second)
	assert.EqualValues(t, []string{"make install"}, first.Lines(InstallSection("gaia"), NewEnables()))
}

// TestParseErrors is a function.
func TestParseErrors(t *testing.T) {
	type scenario struct {
		text    string
		code    utils.ErrorCode
		message string
	}

	scenarios := []scenario{
		{
			"[apt]\ncurl\n[aptt]\nwget\n",
			utils.UnrecognizedSection,
			`Unrecognized section "[aptt]" in <repo_root>/production/gdev.cfg on line 3`,
		},
		{
			"[install:]\n",
			utils.UnrecognizedSection,
			`Unrecognized section "[install:]" in <repo_root>/production/gdev.cfg on line 1`,
		},
		{
			"curl\n[apt]\n",
			utils.UnrecognizedSection,
			`Line "curl" in <repo_root>/production/gdev.cfg on line 1 appears before any section header`,
		},
		{
			"[apt]\n{enable_iff('X')}curl\n",
			utils.UnrecognizedConditional,
			`Unrecognized conditional "{enable_iff('X')}" in <repo_root>/production/gdev.cfg on line 2`,
		},
		{
			"{enable_if()}[apt]\ncurl\n",
			utils.UnrecognizedConditional,
			`Unrecognized conditional "{enable_if()}" in <repo_root>/production/gdev.cfg on line 1`,
		},
	}

	for _, s := range scenarios {
		_, err := Parse("production", s.text, newTestLayout("/repo"))
		assert.Error(t, err)
		assert.True(t, utils.HasErrorCode(err, s.code), "expected %s, got %v", s.code, err)
		assert.EqualValues(t, s.message, utils.ErrorMessage(err))
	}
}

func TestRender(t *testing.T) {
	file := mustParse(t, `
[apt]
curl
{enable_if('CI_GitHub')}gh

{enable_if_not('X')}[stage]
make {build_dir('production')}
`)

	expected := "[apt]\n" +
		"curl\n" +
		`# enable by setting "CI_GitHub": gh` + "\n" +
		"\n" +
		"[stage]\n" +
		"make /build/production"
	assert.EqualValues(t, expected, file.Render(NewEnables()))

	expected = "[apt]\n" +
		"curl\n" +
		"gh\n" +
		"\n" +
		"[stage]\n" +
		`# enable by not setting "X": make /build/production`
	assert.EqualValues(t, expected, file.Render(NewEnables("CI_GitHub", "X")))
}

// TestParseSectionName is a function.
func TestParseSectionName(t *testing.T) {
	type scenario struct {
		name     string
		expected SectionName
		ok       bool
	}

	scenarios := []scenario{
		{"include", SectionInclude, true},
		{"pre-stage", SectionPreStage, true},
		{"install:gaia", SectionName("install:gaia"), true},
		{"prestage", "", false},
		{"install:", "", false},
	}

	for _, s := range scenarios {
		name, ok := ParseSectionName(s.name)
		assert.EqualValues(t, s.ok, ok)
		assert.EqualValues(t, s.expected, name)
	}
}
