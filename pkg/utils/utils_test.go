package utils

import (
	"testing"

	"github.com/go-errors/errors"
	"github.com/stretchr/testify/assert"
	"golang.org/x/xerrors"
)

// TestSplitLines is a function.
func TestSplitLines(t *testing.T) {
	type scenario struct {
		multilineString string
		expected        []string
	}

	scenarios := []scenario{
		{
			"",
			[]string{},
		},
		{
			"\n",
			[]string{},
		},
		{
			"hello world !\nhello universe !\n",
			[]string{
				"hello world !",
				"hello universe !",
			},
		},
	}

	for _, s := range scenarios {
		assert.EqualValues(t, s.expected, SplitLines(s.multilineString))
	}
}

// TestNormalizeLinefeeds is a function.
func TestNormalizeLinefeeds(t *testing.T) {
	type scenario struct {
		byteArray []byte
		expected  []byte
	}
	scenarios := []scenario{
		{
			// \r\n
			[]byte{97, 115, 100, 102, 13, 10},
			[]byte{97, 115, 100, 102, 10},
		},
		{
			// bash\r\nblah
			[]byte{97, 115, 100, 102, 13, 10, 97, 115, 100, 102},
			[]byte{97, 115, 100, 102, 10, 97, 115, 100, 102},
		},
		{
			// \r
			[]byte{97, 115, 100, 102, 13},
			[]byte{97, 115, 100, 102},
		},
		{
			// \n
			[]byte{97, 115, 100, 102, 10},
			[]byte{97, 115, 100, 102, 10},
		},
	}

	for _, s := range scenarios {
		assert.EqualValues(t, string(s.expected), NormalizeLinefeeds(string(s.byteArray)))
	}
}

// TestResolvePlaceholderString is a function.
func TestResolvePlaceholderString(t *testing.T) {
	type scenario struct {
		templateString string
		arguments      map[string]string
		expected       string
	}

	scenarios := []scenario{
		{
			"",
			map[string]string{},
			"",
		},
		{
			"hello",
			map[string]string{},
			"hello",
		},
		{
			"hello {{arg}}",
			map[string]string{},
			"hello {{arg}}",
		},
		{
			"hello {{arg}}",
			map[string]string{"arg": "there"},
			"hello there",
		},
		{
			"hello",
			map[string]string{"arg": "there"},
			"hello",
		},
		{
			"{{nothing}}",
			map[string]string{"nothing": ""},
			"",
		},
		{
			"{{}} {{ this }} { should not throw}} an {{{{}}}} error",
			map[string]string{
				"blah": "blah",
				"this": "won't match",
			},
			"{{}} {{ this }} { should not throw}} an {{{{}}}} error",
		},
	}

	for _, s := range scenarios {
		assert.EqualValues(t, s.expected, ResolvePlaceholderString(s.templateString, s.arguments))
	}
}


// TestWithShortSha is a function.
func TestWithShortSha(t *testing.T) {
	type scenario struct {
		str      string
		expected string
	}

	scenarios := []scenario{
		{
			"",
			"",
		},
		{
			"gaia__stage:0123456789abcdef0123456789abcdef01234567",
			"gaia__stage:0123456789abcdef0123456789abcdef01234567",
		},
		{
			"identity 0123456789abcdef0123456789abcdef01234567",
			"identity 0123456789",
		},
		{
			"tainted",
			"tainted",
		},
	}

	for _, s := range scenarios {
		assert.EqualValues(t, s.expected, WithShortSha(s.str))
	}
}

// TestShellJoin is a function.
func TestShellJoin(t *testing.T) {
	type scenario struct {
		argv     []string
		expected string
	}

	scenarios := []scenario{
		{
			[]string{"docker", "image", "prune", "-f"},
			"docker image prune -f",
		},
		{
			[]string{"docker", "run", "--label", `GitHash=abc`, "-c", "echo hi"},
			`docker run --label GitHash=abc -c "echo hi"`,
		},
		{
			[]string{"echo", `say "hi"`, ""},
			`echo "say \"hi\"" ""`,
		},
	}

	for _, s := range scenarios {
		assert.EqualValues(t, s.expected, ShellJoin(s.argv))
	}
}

// TestHasErrorCode is a function.
func TestHasErrorCode(t *testing.T) {
	type scenario struct {
		err      error
		code     ErrorCode
		expected bool
	}

	notFound := NewComplexError(ConfigNotFound, `File "<repo_root>/%s" must exist.`, "a/gdev.cfg")

	scenarios := []scenario{
		{
			notFound,
			ConfigNotFound,
			true,
		},
		{
			notFound,
			TaintedUpload,
			false,
		},
		{
			WrapError(notFound),
			ConfigNotFound,
			true,
		},
		{
			xerrors.Errorf("loading graph: %w", notFound),
			ConfigNotFound,
			true,
		},
		{
			errors.New("plain"),
			ConfigNotFound,
			false,
		},
	}

	for _, s := range scenarios {
		assert.EqualValues(t, s.expected, HasErrorCode(s.err, s.code))
	}
}

// TestErrorMessage is a function.
func TestErrorMessage(t *testing.T) {
	err := WrapError(NewComplexError(MissingSeparatorArgs, "arguments %q must be preceded by --", "echo hi"))
	assert.EqualValues(t, `arguments "echo hi" must be preceded by --`, ErrorMessage(err))
	assert.EqualValues(t, "plain", ErrorMessage(errors.New("plain")))
	assert.Contains(t, NewComplexError(TaintedUpload, "dirty").Error(), "TaintedUpload: dirty")
}

// TestWrapErrorNil is a function.
func TestWrapErrorNil(t *testing.T) {
	assert.NoError(t, WrapError(nil))
}
