package index

import (
	"strings"
	"testing"
	"unicode"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "Phishing", want: "phishing"},
		{in: "  phishing ", want: "phishing"},
		{in: "Phishing for  Information", want: "phishing for information"},
		{in: "\tCommand and\nScripting   Interpreter\r\n", want: "command and scripting interpreter"},
		{in: "ÉLÉVATION", want: "élévation"},
		{in: "", want: ""},
		{in: "   ", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestCanonicalID(t *testing.T) {
	assert.Equal(t, "T1059.001", CanonicalID(" t1059.001\n"))
	assert.Equal(t, "", CanonicalID("   "))
}

// TestNormalizeProperties checks normalization invariants on generated input.
func TestNormalizeProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("normalize is idempotent", prop.ForAll(
		func(s string) bool {
			once := Normalize(s)
			return Normalize(once) == once
		},
		gen.UnicodeString(unicode.Latin),
	))

	properties.Property("case and surrounding whitespace do not matter", prop.ForAll(
		func(s string, pad int) bool {
			padding := strings.Repeat(" ", pad)
			return Normalize(padding+strings.ToUpper(s)+padding+"\t") == Normalize(s)
		},
		gen.AlphaString(),
		gen.IntRange(0, 5),
	))

	properties.Property("internal whitespace runs collapse", prop.ForAll(
		func(words []string) bool {
			wide := strings.Join(words, " \t  ")
			narrow := strings.Join(words, " ")
			return Normalize(wide) == Normalize(narrow)
		},
		gen.SliceOf(gen.Identifier()),
	))

	properties.Property("normalized output has no outer or double spaces", prop.ForAll(
		func(s string) bool {
			n := Normalize(s)
			return n == strings.TrimSpace(n) && !strings.Contains(n, "  ")
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
