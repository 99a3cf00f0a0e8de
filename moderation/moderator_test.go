package moderation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const replacementChar = '*'

// TestModerator_Censor
// The dictionary uses specific words to avoid partial collisions (e.g., "pal" inside "paypal")
func TestModerator_Censor(t *testing.T) {
	req := require.New(t)
	dictionary := []string{"whatsapp", "paypal", "wire transfer"}
	mod, err := NewModerator(dictionary, replacementChar)
	req.NoError(err)

	tests := []struct {
		name     string
		input    string
		expected string
		words    []string
	}{
		{
			name:     "Simple word and space preservation",
			input:    "Contact me on whatsapp",
			expected: "Contact me on ********",
			words:    []string{"whatsapp"},
		},
		{
			name:     "Multiple occurrences",
			input:    "paypal or PAYPAL",
			expected: "****** or ******",
			words:    []string{"paypal", "paypal"},
		},
		{
			name: "Leet speak and internal punctuation",
			// w.h.4.t.s.4.p.p -> 8 letters plus 7 dots, 15 masked runes
			input:    "Use w.h.4.t.s.4.p.p now",
			expected: "Use *************** now",
			words:    []string{"whatsapp"},
		},
		{
			name:     "Multi-word term keeps its internal space masked",
			input:    "send a Wire Transfer please",
			expected: "send a ************* please",
			words:    []string{"wiretransfer"},
		},
		{
			name:     "Word adjacent to trailing punctuation",
			input:    "I only take paypal!",
			expected: "I only take ******!",
			words:    []string{"paypal"},
		},
		{
			name:     "Nothing to censor",
			input:    "The flat is still available",
			expected: "The flat is still available",
			words:    nil,
		},
		{
			name:     "Empty string",
			input:    "",
			expected: "",
			words:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content, words := mod.Censor(tt.input)
			req.Equal(tt.expected, content, "test=%s,", tt.name)
			req.Equal(tt.words, words, "expected=%s,words=%s", tt.expected, words)
		})
	}
}

func TestModerator_CornerCases(t *testing.T) {
	req := require.New(t)

	// Given real noise and not Leet Speak associated
	dictionary := []string{"...", ",,,", "", "paypal"}

	mod, err := NewModerator(dictionary, replacementChar)
	req.NoError(err)

	// Then the sentence is censored
	input := "Pay with paypal only"
	expected := "Pay with ****** only"
	content, words := mod.Censor(input)
	req.Equal(expected, content)
	req.Equal([]string{"paypal"}, words)

	// Then real noise is uncensored
	input = "Hello ..."
	expected = "Hello ..."
	content, words = mod.Censor(input)
	req.Equal(expected, content)
	req.Nil(words)
}
