package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitList(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "empty", input: "", expected: nil},
		{name: "single broker", input: "localhost:9092", expected: []string{"localhost:9092"}},
		{name: "trims and drops blanks", input: " a:9092 ,, b:9092 ", expected: []string{"a:9092", "b:9092"}},
		{name: "repeated origin kept once", input: "https://x.io,https://y.io,https://x.io", expected: []string{"https://x.io", "https://y.io"}},
		{name: "only separators", input: " , ,", expected: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SplitList(tt.input, ","))
		})
	}
}

func TestDedupeAndTrimKeepsNil(t *testing.T) {
	assert.Nil(t, DedupeAndTrim(nil))
}
