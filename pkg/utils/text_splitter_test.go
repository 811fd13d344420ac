package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitText(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		size      int
		overlap   int
		wantCount int
	}{
		{name: "short text", text: "abc", size: 10, overlap: 2, wantCount: 1},
		{name: "exact size", text: strings.Repeat("a", 10), size: 10, overlap: 2, wantCount: 1},
		{name: "overlapping", text: strings.Repeat("a", 25), size: 10, overlap: 2, wantCount: 3},
		{name: "overlap too large", text: strings.Repeat("a", 25), size: 10, overlap: 10, wantCount: 3},
		{name: "no size", text: "abc", size: 0, overlap: 0, wantCount: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, SplitText(tt.text, tt.size, tt.overlap), tt.wantCount)
		})
	}
}

func TestSplitText_OverlapIsShared(t *testing.T) {
	chunks := SplitText("abcdefghijklmno", 6, 2)
	assert.Equal(t, []string{"abcdef", "efghij", "ijklmn", "mno"}, chunks)
}

func TestSplitText_Runes(t *testing.T) {
	chunks := SplitText("ääääää", 4, 0)
	assert.Equal(t, []string{"ääää", "ää"}, chunks)
}
