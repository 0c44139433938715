package archive

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stringReaderAt struct {
	s string
}

func (s stringReaderAt) ReadAt(p []byte, off int64) (int, error) {
	n := copy(p, s.s[off:])
	if n < len(p) {
		return n, nil
	}
	return n, nil
}

func reverseLines(t *testing.T, content string) []string {
	t.Helper()
	rr := NewReverseLineReader(stringReaderAt{content}, int64(len(content)))
	lines, err := ReadAllReverse(rr)
	require.NoError(t, err)
	return lines
}

func TestReverseLineReader_Basic(t *testing.T) {
	content := "line1\nline2\nline3\n"
	assert.Equal(t, []string{"line3", "line2", "line1"}, reverseLines(t, content))
}

func TestReverseLineReader_NoTrailingNewline(t *testing.T) {
	content := "line1\nline2\nline3"
	assert.Equal(t, []string{"line3", "line2", "line1"}, reverseLines(t, content))
}

func TestReverseLineReader_EmptyFile(t *testing.T) {
	assert.Empty(t, reverseLines(t, ""))
}

func TestReverseLineReader_NoSpuriousEmptyLineOnTrailingNewline(t *testing.T) {
	lines := reverseLines(t, "only\n")
	assert.Equal(t, []string{"only"}, lines)
}

func TestReverseLineReader_ShorterThanBuffer(t *testing.T) {
	old := reverseBufSize
	reverseBufSize = 8 * 1024 * 1024
	defer func() { reverseBufSize = old }()
	assert.Equal(t, []string{"b", "a"}, reverseLines(t, "a\nb\n"))
}

func TestReverseLineReader_MultiChunkBoundary(t *testing.T) {
	old := reverseBufSize
	reverseBufSize = 10 // force several small chunks, splitting lines across boundaries
	defer func() { reverseBufSize = old }()

	var lines []string
	for i := 0; i < 50; i++ {
		lines = append(lines, "line-number-"+string(rune('a'+i%26))+"-padding")
	}
	content := strings.Join(lines, "\n") + "\n"

	got := reverseLines(t, content)
	require.Len(t, got, len(lines))
	for i, line := range got {
		assert.Equal(t, lines[len(lines)-1-i], line)
	}
}

func TestReverseLineReader_ForwardThenReversedReconstructsOriginal(t *testing.T) {
	var lines []string
	for i := 0; i < 200; i++ {
		lines = append(lines, "tweet-"+string(rune('A'+i%26)))
	}
	content := strings.Join(lines, "\n") + "\n"

	reversed := reverseLines(t, content)
	// Reverse it back and compare to the original forward order.
	reconstructed := make([]string, len(reversed))
	for i, l := range reversed {
		reconstructed[len(reversed)-1-i] = l
	}
	assert.Equal(t, lines, reconstructed)
}
