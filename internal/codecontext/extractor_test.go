package codecontext

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const sampleHunk = "@@ -10,4 +10,5 @@ func main() {\n" +
	" \tfmt.Println(\"a\")\n" +
	"-\tfmt.Println(\"b\")\n" +
	"+\tfmt.Println(\"B\")\n" +
	"+\tfmt.Println(\"c\")\n" +
	" }"

func TestFromDiff(t *testing.T) {
	s := FromDiff(sampleHunk, 12)

	assert.Equal(t, 10, s.StartLine)
	assert.Equal(t, 12, s.HighlightedLine)
	assert.Contains(t, s.Code, `fmt.Println("B")`)

	// Removed lines are shown but do not advance the new-file counter
	lines := strings.Split(s.Code, "\n")
	assert.Len(t, lines, 5)
}

func TestFromDiffEmpty(t *testing.T) {
	s := FromDiff("", 7)
	assert.Equal(t, "", s.Code)
	assert.Equal(t, 7, s.HighlightedLine)
}

func TestFromDiffSingleLineHeader(t *testing.T) {
	// Hunk headers without a count still parse: @@ -3 +3 @@
	s := FromDiff("@@ -3 +3 @@\n+added", 3)
	assert.Equal(t, 3, s.StartLine)
	assert.Equal(t, "+added", s.Code)
}

func TestFromFile(t *testing.T) {
	var lines []string
	for i := 1; i <= 20; i++ {
		lines = append(lines, "line")
	}
	content := strings.Join(lines, "\n")

	s := FromFile(content, 10)
	assert.Equal(t, 5, s.StartLine)
	assert.Equal(t, 15, s.EndLine)
	assert.Equal(t, 10, s.HighlightedLine)
	assert.Len(t, strings.Split(s.Code, "\n"), 11)
}

func TestFromFileClampsAtBoundaries(t *testing.T) {
	content := "a\nb\nc"

	s := FromFile(content, 1)
	assert.Equal(t, 1, s.StartLine)
	assert.Equal(t, 3, s.EndLine)

	s = FromFile(content, 3)
	assert.Equal(t, 1, s.StartLine)
	assert.Equal(t, 3, s.EndLine)
}

func TestFromFileLineBeyondContent(t *testing.T) {
	s := FromFile("a\nb\nc", 50)
	assert.Equal(t, "", s.Code)
	assert.Equal(t, 50, s.HighlightedLine)
}

func TestFromFileEmpty(t *testing.T) {
	s := FromFile("", 5)
	assert.Equal(t, "", s.Code)
	assert.Equal(t, 5, s.HighlightedLine)
}

func TestRender(t *testing.T) {
	s := Snippet{Code: "first\nsecond\nthird", StartLine: 11, EndLine: 13, HighlightedLine: 12}
	out := Render(s, "pkg/widget.go")

	assert.Contains(t, out, "_pkg/widget.go_")
	assert.Contains(t, out, "→   12 | second")
	assert.Contains(t, out, "    11 | first")
	assert.True(t, strings.HasSuffix(out, "```"))
}

func TestRenderUnavailable(t *testing.T) {
	out := Render(Snippet{HighlightedLine: 3}, "pkg/widget.go")
	assert.Contains(t, out, "(Code context unavailable)")
}
