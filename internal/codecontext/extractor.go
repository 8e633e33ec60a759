package codecontext

import (
	"fmt"
	"strconv"
	"strings"
)

// Snippet is a slice of source lines around a commented line. Extraction is
// best effort everywhere: an empty snippet degrades the Slack message but
// never blocks delivery.
type Snippet struct {
	Code            string
	StartLine       int
	EndLine         int
	HighlightedLine int
}

// contextLines is how many lines are shown on each side of the target.
const contextLines = 5

// FromDiff recovers a snippet from a unified diff hunk, tracking new-file
// line numbers from the @@ header. Used when full file content is not
// available for the commented commit.
func FromDiff(diffHunk string, commentedLine int) Snippet {
	if diffHunk == "" {
		return Snippet{HighlightedLine: commentedLine}
	}

	var codeLines []string
	var lineNumbers []int
	currentLine := -1

	for _, line := range strings.Split(diffHunk, "\n") {
		if strings.HasPrefix(line, "@@") {
			currentLine = parseHunkStart(line)
			continue
		}

		if currentLine >= 0 {
			codeLines = append(codeLines, line)
			lineNumbers = append(lineNumbers, currentLine)
			// removed lines do not advance the new-file line counter
			if !strings.HasPrefix(line, "-") {
				currentLine++
			}
		}
	}

	snippet := Snippet{
		Code:            strings.Join(codeLines, "\n"),
		HighlightedLine: commentedLine,
	}
	if len(lineNumbers) > 0 {
		snippet.StartLine = lineNumbers[0]
		snippet.EndLine = lineNumbers[len(lineNumbers)-1]
	}
	return snippet
}

// parseHunkStart extracts the new-file start line from a @@ -a,b +c,d @@ header.
func parseHunkStart(header string) int {
	plus := strings.Index(header, "+")
	if plus < 0 {
		return -1
	}
	rest := header[plus+1:]
	if end := strings.Index(rest, "@@"); end >= 0 {
		rest = rest[:end]
	}
	rest = strings.TrimSpace(rest)
	if comma := strings.Index(rest, ","); comma >= 0 {
		rest = rest[:comma]
	}
	start, err := strconv.Atoi(rest)
	if err != nil {
		return -1
	}
	return start
}

// FromFile takes a window of lines around lineNumber from full file content.
func FromFile(fileContent string, lineNumber int) Snippet {
	if fileContent == "" {
		return Snippet{HighlightedLine: lineNumber}
	}

	lines := strings.Split(fileContent, "\n")
	total := len(lines)

	start := lineNumber - contextLines - 1
	if start < 0 {
		start = 0
	}
	end := lineNumber + contextLines
	if end > total {
		end = total
	}
	// A line number past the end of the content yields an empty snippet;
	// callers fall back to the diff hunk.
	if start > end {
		start = end
	}

	return Snippet{
		Code:            strings.Join(lines[start:end], "\n"),
		StartLine:       start + 1,
		EndLine:         end,
		HighlightedLine: lineNumber,
	}
}

// Render formats a snippet as a fenced block with line numbers, marking the
// commented line with an arrow.
func Render(s Snippet, filePath string) string {
	if s.Code == "" {
		return fmt.Sprintf("_%s_\n```\n(Code context unavailable)\n```", filePath)
	}

	lines := strings.Split(s.Code, "\n")
	formatted := make([]string, 0, len(lines))

	for i, line := range lines {
		currentLine := s.StartLine + i
		prefix := "  "
		if currentLine == s.HighlightedLine {
			prefix = "→ "
		}
		formatted = append(formatted, fmt.Sprintf("%s%4d | %s", prefix, currentLine, line))
	}

	return fmt.Sprintf("_%s_\n```\n%s\n```", filePath, strings.Join(formatted, "\n"))
}
