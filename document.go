package evidgo

import (
	"strings"

	"github.com/evidgo/evidgo/model"
)

type docSnippet struct {
	text  string
	lines model.LineRange
}

// splitDocument cuts content into paragraph snippets with 1-based line
// ranges. Paragraphs longer than maxLines are split at the line cap so no
// snippet grows unbounded.
func splitDocument(content string, maxLines int) []docSnippet {
	if maxLines <= 0 {
		maxLines = DefaultSnippetLines
	}

	var (
		snippets []docSnippet
		run      []string
		runStart int
	)
	flush := func(end int) {
		if len(run) == 0 {
			return
		}
		text := strings.TrimSpace(strings.Join(run, "\n"))
		if text != "" {
			snippets = append(snippets, docSnippet{
				text:  text,
				lines: model.LineRange{Start: runStart, End: end},
			})
		}
		run = nil
	}

	for i, line := range strings.Split(content, "\n") {
		lineno := i + 1
		if strings.TrimSpace(line) == "" {
			flush(lineno - 1)
			continue
		}
		if len(run) == 0 {
			runStart = lineno
		}
		run = append(run, line)
		if len(run) >= maxLines {
			flush(lineno)
		}
	}
	flush(len(strings.Split(content, "\n")))

	return snippets
}
