package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/shepard/internal/model"
)

// DefaultRadius is the number of characters kept on each side of a citation
const DefaultRadius = 500

// Windows returns a context window for every exact occurrence of citation in text.
// The scan is forward and non-overlapping: after each match it resumes at the
// match's end offset. A citation that does not occur yields no windows.
func Windows(text, citation string, radius int) []model.ContextWindow {
	if citation == "" {
		return nil
	}
	if radius < 0 {
		radius = 0
	}

	var windows []model.ContextWindow
	pos := 0
	for pos <= len(text)-len(citation) {
		idx := strings.Index(text[pos:], citation)
		if idx < 0 {
			break
		}

		start := pos + idx
		end := start + len(citation)
		windows = append(windows, windowAt(text, model.CitationOccurrence{
			Text:  citation,
			Start: start,
			End:   end,
		}, radius))

		pos = end
	}

	return windows
}

// WindowsFor builds windows for each distinct citation in order, concatenated
func WindowsFor(text string, citations []string, radius int) []model.ContextWindow {
	var all []model.ContextWindow
	for _, c := range citations {
		all = append(all, Windows(text, c, radius)...)
	}
	return all
}

func windowAt(text string, occ model.CitationOccurrence, radius int) model.ContextWindow {
	start := occ.Start - radius
	if start < 0 {
		start = 0
	}
	end := occ.End + radius
	if end > len(text) {
		end = len(text)
	}

	// Keep multi-byte runes whole by shrinking toward the citation
	for start < occ.Start && !utf8.RuneStart(text[start]) {
		start++
	}
	for end > occ.End && end < len(text) && !utf8.RuneStart(text[end]) {
		end--
	}

	return model.ContextWindow{
		Citation: occ,
		Start:    start,
		End:      end,
		Text:     text[start:end],
	}
}
