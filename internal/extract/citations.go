package extract

import (
	"regexp"

	"github.com/ppiankov/shepard/internal/model"
)

// CitationPattern matches the reporter citation shape: volume, reporter abbreviation, page.
// Reporter tokens start with a capital letter followed by letters or periods
// ("U.S.", "F. Supp.", "S. Ct."). Series markers such as "2d" and pincites are
// not recognized.
var CitationPattern = regexp.MustCompile(`\b\d+\s+[A-Z][A-Za-z.]*(?:\s+[A-Z][A-Za-z.]*)*\s+\d+\b`)

var citationShape = regexp.MustCompile(`^` + CitationPattern.String() + `$`)

// IsCitation reports whether s as a whole has the citation shape
func IsCitation(s string) bool {
	return citationShape.MatchString(s)
}

// Locate returns every citation occurrence in text, in document order
func Locate(text string) []model.CitationOccurrence {
	matches := CitationPattern.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return nil
	}

	occurrences := make([]model.CitationOccurrence, 0, len(matches))
	for _, m := range matches {
		occurrences = append(occurrences, model.CitationOccurrence{
			Text:  text[m[0]:m[1]],
			Start: m[0],
			End:   m[1],
		})
	}
	return occurrences
}

// Citations returns the distinct citation strings in text in first-appearance order.
// Citation text is not normalized, so differently spaced variants are distinct.
func Citations(text string) []string {
	seen := make(map[string]bool)
	var unique []string

	for _, occ := range Locate(text) {
		if !seen[occ.Text] {
			seen[occ.Text] = true
			unique = append(unique, occ.Text)
		}
	}

	return unique
}
