package model

// CitationOccurrence is one appearance of a citation string in an opinion.
// Offsets are byte offsets into the opinion text; End is exclusive.
type CitationOccurrence struct {
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// ContextWindow is a contiguous slice of opinion text around one citation occurrence
type ContextWindow struct {
	Citation CitationOccurrence `json:"citation"`
	Start    int                `json:"start"` // Window start offset in the opinion
	End      int                `json:"end"`   // Window end offset (exclusive)
	Text     string             `json:"text"`
}

// Len returns the window length in bytes
func (w ContextWindow) Len() int {
	return w.End - w.Start
}
