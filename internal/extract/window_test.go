package extract

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestWindows_ScenarioClipsToDocument(t *testing.T) {
	windows := Windows(scenarioOpinion, "410 U.S. 113", DefaultRadius)

	if len(windows) != 2 {
		t.Fatalf("Expected 2 windows, got %d", len(windows))
	}

	for _, w := range windows {
		if w.Start != 0 || w.End != len(scenarioOpinion) {
			t.Errorf("Expected window clipped to [0,%d), got [%d,%d)", len(scenarioOpinion), w.Start, w.End)
		}
		if w.Text != scenarioOpinion {
			t.Error("Expected window text to equal the whole short opinion")
		}
	}

	if windows[0].Citation.Start == windows[1].Citation.Start {
		t.Error("Expected distinct occurrence offsets")
	}
}

func TestWindows_Radius(t *testing.T) {
	citation := "410 U.S. 113"
	text := strings.Repeat("a ", 600) + citation + strings.Repeat(" b", 600)

	windows := Windows(text, citation, 500)
	if len(windows) != 1 {
		t.Fatalf("Expected 1 window, got %d", len(windows))
	}

	w := windows[0]
	if w.Citation.Start != 1200 {
		t.Fatalf("Expected citation at 1200, got %d", w.Citation.Start)
	}
	if w.Start != 700 || w.End != 1200+len(citation)+500 {
		t.Errorf("Unexpected window bounds [%d,%d)", w.Start, w.End)
	}
	if w.Len() != 2*500+len(citation) {
		t.Errorf("Expected window length %d, got %d", 2*500+len(citation), w.Len())
	}
	if text[w.Start:w.End] != w.Text {
		t.Error("Window text is not the slice it claims to be")
	}
}

func TestWindows_NotFound(t *testing.T) {
	if windows := Windows(scenarioOpinion, "999 U.S. 1", DefaultRadius); len(windows) != 0 {
		t.Errorf("Expected no windows, got %d", len(windows))
	}
	if windows := Windows(scenarioOpinion, "", DefaultRadius); len(windows) != 0 {
		t.Errorf("Expected no windows for empty citation, got %d", len(windows))
	}
	if windows := Windows("", "410 U.S. 113", DefaultRadius); len(windows) != 0 {
		t.Errorf("Expected no windows for empty text, got %d", len(windows))
	}
}

func TestWindows_CaseSensitive(t *testing.T) {
	if windows := Windows("cite 5 u.s. 1 here", "5 U.S. 1", 10); len(windows) != 0 {
		t.Errorf("Expected case-sensitive match to find nothing, got %d", len(windows))
	}
}

func TestWindows_AdjacentIdenticalCitations(t *testing.T) {
	windows := Windows("ababab", "ab", 0)
	if len(windows) != 3 {
		t.Fatalf("Expected 3 windows, got %d", len(windows))
	}
	for i, w := range windows {
		if w.Citation.Start != i*2 {
			t.Errorf("Window %d: expected start %d, got %d", i, i*2, w.Citation.Start)
		}
	}
}

func TestWindows_NonOverlappingScan(t *testing.T) {
	text := "aaaaa"
	windows := Windows(text, "aa", 1)

	if len(windows) != 2 {
		t.Fatalf("Expected 2 non-overlapping occurrences, got %d", len(windows))
	}

	covered := make(map[int]bool)
	for _, w := range windows {
		for pos := w.Citation.Start; pos < w.Citation.End; pos++ {
			if covered[pos] {
				t.Errorf("Position %d counted by more than one occurrence", pos)
			}
			covered[pos] = true
		}
	}
}

func TestWindows_NegativeRadius(t *testing.T) {
	windows := Windows(scenarioOpinion, "410 U.S. 113", -10)
	if len(windows) != 2 {
		t.Fatalf("Expected 2 windows, got %d", len(windows))
	}
	if windows[0].Text != "410 U.S. 113" {
		t.Errorf("Expected bare citation for zero radius, got %q", windows[0].Text)
	}
}

func TestWindows_KeepsRunesWhole(t *testing.T) {
	text := "§§§ 5 U.S. 1 §§§"
	windows := Windows(text, "5 U.S. 1", 2)
	if len(windows) != 1 {
		t.Fatalf("Expected 1 window, got %d", len(windows))
	}
	if !utf8.ValidString(windows[0].Text) {
		t.Fatalf("Window split a multi-byte rune: %q", windows[0].Text)
	}
}

func TestWindowsFor_OrderFollowsCitations(t *testing.T) {
	text := "A 1 U.S. 1 B 2 U.S. 2 C 1 U.S. 1"
	windows := WindowsFor(text, Citations(text), 2)

	if len(windows) != 3 {
		t.Fatalf("Expected 3 windows, got %d", len(windows))
	}
	if windows[0].Citation.Text != "1 U.S. 1" || windows[1].Citation.Text != "1 U.S. 1" || windows[2].Citation.Text != "2 U.S. 2" {
		t.Errorf("Unexpected window order: %v, %v, %v", windows[0].Citation, windows[1].Citation, windows[2].Citation)
	}
}
