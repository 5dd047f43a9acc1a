package extract

import (
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	blankLines  = regexp.MustCompile(`\n[ \t\r\f\v]*(\n[ \t\r\f\v]*)+`)
	lineSpacing = regexp.MustCompile(`[ \t\r\f\v]+\n`)
)

// blockElements end a line of visible text
var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "section": true, "article": true, "pre": true,
	"table": true, "ul": true, "ol": true, "hr": true, "footer": true, "header": true,
}

// OpinionText parses an HTML document and returns its visible text.
// Inline markup is dropped without inserting separators so citations split
// across tags ("410 <i>U.S.</i> 113") stay intact.
func OpinionText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", err
	}
	return VisibleText(doc), nil
}

// VisibleText extracts text nodes from an HTML tree, skipping scripts and styles
func VisibleText(n *html.Node) string {
	var buf strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "head", "template":
				return
			}
		}

		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}

		if n.Type == html.ElementNode && blockElements[n.Data] {
			buf.WriteString("\n")
		}
	}

	walk(n)
	return normalizeLines(buf.String())
}

// normalizeLines collapses runs of blank lines and trims the result
func normalizeLines(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = lineSpacing.ReplaceAllString(s, "\n")
	s = blankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
