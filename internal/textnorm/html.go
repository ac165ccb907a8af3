package textnorm

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// blockElements start a new line in the extracted text.
var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true,
	atom.Tr: true, atom.H1: true, atom.H2: true, atom.H3: true,
	atom.H4: true, atom.H5: true, atom.H6: true, atom.Table: true,
	atom.Blockquote: true, atom.Hr: true, atom.Section: true,
}

// HTMLToText returns the visible text of an html document. Script, style
// and title content is skipped; block elements break lines. The result is
// passed through Clean.
func HTMLToText(doc string) string {
	var sb strings.Builder
	z := html.NewTokenizer(strings.NewReader(doc))
	skip := 0

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return Clean(sb.String())

		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch tok.DataAtom {
			case atom.Script, atom.Style, atom.Title:
				if tt == html.StartTagToken {
					skip++
				}
			}
			if blockElements[tok.DataAtom] {
				sb.WriteByte('\n')
			}

		case html.EndTagToken:
			tok := z.Token()
			switch tok.DataAtom {
			case atom.Script, atom.Style, atom.Title:
				if skip > 0 {
					skip--
				}
			}
			if blockElements[tok.DataAtom] {
				sb.WriteByte('\n')
			}

		case html.TextToken:
			if skip == 0 {
				sb.Write(z.Text())
			}
		}
	}
}

// Links returns the href of every anchor and the src of every image in an
// html document, in document order.
func Links(doc string) []string {
	var links []string
	z := html.NewTokenizer(strings.NewReader(doc))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return links
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		tok := z.Token()
		var key string
		switch tok.DataAtom {
		case atom.A:
			key = "href"
		case atom.Img:
			key = "src"
		default:
			continue
		}
		for _, a := range tok.Attr {
			if a.Key == key && strings.TrimSpace(a.Val) != "" {
				links = append(links, strings.TrimSpace(a.Val))
			}
		}
	}
}
