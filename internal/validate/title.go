package validate

import (
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// maxTitleScan bounds how much of a page is read looking for <title>
const maxTitleScan = 256 << 10

// extractTitle returns the first <title> text in an HTML stream
func extractTitle(r io.Reader) string {
	z := html.NewTokenizer(io.LimitReader(r, maxTitleScan))
	inTitle := false
	var b strings.Builder

	for {
		switch z.Next() {
		case html.ErrorToken:
			return cleanTitle(b.String())
		case html.StartTagToken:
			name, _ := z.TagName()
			if atom.Lookup(name) == atom.Title {
				inTitle = true
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch atom.Lookup(name) {
			case atom.Title:
				if inTitle {
					return cleanTitle(b.String())
				}
			case atom.Head:
				// Title belongs in <head>; give up once it closes
				return cleanTitle(b.String())
			}
		case html.TextToken:
			if inTitle {
				b.Write(z.Text())
			}
		}
	}
}

func cleanTitle(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > 200 {
		s = string(r[:200])
	}
	return s
}
