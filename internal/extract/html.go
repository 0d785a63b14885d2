package extract

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Tags whose subtrees carry no readable content.
var skippedTags = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Nav:      true,
	atom.Footer:   true,
	atom.Header:   true,
	atom.Aside:    true,
	atom.Iframe:   true,
	atom.Noscript: true,
}

// Tags that end a visual block; their close emits a newline.
var blockTags = map[atom.Atom]bool{
	atom.P:          true,
	atom.Div:        true,
	atom.Br:         true,
	atom.H1:         true,
	atom.H2:         true,
	atom.H3:         true,
	atom.H4:         true,
	atom.H5:         true,
	atom.H6:         true,
	atom.Li:         true,
	atom.Tr:         true,
	atom.Table:      true,
	atom.Blockquote: true,
	atom.Pre:        true,
	atom.Section:    true,
	atom.Article:    true,
}

var (
	spaceRun   = regexp.MustCompile(`[ \t]+`)
	newlineRun = regexp.MustCompile(`\n{3,}`)
)

// StripHTML reduces a page to its readable text. Script, style and
// navigation subtrees are dropped, block-level tags become newlines,
// whitespace collapses, and entities are decoded by the tokenizer. The
// title comes from <title> or, failing that, the first heading.
func StripHTML(page string) (title, text string) {
	tokenizer := html.NewTokenizer(strings.NewReader(page))

	var b strings.Builder
	var firstHeading string
	skipDepth := 0
	inTitle := false
	inHeading := false

	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			break
		}

		switch tt {
		case html.StartTagToken:
			token := tokenizer.Token()
			if skippedTags[token.DataAtom] {
				skipDepth++
				continue
			}
			switch token.DataAtom {
			case atom.Title:
				inTitle = true
			case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
				inHeading = true
			}

		case html.EndTagToken:
			token := tokenizer.Token()
			if skippedTags[token.DataAtom] {
				if skipDepth > 0 {
					skipDepth--
				}
				continue
			}
			switch token.DataAtom {
			case atom.Title:
				inTitle = false
			case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
				inHeading = false
			}
			if blockTags[token.DataAtom] {
				b.WriteByte('\n')
			}

		case html.SelfClosingTagToken:
			token := tokenizer.Token()
			if blockTags[token.DataAtom] {
				b.WriteByte('\n')
			}

		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			chunk := tokenizer.Token().Data
			if inTitle {
				if title == "" {
					title = strings.TrimSpace(chunk)
				}
				continue
			}
			if inHeading && firstHeading == "" {
				firstHeading = strings.TrimSpace(chunk)
			}
			b.WriteString(chunk)
		}
	}

	if title == "" {
		title = firstHeading
	}

	text = b.String()
	text = spaceRun.ReplaceAllString(text, " ")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")
	text = newlineRun.ReplaceAllString(text, "\n\n")
	return title, strings.TrimSpace(text)
}
