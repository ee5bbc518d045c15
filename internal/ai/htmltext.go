package ai

import (
	"strings"

	"golang.org/x/net/html"
)

// HTMLToText flattens email HTML into whitespace-normalized plain text
// for prompting. Script and style contents are dropped.
// Parameters:
//   - htmlContent: raw HTML.
// Returns:
//   - string: visible text with collapsed whitespace.
func HTMLToText(htmlContent string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(htmlContent))

	var b strings.Builder
	skipDepth := 0
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			if skippable(string(name)) {
				skipDepth++
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if skippable(string(name)) && skipDepth > 0 {
				skipDepth--
			}
		case html.TextToken:
			if skipDepth == 0 {
				b.Write(tokenizer.Text())
				b.WriteByte(' ')
			}
		}
	}
}

func skippable(tag string) bool {
	switch tag {
	case "script", "style", "head", "title":
		return true
	}
	return false
}
