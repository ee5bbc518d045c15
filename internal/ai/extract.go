package ai

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoOutputText means no known response envelope carried any text.
var ErrNoOutputText = errors.New("no output text in AI response")

// ExtractOutputText pulls the generated text out of an AI response body,
// trying each known envelope shape in order: responses-API output items,
// a top-level text field, then chat-completions choices.
// Parameters:
//   - body: raw response body.
// Returns:
//   - string: extracted text.
//   - error: ErrNoOutputText when no strategy matches.
func ExtractOutputText(body []byte) (string, error) {
	var envelope struct {
		Output []struct {
			Type    string `json:"type"`
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"output"`
		Text    string `json:"text"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", ErrNoOutputText
	}

	for _, item := range envelope.Output {
		if item.Type != "" && item.Type != "message" {
			continue
		}
		for _, c := range item.Content {
			if c.Text != "" {
				return c.Text, nil
			}
		}
	}
	if envelope.Text != "" {
		return envelope.Text, nil
	}
	if len(envelope.Choices) > 0 && envelope.Choices[0].Message.Content != "" {
		return envelope.Choices[0].Message.Content, nil
	}
	return "", ErrNoOutputText
}

// FirstJSONObject scans text for the first complete top-level JSON object
// and returns it, or empty when none exists. The scanner tracks brace
// depth while honoring string literals and escape sequences, so prose
// around or braces inside string values do not confuse it.
// Parameters:
//   - text: model output possibly wrapping JSON in prose or code fences.
// Returns:
//   - string: the first balanced {...} slice, or "".
func FirstJSONObject(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}
