package ai

import (
	"errors"
	"testing"
)

func TestExtractOutputTextResponsesEnvelope(t *testing.T) {
	body := []byte(`{"output":[{"type":"reasoning","content":[]},{"type":"message","content":[{"type":"output_text","text":"the answer"}]}]}`)
	got, err := ExtractOutputText(body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "the answer" {
		t.Errorf("got %q", got)
	}
}

func TestExtractOutputTextTopLevelText(t *testing.T) {
	got, err := ExtractOutputText([]byte(`{"text":"plain field"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "plain field" {
		t.Errorf("got %q", got)
	}
}

func TestExtractOutputTextChatEnvelope(t *testing.T) {
	body := []byte(`{"choices":[{"message":{"content":"chat content"}}]}`)
	got, err := ExtractOutputText(body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "chat content" {
		t.Errorf("got %q", got)
	}
}

func TestExtractOutputTextNoMatch(t *testing.T) {
	_, err := ExtractOutputText([]byte(`{"something":"else"}`))
	if !errors.Is(err, ErrNoOutputText) {
		t.Errorf("err = %v, want ErrNoOutputText", err)
	}
	_, err = ExtractOutputText([]byte(`not json at all`))
	if !errors.Is(err, ErrNoOutputText) {
		t.Errorf("err = %v, want ErrNoOutputText", err)
	}
}

func TestFirstJSONObject(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"a":1}`, `{"a":1}`},
		{"prose around", "Sure! Here you go: {\"a\":1} hope that helps", `{"a":1}`},
		{"code fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"brace inside string", `{"title":"a } b","n":2}`, `{"title":"a } b","n":2}`},
		{"escaped quote inside string", `{"t":"say \"hi\" {now}"}`, `{"t":"say \"hi\" {now}"}`},
		{"nested objects", `{"a":{"b":{"c":1}}} trailing`, `{"a":{"b":{"c":1}}}`},
		{"unbalanced", `{"a":1`, ""},
		{"no object", "nothing here", ""},
		{"second object ignored", `{"first":1} {"second":2}`, `{"first":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FirstJSONObject(tt.in); got != tt.want {
				t.Errorf("FirstJSONObject(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCoerceVocab(t *testing.T) {
	if got := CoerceType(" Promo "); got != "promo" {
		t.Errorf("CoerceType = %q", got)
	}
	if got := CoerceType("spam"); got != DefaultType {
		t.Errorf("CoerceType out-of-vocab = %q, want %q", got, DefaultType)
	}
	if got := CoerceTopic("Technology"); got != "technology" {
		t.Errorf("CoerceTopic = %q", got)
	}
	if got := CoerceTopic("astrology"); got != DefaultTopic {
		t.Errorf("CoerceTopic out-of-vocab = %q, want %q", got, DefaultTopic)
	}
}

func TestSanitizeKeyword(t *testing.T) {
	if got := SanitizeKeyword("Mountain Sunrise Landscape Extra"); got != "mountain sunrise landscape" {
		t.Errorf("got %q", got)
	}
	if got := SanitizeKeyword("FREE newsletter deal"); got != "" {
		t.Errorf("banned words should be dropped, got %q", got)
	}
}

func TestFallbackKeywordPicksFrequentWords(t *testing.T) {
	content := "coffee coffee coffee roasting roasting beans"
	got := FallbackKeyword(content)
	if got != "coffee roasting" {
		t.Errorf("got %q, want %q", got, "coffee roasting")
	}
}

func TestFallbackKeywordEmptyContent(t *testing.T) {
	if got := FallbackKeyword(""); got != "abstract background" {
		t.Errorf("got %q", got)
	}
}

func TestHTMLToText(t *testing.T) {
	in := `<html><head><title>skip me</title><style>.x{color:red}</style></head>
<body><h1>Big   News</h1><p>It <b>happened</b> today.</p><script>alert(1)</script></body></html>`
	got := HTMLToText(in)
	want := "Big News It happened today."
	if got != want {
		t.Errorf("HTMLToText = %q, want %q", got, want)
	}
}
