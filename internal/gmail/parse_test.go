package gmail

import (
	"encoding/base64"
	"strings"
	"testing"

	gmailapi "google.golang.org/api/gmail/v1"
)

func b64(s string) string {
	return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString([]byte(s))
}

func TestDecodeBodyToleratesPaddingVariants(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no padding", b64("hello world"), "hello world"},
		{"with padding", base64.URLEncoding.EncodeToString([]byte("hi")), "hi"},
		{"standard alphabet", base64.StdEncoding.WithPadding(base64.NoPadding).EncodeToString([]byte("a+b/c")), "a+b/c"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := string(DecodeBody(tt.in))
			if got != tt.want {
				t.Errorf("DecodeBody(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestExtractHTMLPrefersHTMLPart(t *testing.T) {
	payload := &gmailapi.MessagePart{
		MimeType: "multipart/alternative",
		Parts: []*gmailapi.MessagePart{
			{MimeType: "text/plain", Body: &gmailapi.MessagePartBody{Data: b64("plain body")}},
			{MimeType: "text/html", Body: &gmailapi.MessagePartBody{Data: b64("<p>rich body</p>")}},
		},
	}
	got := ExtractHTML(payload)
	if got != "<p>rich body</p>" {
		t.Errorf("ExtractHTML = %q, want html part", got)
	}
}

func TestExtractHTMLFallsBackToEscapedPlain(t *testing.T) {
	payload := &gmailapi.MessagePart{
		MimeType: "text/plain",
		Body:     &gmailapi.MessagePartBody{Data: b64("1 < 2 & 3")},
	}
	got := ExtractHTML(payload)
	if !strings.HasPrefix(got, "<pre>") || !strings.HasSuffix(got, "</pre>") {
		t.Fatalf("expected <pre> wrapper, got %q", got)
	}
	if strings.Contains(got, "1 < 2") {
		t.Errorf("plain text was not escaped: %q", got)
	}
}

func TestExtractHTMLNestedParts(t *testing.T) {
	payload := &gmailapi.MessagePart{
		MimeType: "multipart/mixed",
		Parts: []*gmailapi.MessagePart{
			{
				MimeType: "multipart/alternative",
				Parts: []*gmailapi.MessagePart{
					{MimeType: "text/html", Body: &gmailapi.MessagePartBody{Data: b64("<b>deep</b>")}},
				},
			},
		},
	}
	if got := ExtractHTML(payload); got != "<b>deep</b>" {
		t.Errorf("ExtractHTML = %q, want nested html part", got)
	}
}

func TestHeadersLowercasesAndKeepsFirst(t *testing.T) {
	payload := &gmailapi.MessagePart{
		Headers: []*gmailapi.MessagePartHeader{
			{Name: "Subject", Value: "First"},
			{Name: "SUBJECT", Value: "Second"},
			{Name: "From", Value: "a@b.com"},
		},
	}
	h := Headers(payload)
	if h["subject"] != "First" {
		t.Errorf("subject = %q, want First", h["subject"])
	}
	if h["from"] != "a@b.com" {
		t.Errorf("from = %q", h["from"])
	}
}

func TestParseSender(t *testing.T) {
	tests := []struct {
		in        string
		wantName  string
		wantEmail string
	}{
		{`"The Daily" <news@daily.com>`, "The Daily", "news@daily.com"},
		{"news@daily.com", "news@daily.com", "news@daily.com"},
		{"<<broken", "broken", ""},
	}
	for _, tt := range tests {
		name, email := ParseSender(tt.in)
		if name != tt.wantName || email != tt.wantEmail {
			t.Errorf("ParseSender(%q) = (%q, %q), want (%q, %q)", tt.in, name, email, tt.wantName, tt.wantEmail)
		}
	}
}

func TestRootDomain(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"mail.campaigns.substack.com", "substack.com"},
		{"www.example.com", "example.com"},
		{"example.com", "example.com"},
		{"localhost", "localhost"},
		{"192.168.1.1", "192.168.1.1"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := RootDomain(tt.in); got != tt.want {
			t.Errorf("RootDomain(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSenderDomain(t *testing.T) {
	if got := SenderDomain("news@Mail.Example.com"); got != "mail.example.com" {
		t.Errorf("SenderDomain = %q", got)
	}
	if got := SenderDomain("not-an-email"); got != "" {
		t.Errorf("SenderDomain = %q, want empty", got)
	}
}
