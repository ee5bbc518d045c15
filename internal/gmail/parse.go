package gmail

import (
	"encoding/base64"
	"html"
	"net"
	"net/mail"
	"strings"

	gmailapi "google.golang.org/api/gmail/v1"
)

// DecodeBody decodes a base64url body, tolerating missing padding and
// the standard alphabet some senders emit.
func DecodeBody(data string) []byte {
	if data == "" {
		return nil
	}
	if b, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(strings.TrimRight(data, "=")); err == nil {
		return b
	}
	if b, err := base64.StdEncoding.WithPadding(base64.NoPadding).DecodeString(strings.TrimRight(data, "=")); err == nil {
		return b
	}
	return nil
}

// ExtractHTML walks the payload tree and returns the first text/html
// part. When only text/plain exists it is escaped and wrapped in <pre>
// so downstream rendering has a single content type to deal with.
// Parameters:
//   - payload: root MIME part of a full-format message.
// Returns:
//   - string: HTML content, empty when no textual part exists.
func ExtractHTML(payload *gmailapi.MessagePart) string {
	if payload == nil {
		return ""
	}
	if htmlBody := findPart(payload, "text/html"); htmlBody != "" {
		return htmlBody
	}
	if plain := findPart(payload, "text/plain"); plain != "" {
		return "<pre>" + html.EscapeString(plain) + "</pre>"
	}
	return ""
}

func findPart(part *gmailapi.MessagePart, mimeType string) string {
	if part == nil {
		return ""
	}
	if strings.HasPrefix(part.MimeType, mimeType) && part.Body != nil && part.Body.Data != "" {
		if b := DecodeBody(part.Body.Data); b != nil {
			return string(b)
		}
	}
	for _, child := range part.Parts {
		if found := findPart(child, mimeType); found != "" {
			return found
		}
	}
	return ""
}

// Headers lowers all header names into a single lookup map. The first
// occurrence of a header wins.
func Headers(payload *gmailapi.MessagePart) map[string]string {
	out := make(map[string]string)
	if payload == nil {
		return out
	}
	for _, h := range payload.Headers {
		key := strings.ToLower(h.Name)
		if _, ok := out[key]; !ok {
			out[key] = h.Value
		}
	}
	return out
}

// ParseSender splits a From header into display name and address.
// Unparseable headers fall back to the raw value as the name.
// Parameters:
//   - from: raw From header value.
// Returns:
//   - string: sender display name.
//   - string: sender email address, may be empty.
func ParseSender(from string) (string, string) {
	addr, err := mail.ParseAddress(from)
	if err != nil {
		return strings.Trim(from, " <>"), ""
	}
	name := addr.Name
	if name == "" {
		name = addr.Address
	}
	return name, addr.Address
}

// SenderDomain extracts the domain part of an email address.
func SenderDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return strings.ToLower(email[at+1:])
}

// RootDomain reduces a hostname to its registrable suffix using a
// last-two-labels heuristic. IPs and localhost pass through; a leading
// www. is stripped first.
// Parameters:
//   - host: hostname or domain.
// Returns:
//   - string: root domain, lowercase.
func RootDomain(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" || host == "localhost" {
		return host
	}
	if net.ParseIP(host) != nil {
		return host
	}
	host = strings.TrimPrefix(host, "www.")
	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return host
	}
	return strings.Join(labels[len(labels)-2:], ".")
}
