package mail

import (
	"encoding/base64"
	"strings"

	"google.golang.org/api/gmail/v1"
)

// MaxPartDepth bounds how deep BuildPart descends into nested multiparts.
// Anything below is dropped.
const MaxPartDepth = 8

// Part is a node of a message's MIME tree: either a *TextPart leaf or a
// *Multipart container.
type Part interface {
	mimeType() string
}

// TextPart is a leaf body with its decoded content.
type TextPart struct {
	MimeType string
	Filename string
	Data     string
}

// Multipart holds the child parts of a multipart/* node.
type Multipart struct {
	MimeType string
	Parts    []Part
}

func (p *TextPart) mimeType() string  { return p.MimeType }
func (p *Multipart) mimeType() string { return p.MimeType }

// BuildPart converts a Gmail payload into a Part tree. It returns nil for a
// nil payload.
func BuildPart(payload *gmail.MessagePart) Part {
	return buildPart(payload, 0)
}

func buildPart(payload *gmail.MessagePart, depth int) Part {
	if payload == nil || depth >= MaxPartDepth {
		return nil
	}

	if len(payload.Parts) > 0 || strings.HasPrefix(strings.ToLower(payload.MimeType), "multipart/") {
		node := &Multipart{MimeType: payload.MimeType}
		for _, child := range payload.Parts {
			if part := buildPart(child, depth+1); part != nil {
				node.Parts = append(node.Parts, part)
			}
		}
		return node
	}

	leaf := &TextPart{MimeType: payload.MimeType, Filename: payload.Filename}
	if payload.Body != nil {
		leaf.Data = decodeBodyData(payload.Body.Data)
	}
	return leaf
}

// FindPlainText walks the tree depth-first and returns the first non-empty
// inline text/plain body.
func FindPlainText(root Part) (string, bool) {
	switch p := root.(type) {
	case *TextPart:
		if p.Filename == "" && isPlainText(p.MimeType) && p.Data != "" {
			return p.Data, true
		}
	case *Multipart:
		for _, child := range p.Parts {
			if text, ok := FindPlainText(child); ok {
				return text, true
			}
		}
	}
	return "", false
}

func isPlainText(mimeType string) bool {
	mediaType, _, _ := strings.Cut(mimeType, ";")
	return strings.EqualFold(strings.TrimSpace(mediaType), "text/plain")
}

// Gmail encodes bodies as URL-safe base64, with or without padding.
func decodeBodyData(data string) string {
	if data == "" {
		return ""
	}
	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		return ""
	}
	return string(decoded)
}
