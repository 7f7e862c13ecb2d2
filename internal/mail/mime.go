package mail

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/cockroachdb/errors"
)

const base64LineLength = 76

// ErrInvalidHeader marks outgoing messages whose header values would break
// out of their header line.
var ErrInvalidHeader = errors.New("invalid header value")

// Attachment is a file sent along with an outgoing message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Outgoing is a message handed to the provider. ThreadID places it in an
// existing conversation; InReplyTo and References carry the RFC 5322
// threading headers when the previous message id is known.
type Outgoing struct {
	From        string
	To          string
	Subject     string
	Body        string
	Attachments []Attachment
	ThreadID    string
	InReplyTo   string
	References  string
}

// Compose renders msg as an RFC 5322 message. A message without attachments
// is a single text/plain body, otherwise multipart/mixed with the text first.
func Compose(msg Outgoing) ([]byte, error) {
	for _, field := range []struct{ name, value string }{
		{"From", msg.From},
		{"To", msg.To},
		{"Subject", msg.Subject},
		{"In-Reply-To", msg.InReplyTo},
		{"References", msg.References},
	} {
		if strings.ContainsAny(field.value, "\r\n") {
			return nil, errors.Mark(errors.Newf("%s header contains a line break", field.name), ErrInvalidHeader)
		}
	}

	var buf bytes.Buffer
	header := func(name, value string) {
		if value != "" {
			fmt.Fprintf(&buf, "%s: %s\r\n", name, value)
		}
	}

	header("From", msg.From)
	header("To", msg.To)
	header("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	header("In-Reply-To", msg.InReplyTo)
	header("References", msg.References)
	header("MIME-Version", "1.0")

	if len(msg.Attachments) == 0 {
		header("Content-Type", "text/plain; charset=UTF-8")
		header("Content-Transfer-Encoding", "8bit")
		buf.WriteString("\r\n")
		buf.WriteString(msg.Body)
		return buf.Bytes(), nil
	}

	mw := multipart.NewWriter(&buf)
	header("Content-Type", mime.FormatMediaType("multipart/mixed", map[string]string{"boundary": mw.Boundary()}))
	buf.WriteString("\r\n")

	text, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/plain; charset=UTF-8"},
		"Content-Transfer-Encoding": {"8bit"},
	})
	if err != nil {
		return nil, errors.Wrap(err, "create text part")
	}
	if _, err := text.Write([]byte(msg.Body)); err != nil {
		return nil, errors.Wrap(err, "write text part")
	}

	for _, attachment := range msg.Attachments {
		contentType := attachment.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		part, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {mime.FormatMediaType(contentType, map[string]string{"name": attachment.Filename})},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": attachment.Filename})},
		})
		if err != nil {
			return nil, errors.Wrapf(err, "create attachment part %s", attachment.Filename)
		}
		if _, err := part.Write(wrapBase64(attachment.Data)); err != nil {
			return nil, errors.Wrapf(err, "write attachment part %s", attachment.Filename)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, errors.Wrap(err, "close multipart body")
	}
	return buf.Bytes(), nil
}

// EncodeRaw encodes a composed message the way the Gmail API expects it.
func EncodeRaw(message []byte) string {
	return base64.RawURLEncoding.EncodeToString(message)
}

func wrapBase64(data []byte) []byte {
	encoded := base64.StdEncoding.EncodeToString(data)
	var out bytes.Buffer
	out.Grow(len(encoded) + 2*(len(encoded)/base64LineLength+1))
	for len(encoded) > base64LineLength {
		out.WriteString(encoded[:base64LineLength])
		out.WriteString("\r\n")
		encoded = encoded[base64LineLength:]
	}
	if encoded != "" {
		out.WriteString(encoded)
		out.WriteString("\r\n")
	}
	return out.Bytes()
}
