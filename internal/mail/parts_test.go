package mail

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/gmail/v1"
)

func encodeBody(s string) *gmail.MessagePartBody {
	return &gmail.MessagePartBody{Data: base64.URLEncoding.EncodeToString([]byte(s))}
}

func TestBuildPartAndFindPlainText(t *testing.T) {
	payload := &gmail.MessagePart{
		MimeType: "multipart/mixed",
		Parts: []*gmail.MessagePart{
			{
				MimeType: "multipart/alternative",
				Parts: []*gmail.MessagePart{
					{MimeType: "text/html", Body: encodeBody("<p>Hello</p>")},
					{MimeType: "text/plain; charset=UTF-8", Body: encodeBody("Hello")},
				},
			},
			{MimeType: "text/plain", Filename: "log.txt", Body: encodeBody("attachment")},
		},
	}

	root := BuildPart(payload)
	node, ok := root.(*Multipart)
	require.True(t, ok)
	require.Len(t, node.Parts, 2)
	_, ok = node.Parts[0].(*Multipart)
	assert.True(t, ok)

	text, found := FindPlainText(root)
	assert.True(t, found)
	assert.Equal(t, "Hello", text)
}

func TestFindPlainTextSkipsAttachmentsAndEmptyBodies(t *testing.T) {
	payload := &gmail.MessagePart{
		MimeType: "multipart/mixed",
		Parts: []*gmail.MessagePart{
			{MimeType: "text/plain", Body: &gmail.MessagePartBody{}},
			{MimeType: "text/plain", Filename: "a.txt", Body: encodeBody("file")},
			{MimeType: "text/html", Body: encodeBody("<b>x</b>")},
		},
	}

	text, found := FindPlainText(BuildPart(payload))
	assert.False(t, found)
	assert.Empty(t, text)
}

func TestBuildPartDepthBound(t *testing.T) {
	leaf := &gmail.MessagePart{MimeType: "text/plain", Body: encodeBody("deep")}
	payload := leaf
	for i := 0; i < MaxPartDepth; i++ {
		payload = &gmail.MessagePart{MimeType: "multipart/mixed", Parts: []*gmail.MessagePart{payload}}
	}

	_, found := FindPlainText(BuildPart(payload))
	assert.False(t, found)

	shallow := leaf
	for i := 0; i < MaxPartDepth-1; i++ {
		shallow = &gmail.MessagePart{MimeType: "multipart/mixed", Parts: []*gmail.MessagePart{shallow}}
	}
	text, found := FindPlainText(BuildPart(shallow))
	assert.True(t, found)
	assert.Equal(t, "deep", text)
}

func TestBuildPartNil(t *testing.T) {
	assert.Nil(t, BuildPart(nil))
	_, found := FindPlainText(nil)
	assert.False(t, found)
}

func TestDecodeBodyDataAcceptsUnpadded(t *testing.T) {
	assert.Equal(t, "ab", decodeBodyData(base64.RawURLEncoding.EncodeToString([]byte("ab"))))
	assert.Equal(t, "ab", decodeBodyData(base64.URLEncoding.EncodeToString([]byte("ab"))))
	assert.Empty(t, decodeBodyData("!!!"))
}
