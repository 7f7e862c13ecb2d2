package mail

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claimy/claimy-admin/internal/models"
)

func TestMapThreadToEmails(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	record := models.Case{UserEmail: "jane@example.com"}
	messages := []ThreadMessage{
		{
			ThreadID:  "T1",
			Subject:   "Dated",
			From:      "store@example.com",
			To:        "support@claimy.app",
			Date:      "Mon, 01 Jan 2024 11:00:00 +0100",
			MessageID: "<m1@x>",
			Snippet:   "snip",
			BodyPlain: "full",
			HasPlain:  true,
		},
		{
			ThreadID:     "T1",
			Date:         "not a date",
			Snippet:      "snippet only",
			InternalDate: time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC),
		},
		{ThreadID: "T1"},
	}

	emails := MapThreadToEmails(record, messages, now)
	require.Len(t, emails, 3)

	assert.Equal(t, models.Email{
		Subject:   "Dated",
		Body:      "full",
		To:        "support@claimy.app",
		From:      "store@example.com",
		SentAt:    time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		ThreadID:  "T1",
		MessageID: "<m1@x>",
	}, emails[0])

	assert.Equal(t, "snippet only", emails[1].Body)
	assert.Equal(t, "jane@example.com", emails[1].To)
	assert.Equal(t, time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC), emails[1].SentAt)

	assert.Equal(t, now, emails[2].SentAt)
	assert.Empty(t, emails[2].Body)
}

func TestReplySubject(t *testing.T) {
	withEmail := models.Case{Emails: []models.Email{{Subject: "Old"}, {Subject: "Your claim"}}}

	tests := []struct {
		name      string
		requested string
		record    models.Case
		want      string
	}{
		{name: "requested subject", requested: "Update", record: withEmail, want: "Re: Update"},
		{name: "already prefixed", requested: "RE: Update", record: withEmail, want: "RE: Update"},
		{name: "latest email subject", requested: "  ", record: withEmail, want: "Re: Your claim"},
		{name: "latest already a reply", record: models.Case{Emails: []models.Email{{Subject: "re: x"}}}, want: "re: x"},
		{name: "default", record: models.Case{}, want: "Re: Reply from Claimy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReplySubject(tt.requested, tt.record))
		})
	}
}

func TestReplyHeaders(t *testing.T) {
	record := models.Case{Emails: []models.Email{
		{MessageID: "<a@x>"},
		{MessageID: "<b@x>"},
		{},
	}}
	inReplyTo, references := ReplyHeaders(record)
	assert.Equal(t, "<b@x>", inReplyTo)
	assert.Equal(t, "<b@x>", references)

	inReplyTo, _ = ReplyHeaders(models.Case{})
	assert.Empty(t, inReplyTo)
}
