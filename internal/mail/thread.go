package mail

import (
	"net/mail"
	"strings"
	"time"

	"github.com/claimy/claimy-admin/internal/models"
)

const defaultReplySubject = "Reply from Claimy"

// MapThreadToEmails converts provider messages to case email entries. The
// send time is taken from the Date header, then the provider's receive time,
// then now.
func MapThreadToEmails(record models.Case, messages []ThreadMessage, now time.Time) []models.Email {
	emails := make([]models.Email, 0, len(messages))
	for _, message := range messages {
		body := message.Snippet
		if message.HasPlain {
			body = message.BodyPlain
		}
		to := message.To
		if to == "" {
			to = record.UserEmail
		}
		emails = append(emails, models.Email{
			Subject:   message.Subject,
			Body:      body,
			To:        to,
			From:      message.From,
			SentAt:    sentAt(message, now),
			ThreadID:  message.ThreadID,
			MessageID: message.MessageID,
		})
	}
	return emails
}

func sentAt(message ThreadMessage, now time.Time) time.Time {
	if message.Date != "" {
		if parsed, err := mail.ParseDate(message.Date); err == nil {
			return parsed.UTC()
		}
	}
	if !message.InternalDate.IsZero() {
		return message.InternalDate.UTC()
	}
	return now.UTC()
}

// ReplySubject picks the subject of a reply: the requested one, else the
// latest email's, else a default, prefixed with "Re: " once.
func ReplySubject(requested string, record models.Case) string {
	base := strings.TrimSpace(requested)
	if base == "" {
		if last, ok := record.LastEmail(); ok {
			base = strings.TrimSpace(last.Subject)
		}
	}
	if base == "" {
		base = defaultReplySubject
	}
	if len(base) >= 3 && strings.EqualFold(base[:3], "re:") {
		return base
	}
	return "Re: " + base
}

// ReplyHeaders returns the In-Reply-To and References values for a reply,
// taken from the most recent email that carries a message id.
func ReplyHeaders(record models.Case) (inReplyTo, references string) {
	for i := len(record.Emails) - 1; i >= 0; i-- {
		if id := record.Emails[i].MessageID; id != "" {
			return id, id
		}
	}
	return "", ""
}
