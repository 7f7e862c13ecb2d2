package mail

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/claimy/claimy-admin/pkg/logger"
)

const gmailUser = "me"

// GmailConfig holds the OAuth client and the refresh token of the mailbox
// the service sends from.
type GmailConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	User         string
}

// SendResult identifies a message accepted by the provider.
type SendResult struct {
	MessageID string `json:"messageId"`
	ThreadID  string `json:"threadId"`
}

// ThreadMessage is one message of a provider thread, flattened.
type ThreadMessage struct {
	ID           string    `json:"id"`
	ThreadID     string    `json:"threadId"`
	Subject      string    `json:"subject"`
	From         string    `json:"from,omitempty"`
	To           string    `json:"to,omitempty"`
	Date         string    `json:"date,omitempty"`
	MessageID    string    `json:"messageId,omitempty"`
	Snippet      string    `json:"snippet,omitempty"`
	BodyPlain    string    `json:"bodyPlain,omitempty"`
	HasPlain     bool      `json:"-"`
	InternalDate time.Time `json:"-"`
}

// Gmail sends and reads mail through the Gmail API.
type Gmail struct {
	svc    *gmail.Service
	from   string
	logger *logger.Logger
}

// NewGmail builds a provider authorized by a long-lived refresh token.
func NewGmail(ctx context.Context, cfg GmailConfig, log *logger.Logger) (*Gmail, error) {
	conf := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gmail.GmailModifyScope},
	}
	client := conf.Client(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})
	return NewGmailWithClient(ctx, client, cfg.User, log)
}

// NewGmailWithClient builds a provider on an already authorized client.
func NewGmailWithClient(ctx context.Context, client *http.Client, from string, log *logger.Logger) (*Gmail, error) {
	svc, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, errors.Wrap(err, "create gmail service")
	}
	return &Gmail{svc: svc, from: from, logger: log}, nil
}

// From is the mailbox address messages are sent from.
func (g *Gmail) From() string {
	return g.from
}

// Send composes msg and submits it. An empty From defaults to the mailbox.
func (g *Gmail) Send(ctx context.Context, msg Outgoing) (SendResult, error) {
	if msg.From == "" {
		msg.From = g.from
	}
	raw, err := Compose(msg)
	if err != nil {
		return SendResult{}, err
	}

	sent, err := g.svc.Users.Messages.Send(gmailUser, &gmail.Message{
		Raw:      EncodeRaw(raw),
		ThreadId: msg.ThreadID,
	}).Context(ctx).Do()
	if err != nil {
		return SendResult{}, errors.Wrap(err, "gmail send")
	}

	g.logger.Debug("Gmail message sent", "message_id", sent.Id, "thread_id", sent.ThreadId)
	return SendResult{MessageID: sent.Id, ThreadID: sent.ThreadId}, nil
}

// FetchThread returns every message of a thread, oldest first.
func (g *Gmail) FetchThread(ctx context.Context, threadID string) ([]ThreadMessage, error) {
	thread, err := g.svc.Users.Threads.Get(gmailUser, threadID).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, errors.Wrapf(err, "gmail fetch thread %s", threadID)
	}
	return ParseThread(thread), nil
}

// ParseThread flattens a Gmail thread into ThreadMessages.
func ParseThread(thread *gmail.Thread) []ThreadMessage {
	if thread == nil {
		return []ThreadMessage{}
	}
	messages := make([]ThreadMessage, 0, len(thread.Messages))
	for _, message := range thread.Messages {
		if message == nil {
			continue
		}
		parsed := ThreadMessage{
			ID:       message.Id,
			ThreadID: message.ThreadId,
			Snippet:  message.Snippet,
		}
		if message.InternalDate > 0 {
			parsed.InternalDate = time.UnixMilli(message.InternalDate).UTC()
		}
		if message.Payload != nil {
			headers := message.Payload.Headers
			parsed.Subject = headerValue(headers, "Subject")
			parsed.From = headerValue(headers, "From")
			parsed.To = headerValue(headers, "To")
			parsed.Date = headerValue(headers, "Date")
			parsed.MessageID = headerValue(headers, "Message-ID")
			parsed.BodyPlain, parsed.HasPlain = FindPlainText(BuildPart(message.Payload))
		}
		messages = append(messages, parsed)
	}
	return messages
}

func headerValue(headers []*gmail.MessagePartHeader, name string) string {
	for _, header := range headers {
		if header != nil && strings.EqualFold(header.Name, name) {
			return header.Value
		}
	}
	return ""
}
