package desk

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/claimy/claimy-admin/internal/assets"
	"github.com/claimy/claimy-admin/internal/cases"
	"github.com/claimy/claimy-admin/internal/mail"
	"github.com/claimy/claimy-admin/internal/models"
	"github.com/claimy/claimy-admin/pkg/logger"
)

// ErrUpstream marks failures of the mail provider or the asset store.
var ErrUpstream = errors.New("upstream failure")

// MailProvider sends messages and reads threads. *mail.Gmail satisfies it.
type MailProvider interface {
	Send(ctx context.Context, msg mail.Outgoing) (mail.SendResult, error)
	FetchThread(ctx context.Context, threadID string) ([]mail.ThreadMessage, error)
}

// AssetStore reads and deletes evidence files. *assets.Store satisfies it.
type AssetStore interface {
	Fetch(ctx context.Context, ref string) (assets.Asset, error)
	Delete(ctx context.Context, key string) error
}

// SyncObserver is told the outcome of every case a sync run reconciles.
type SyncObserver interface {
	ObserveSync(result SyncResult)
}

type Options struct {
	From      string
	BatchSize int
	Workers   int
}

// Desk runs the admin actions that reach outside the database: outgoing
// mail, thread reconciliation and asset cleanup. Remote calls happen before
// any local write, so a provider failure leaves the case untouched.
type Desk struct {
	cases    *cases.Service
	mail     MailProvider
	assets   AssetStore
	observer SyncObserver
	opts     Options
	logger   *logger.Logger
	now      func() time.Time
}

// New builds a Desk. A nil provider disables every mail action.
func New(caseService *cases.Service, provider MailProvider, store AssetStore, opts Options, log *logger.Logger) *Desk {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}
	if opts.Workers <= 0 {
		opts.Workers = 5
	}
	return &Desk{
		cases:  caseService,
		mail:   provider,
		assets: store,
		opts:   opts,
		logger: log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithObserver reports sync outcomes to o.
func (d *Desk) WithObserver(o SyncObserver) *Desk {
	d.observer = o
	return d
}

// SendInput is the payload of an outgoing case email. AttachInfoFiles
// selects claimant uploads by response id or file URL.
type SendInput struct {
	Subject         string
	Body            string
	To              string
	AttachProduct   bool
	AttachReceipt   bool
	AttachInfoFiles []string
}

// ReplyInput is the payload of a reply in the case thread.
type ReplyInput struct {
	Subject string
	Body    string
}

// ThreadView is what an admin sees of the provider thread.
type ThreadView struct {
	Messages []mail.ThreadMessage `json:"messages"`
}

type SyncResult struct {
	Scanned int `json:"scanned"`
	Synced  int `json:"synced"`
	Failed  int `json:"failed"`
}

// Send mails the case's counterpart with the selected attachments and
// records the email on the case.
func (d *Desk) Send(ctx context.Context, id, actor string, input SendInput) (*models.Case, error) {
	subject := strings.TrimSpace(input.Subject)
	to := strings.TrimSpace(input.To)
	if subject == "" || strings.TrimSpace(input.Body) == "" || to == "" {
		return nil, cases.Invalid("Subject, body and to are required")
	}
	if err := d.requireMail(); err != nil {
		return nil, err
	}

	record, err := d.cases.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	files, err := selectInfoFiles(*record, input.AttachInfoFiles)
	if err != nil {
		return nil, err
	}

	var attachments []mail.Attachment
	if input.AttachProduct && record.ImageURLs.Product != "" {
		attachment, err := d.attachment(ctx, record.ImageURLs.Product, "product.jpg")
		if err != nil {
			return nil, err
		}
		attachments = append(attachments, attachment)
	}
	if input.AttachReceipt && record.ImageURLs.Receipt != "" {
		attachment, err := d.attachment(ctx, record.ImageURLs.Receipt, "receipt.jpg")
		if err != nil {
			return nil, err
		}
		attachments = append(attachments, attachment)
	}
	for _, file := range files {
		attachment, err := d.attachment(ctx, file.FileURL, infoFileName(file))
		if err != nil {
			return nil, err
		}
		attachments = append(attachments, attachment)
	}

	threadID := record.ThreadID()
	inReplyTo, references := mail.ReplyHeaders(*record)
	if threadID == "" {
		inReplyTo, references = "", ""
	}
	sent, err := d.mail.Send(ctx, mail.Outgoing{
		From:        d.opts.From,
		To:          to,
		Subject:     subject,
		Body:        input.Body,
		Attachments: attachments,
		ThreadID:    threadID,
		InReplyTo:   inReplyTo,
		References:  references,
	})
	if err != nil {
		return nil, sendFailure(err, "Failed to send email")
	}
	if sent.ThreadID != "" {
		threadID = sent.ThreadID
	}

	d.logger.Info("Case email sent", "case_id", id, "thread_id", threadID, "attachments", len(attachments))
	return d.cases.RecordEmailSent(ctx, id, actor, models.Email{
		Subject:  subject,
		Body:     input.Body,
		To:       to,
		From:     d.opts.From,
		ThreadID: threadID,
	})
}

// Draft records an edited draft without sending anything.
func (d *Desk) Draft(ctx context.Context, id, actor string, input SendInput) (*cases.DraftResult, error) {
	return d.cases.SaveDraft(ctx, id, actor, cases.Draft{
		Subject: input.Subject,
		Body:    input.Body,
		To:      input.To,
	})
}

// Thread fetches the case's provider thread, merges it into the stored
// emails and returns the parsed messages.
func (d *Desk) Thread(ctx context.Context, id string) (ThreadView, error) {
	record, err := d.cases.Get(ctx, id)
	if err != nil {
		return ThreadView{}, err
	}
	threadID := record.ThreadID()
	if threadID == "" {
		return ThreadView{Messages: []mail.ThreadMessage{}}, nil
	}
	if err := d.requireMail(); err != nil {
		return ThreadView{}, err
	}

	messages, err := d.reconcile(ctx, *record, threadID)
	if err != nil {
		return ThreadView{}, err
	}
	return ThreadView{Messages: messages}, nil
}

// Reply answers in the case thread, addressed to whoever wrote last.
func (d *Desk) Reply(ctx context.Context, id, actor string, input ReplyInput) (*models.Case, error) {
	if strings.TrimSpace(input.Body) == "" {
		return nil, cases.Invalid("Reply body required")
	}

	record, err := d.cases.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	threadID := record.ThreadID()
	if threadID == "" {
		return nil, cases.Invalid("No thread to reply to")
	}
	to := record.UserEmail
	if last, ok := record.LastEmail(); ok && strings.TrimSpace(last.From) != "" {
		to = last.From
	}
	to = strings.TrimSpace(to)
	if to == "" {
		return nil, cases.Invalid("No recipient found for reply")
	}
	if err := d.requireMail(); err != nil {
		return nil, err
	}

	subject := mail.ReplySubject(input.Subject, *record)
	inReplyTo, references := mail.ReplyHeaders(*record)
	if _, err := d.mail.Send(ctx, mail.Outgoing{
		From:       d.opts.From,
		To:         to,
		Subject:    subject,
		Body:       input.Body,
		ThreadID:   threadID,
		InReplyTo:  inReplyTo,
		References: references,
	}); err != nil {
		return nil, sendFailure(err, "Failed to send reply")
	}

	d.logger.Info("Case reply sent", "case_id", id, "thread_id", threadID)
	return d.cases.RecordEmailSent(ctx, id, actor, models.Email{
		Subject:  subject,
		Body:     input.Body,
		To:       to,
		From:     d.opts.From,
		ThreadID: threadID,
	})
}

// SyncRecent reconciles the threads of the newest cases. Each case is
// handled on its own; a failure is logged and counted and never stops the
// others.
func (d *Desk) SyncRecent(ctx context.Context) (SyncResult, error) {
	if err := d.requireMail(); err != nil {
		return SyncResult{}, err
	}
	page, err := d.cases.List(ctx, cases.ListParams{Limit: d.opts.BatchSize})
	if err != nil {
		return SyncResult{}, err
	}

	var targets []models.Case
	for _, record := range page.Items {
		if record.ThreadID() != "" {
			targets = append(targets, record)
		}
	}

	failed := make([]bool, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.Workers)
	for i, record := range targets {
		g.Go(func() error {
			if _, err := d.reconcile(gctx, record, record.ThreadID()); err != nil {
				failed[i] = true
				d.logger.Warn("Thread sync failed", "case_id", record.ID, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	result := SyncResult{Scanned: len(targets)}
	for _, f := range failed {
		if f {
			result.Failed++
		} else {
			result.Synced++
		}
	}
	d.logger.Info("Mail sync finished", "scanned", result.Scanned, "synced", result.Synced, "failed", result.Failed)
	if d.observer != nil {
		d.observer.ObserveSync(result)
	}
	return result, nil
}

// Delete removes the case and, when asked, its stored images. Asset
// deletions are attempted once each after the document is gone; their
// failures are logged only.
func (d *Desk) Delete(ctx context.Context, id string, deleteAssets bool) error {
	record, err := d.cases.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleteAssets || d.assets == nil {
		return nil
	}
	for _, key := range []string{record.AssetIDs.Product, record.AssetIDs.Receipt} {
		if key == "" {
			continue
		}
		if err := d.assets.Delete(ctx, key); err != nil {
			d.logger.Error("Failed to delete case asset", "case_id", id, "asset_id", key, "error", err)
		}
	}
	return nil
}

func (d *Desk) reconcile(ctx context.Context, record models.Case, threadID string) ([]mail.ThreadMessage, error) {
	messages, err := d.mail.FetchThread(ctx, threadID)
	if err != nil {
		return nil, upstream(err, "Failed to fetch thread")
	}
	incoming := mail.MapThreadToEmails(record, messages, d.now())
	if _, err := d.cases.MergeThread(ctx, record.ID, incoming); err != nil {
		return nil, err
	}
	return messages, nil
}

func (d *Desk) attachment(ctx context.Context, ref, filename string) (mail.Attachment, error) {
	if d.assets == nil {
		return mail.Attachment{}, errors.Mark(errors.New("Asset storage is not configured"), ErrUpstream)
	}
	asset, err := d.assets.Fetch(ctx, ref)
	if err != nil {
		return mail.Attachment{}, upstream(err, "Failed to fetch attachment "+filename)
	}
	return mail.Attachment{Filename: filename, ContentType: asset.ContentType, Data: asset.Data}, nil
}

func (d *Desk) requireMail() error {
	if d.mail == nil {
		return errors.Mark(errors.New("Mail provider is not configured"), ErrUpstream)
	}
	return nil
}

// selectInfoFiles resolves each selection to a file-bearing response,
// matching by response id first and file URL second.
func selectInfoFiles(record models.Case, selections []string) ([]models.InfoResponse, error) {
	var files []models.InfoResponse
	seen := make(map[string]bool)
	for _, selection := range selections {
		selection = strings.TrimSpace(selection)
		if selection == "" {
			continue
		}
		response, ok := findInfoFile(record.InfoResponseHistory, selection)
		if !ok {
			return nil, cases.Invalid("Unknown attachment %s", selection)
		}
		if seen[response.ID+"|"+response.FileURL] {
			continue
		}
		seen[response.ID+"|"+response.FileURL] = true
		files = append(files, response)
	}
	return files, nil
}

func findInfoFile(responses []models.InfoResponse, selection string) (models.InfoResponse, bool) {
	for _, response := range responses {
		if response.HasFile() && response.ID == selection {
			return response, true
		}
	}
	for _, response := range responses {
		if response.HasFile() && response.FileURL == selection {
			return response, true
		}
	}
	return models.InfoResponse{}, false
}

func infoFileName(response models.InfoResponse) string {
	if name := strings.TrimSpace(response.FileName); name != "" {
		return name
	}
	if base := path.Base(strings.SplitN(response.FileURL, "?", 2)[0]); base != "" && base != "." && base != "/" {
		return base
	}
	return "info-" + response.ID
}

// sendFailure reports a message the provider could not even compose as
// invalid input, anything else as an upstream failure.
func sendFailure(err error, message string) error {
	if errors.Is(err, mail.ErrInvalidHeader) {
		return errors.Mark(errors.Wrap(err, message), cases.ErrValidation)
	}
	return upstream(err, message)
}

func upstream(err error, message string) error {
	return errors.Mark(errors.Wrap(err, message), ErrUpstream)
}
