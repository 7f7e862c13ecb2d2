package desk

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/claimy/claimy-admin/internal/assets"
	"github.com/claimy/claimy-admin/internal/cache"
	"github.com/claimy/claimy-admin/internal/cases"
	"github.com/claimy/claimy-admin/internal/database"
	"github.com/claimy/claimy-admin/internal/mail"
	"github.com/claimy/claimy-admin/internal/models"
	"github.com/claimy/claimy-admin/pkg/logger"
)

type fakeMail struct {
	mu         sync.Mutex
	sent       []mail.Outgoing
	sendResult mail.SendResult
	sendErr    error
	threads    map[string][]mail.ThreadMessage
	fetched    []string
}

func (f *fakeMail) Send(_ context.Context, msg mail.Outgoing) (mail.SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return mail.SendResult{}, f.sendErr
	}
	if _, err := mail.Compose(msg); err != nil {
		return mail.SendResult{}, err
	}
	f.sent = append(f.sent, msg)
	return f.sendResult, nil
}

func (f *fakeMail) FetchThread(_ context.Context, threadID string) ([]mail.ThreadMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, threadID)
	messages, ok := f.threads[threadID]
	if !ok {
		return nil, fmt.Errorf("thread %s not found", threadID)
	}
	return messages, nil
}

type fakeAssets struct {
	mu        sync.Mutex
	files     map[string]assets.Asset
	deleted   []string
	deleteErr map[string]error
}

func (f *fakeAssets) Fetch(_ context.Context, ref string) (assets.Asset, error) {
	asset, ok := f.files[ref]
	if !ok {
		return assets.Asset{}, fmt.Errorf("asset %s not found", ref)
	}
	return asset, nil
}

func (f *fakeAssets) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	return f.deleteErr[key]
}

type recordingObserver struct {
	results []SyncResult
}

func (r *recordingObserver) ObserveSync(result SyncResult) {
	r.results = append(r.results, result)
}

type fixture struct {
	desk   *Desk
	db     *gorm.DB
	mail   *fakeMail
	assets *fakeAssets
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Initialize(database.Options{Driver: "sqlite", Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	log := logger.NewNop()
	caseService := cases.NewService(db, cache.NewCache(100, time.Minute), log)
	provider := &fakeMail{threads: map[string][]mail.ThreadMessage{}}
	store := &fakeAssets{files: map[string]assets.Asset{}, deleteErr: map[string]error{}}

	d := New(caseService, provider, store, Options{From: "support@claimy.app", BatchSize: 20, Workers: 2}, log)
	d.now = func() time.Time { return time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC) }
	return &fixture{desk: d, db: db, mail: provider, assets: store}
}

func (f *fixture) seed(t *testing.T, doc database.CaseDocument) {
	t.Helper()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	require.NoError(t, f.db.Create(&doc).Error)
}

func (f *fixture) load(t *testing.T, id string) database.CaseDocument {
	t.Helper()
	var doc database.CaseDocument
	require.NoError(t, f.db.First(&doc, "id = ?", id).Error)
	return doc
}

func TestSendWithAttachments(t *testing.T) {
	f := newFixture(t)
	f.seed(t, database.CaseDocument{
		ID:        "c1",
		UserEmail: "jane@example.com",
		ImageURLs: models.ImageRefs{Product: "https://cdn/p.jpg", Receipt: "https://cdn/r.jpg"},
		InfoResponses: []models.InfoResponse{
			{ID: "r1", RequestID: "q1", FileURL: "https://cdn/files/invoice.pdf?sig=1"},
			{ID: "r2", RequestID: "q2", FileURL: "https://cdn/files/photo.png", FileName: "Photo of box.png"},
			{ID: "r3", RequestID: "q3", Answer: "yes"},
		},
	})
	f.assets.files["https://cdn/p.jpg"] = assets.Asset{Data: []byte("p"), ContentType: "image/jpeg"}
	f.assets.files["https://cdn/r.jpg"] = assets.Asset{Data: []byte("r"), ContentType: "image/jpeg"}
	f.assets.files["https://cdn/files/invoice.pdf?sig=1"] = assets.Asset{Data: []byte("pdf"), ContentType: "application/pdf"}
	f.assets.files["https://cdn/files/photo.png"] = assets.Asset{Data: []byte("png"), ContentType: "image/png"}
	f.mail.sendResult = mail.SendResult{MessageID: "M1", ThreadID: "T9"}

	record, err := f.desk.Send(context.Background(), "c1", "admin@claimy.app", SendInput{
		Subject:         "Your claim",
		Body:            "Details attached",
		To:              "store@example.com",
		AttachProduct:   true,
		AttachReceipt:   true,
		AttachInfoFiles: []string{"r1", "https://cdn/files/photo.png", "r2"},
	})
	require.NoError(t, err)

	require.Len(t, f.mail.sent, 1)
	sent := f.mail.sent[0]
	assert.Equal(t, "store@example.com", sent.To)
	assert.Equal(t, "support@claimy.app", sent.From)
	assert.Empty(t, sent.ThreadID)
	require.Len(t, sent.Attachments, 4)
	assert.Equal(t, "product.jpg", sent.Attachments[0].Filename)
	assert.Equal(t, "receipt.jpg", sent.Attachments[1].Filename)
	assert.Equal(t, "invoice.pdf", sent.Attachments[2].Filename)
	assert.Equal(t, "application/pdf", sent.Attachments[2].ContentType)
	assert.Equal(t, "Photo of box.png", sent.Attachments[3].Filename)

	require.Len(t, record.Emails, 1)
	assert.Equal(t, "T9", record.Emails[0].ThreadID)
	assert.Equal(t, models.StatusInReview, record.Status)
	assert.Equal(t, "Email sent to store@example.com", record.StatusHistory[0].Note)
}

func TestSendKeepsPriorThread(t *testing.T) {
	f := newFixture(t)
	f.seed(t, database.CaseDocument{
		ID: "c1",
		Emails: []models.Email{
			{Subject: "first", SentAt: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)},
			{Subject: "second", ThreadID: "T1", MessageID: "<m2@x>", SentAt: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)},
		},
	})

	record, err := f.desk.Send(context.Background(), "c1", "admin@claimy.app", SendInput{Subject: "s", Body: "b", To: "t@example.com"})
	require.NoError(t, err)

	sent := f.mail.sent[0]
	assert.Equal(t, "T1", sent.ThreadID)
	assert.Equal(t, "<m2@x>", sent.InReplyTo)
	assert.Empty(t, sent.Attachments)
	require.Len(t, record.Emails, 3)
	assert.Equal(t, "T1", record.Emails[2].ThreadID)
}

func TestSendValidation(t *testing.T) {
	f := newFixture(t)
	f.seed(t, database.CaseDocument{ID: "c1"})

	for _, input := range []SendInput{
		{Body: "b", To: "t@example.com"},
		{Subject: "s", Body: "  ", To: "t@example.com"},
		{Subject: "s", Body: "b"},
		{Subject: "s", Body: "b", To: "t@example.com", AttachInfoFiles: []string{"nope"}},
	} {
		_, err := f.desk.Send(context.Background(), "c1", "admin", input)
		require.Error(t, err)
		assert.True(t, errors.Is(err, cases.ErrValidation), "%+v", input)
	}
	assert.Empty(t, f.mail.sent)

	_, err := f.desk.Send(context.Background(), "missing", "admin", SendInput{Subject: "s", Body: "b", To: "t"})
	assert.True(t, errors.Is(err, cases.ErrNotFound))
}

func TestSendUpstreamFailureLeavesCaseUntouched(t *testing.T) {
	f := newFixture(t)
	f.seed(t, database.CaseDocument{ID: "c1", Status: "PENDING", ImageURLs: models.ImageRefs{Product: "https://cdn/missing.jpg"}})

	_, err := f.desk.Send(context.Background(), "c1", "admin", SendInput{Subject: "s", Body: "b", To: "t", AttachProduct: true})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpstream))
	assert.Empty(t, f.mail.sent)

	f.mail.sendErr = errors.New("quota exceeded")
	_, err = f.desk.Send(context.Background(), "c1", "admin", SendInput{Subject: "s", Body: "b", To: "t"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpstream))

	doc := f.load(t, "c1")
	assert.Empty(t, doc.Emails)
	assert.Empty(t, doc.StatusHistory)
	assert.Equal(t, "PENDING", doc.Status)
}

func TestSendRejectsHeaderInjection(t *testing.T) {
	f := newFixture(t)
	f.seed(t, database.CaseDocument{ID: "c1", Status: "PENDING"})

	_, err := f.desk.Send(context.Background(), "c1", "admin", SendInput{
		Subject: "s",
		Body:    "b",
		To:      "store@example.com\r\nBcc: attacker@evil.example",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, cases.ErrValidation))
	assert.Empty(t, f.mail.sent)
	assert.Empty(t, f.load(t, "c1").Emails)
}

func TestSendAttachesFileSubmittedAfterLastRead(t *testing.T) {
	f := newFixture(t)
	f.seed(t, database.CaseDocument{ID: "c1", UserEmail: "jane@example.com"})
	ctx := context.Background()

	_, err := f.desk.Draft(ctx, "c1", "admin", SendInput{Subject: "s", Body: "b", To: "store@example.com"})
	require.NoError(t, err)

	doc := f.load(t, "c1")
	doc.InfoResponses = append(doc.InfoResponses, models.InfoResponse{
		ID:          "resp-1",
		RequestID:   "req-1",
		FileURL:     "https://cdn.example.com/box.png",
		SubmittedAt: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, f.db.Save(&doc).Error)
	f.assets.files["https://cdn.example.com/box.png"] = assets.Asset{Data: []byte("png"), ContentType: "image/png"}

	_, err = f.desk.Send(ctx, "c1", "admin", SendInput{
		Subject:         "s",
		Body:            "b",
		To:              "store@example.com",
		AttachInfoFiles: []string{"resp-1"},
	})
	require.NoError(t, err)
	require.Len(t, f.mail.sent, 1)
	require.Len(t, f.mail.sent[0].Attachments, 1)
	assert.Equal(t, "box.png", f.mail.sent[0].Attachments[0].Filename)
}

func TestMailNotConfigured(t *testing.T) {
	f := newFixture(t)
	f.seed(t, database.CaseDocument{ID: "c1", Emails: []models.Email{{ThreadID: "T1", From: "x@example.com"}}})
	f.desk.mail = nil

	_, err := f.desk.Send(context.Background(), "c1", "admin", SendInput{Subject: "s", Body: "b", To: "t"})
	assert.True(t, errors.Is(err, ErrUpstream))
	_, err = f.desk.Thread(context.Background(), "c1")
	assert.True(t, errors.Is(err, ErrUpstream))
	_, err = f.desk.Reply(context.Background(), "c1", "admin", ReplyInput{Body: "b"})
	assert.True(t, errors.Is(err, ErrUpstream))
	_, err = f.desk.SyncRecent(context.Background())
	assert.True(t, errors.Is(err, ErrUpstream))
}

func TestDraft(t *testing.T) {
	f := newFixture(t)
	f.seed(t, database.CaseDocument{ID: "c1", Status: "APPROVED"})

	result, err := f.desk.Draft(context.Background(), "c1", "admin", SendInput{Subject: "s", Body: "b", To: "t"})
	require.NoError(t, err)
	assert.Equal(t, cases.Draft{Subject: "s", Body: "b", To: "t"}, result.Draft)
	assert.Equal(t, models.StatusApproved, result.Case.Status)
	assert.Empty(t, f.mail.sent)
}

func TestThreadWithoutThreadID(t *testing.T) {
	f := newFixture(t)
	f.seed(t, database.CaseDocument{ID: "c1", Emails: []models.Email{{Subject: "local"}}})

	view, err := f.desk.Thread(context.Background(), "c1")
	require.NoError(t, err)
	assert.NotNil(t, view.Messages)
	assert.Empty(t, view.Messages)
	assert.Empty(t, f.mail.fetched)
}

func TestThreadMergesIncomingMessages(t *testing.T) {
	f := newFixture(t)
	f.seed(t, database.CaseDocument{
		ID:        "c1",
		UserEmail: "jane@example.com",
		Emails: []models.Email{
			{Subject: "one", SentAt: time.Date(2023, 12, 30, 8, 0, 0, 0, time.UTC)},
			{Subject: "two", ThreadID: "T1", SentAt: time.Date(2023, 12, 31, 8, 0, 0, 0, time.UTC)},
		},
	})
	f.mail.threads["T1"] = []mail.ThreadMessage{
		{ID: "M3", ThreadID: "T1", Subject: "three", From: "store@example.com", Date: "Mon, 01 Jan 2024 10:00:00 +0000", BodyPlain: "hi", HasPlain: true},
	}

	view, err := f.desk.Thread(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, view.Messages, 1)
	assert.Equal(t, []string{"T1"}, f.mail.fetched)

	doc := f.load(t, "c1")
	require.Len(t, doc.Emails, 3)
	assert.Equal(t, "three", doc.Emails[2].Subject)
	assert.Equal(t, "jane@example.com", doc.Emails[2].To)
	assert.Equal(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), doc.Emails[2].SentAt.UTC())

	_, err = f.desk.Thread(context.Background(), "c1")
	require.NoError(t, err)
	assert.Len(t, f.load(t, "c1").Emails, 3)
}

func TestThreadFetchFailure(t *testing.T) {
	f := newFixture(t)
	f.seed(t, database.CaseDocument{ID: "c1", Emails: []models.Email{{ThreadID: "gone"}}})

	_, err := f.desk.Thread(context.Background(), "c1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpstream))
}

func TestReply(t *testing.T) {
	f := newFixture(t)
	f.seed(t, database.CaseDocument{
		ID:        "c1",
		UserEmail: "jane@example.com",
		Emails: []models.Email{
			{Subject: "Your claim", ThreadID: "T1", From: "support@claimy.app", SentAt: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)},
			{Subject: "Re: Your claim", ThreadID: "T1", From: "store@example.com", MessageID: "<m2@x>", SentAt: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)},
		},
	})

	record, err := f.desk.Reply(context.Background(), "c1", "admin@claimy.app", ReplyInput{Body: "Thanks"})
	require.NoError(t, err)

	require.Len(t, f.mail.sent, 1)
	sent := f.mail.sent[0]
	assert.Equal(t, "store@example.com", sent.To)
	assert.Equal(t, "Re: Your claim", sent.Subject)
	assert.Equal(t, "T1", sent.ThreadID)
	assert.Equal(t, "<m2@x>", sent.InReplyTo)
	assert.Equal(t, "<m2@x>", sent.References)

	require.Len(t, record.Emails, 3)
	assert.Equal(t, "Re: Your claim", record.Emails[2].Subject)
	assert.Equal(t, "T1", record.Emails[2].ThreadID)
}

func TestReplyRecipientFallback(t *testing.T) {
	f := newFixture(t)
	f.seed(t, database.CaseDocument{ID: "c1", UserEmail: "jane@example.com", Emails: []models.Email{{ThreadID: "T1"}}})
	f.seed(t, database.CaseDocument{ID: "c2", Emails: []models.Email{{ThreadID: "T2"}}})
	f.seed(t, database.CaseDocument{ID: "c3", UserEmail: "x@example.com"})

	_, err := f.desk.Reply(context.Background(), "c1", "admin", ReplyInput{Subject: "Update", Body: "b"})
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", f.mail.sent[0].To)
	assert.Equal(t, "Re: Update", f.mail.sent[0].Subject)

	_, err = f.desk.Reply(context.Background(), "c2", "admin", ReplyInput{Body: "b"})
	assert.True(t, errors.Is(err, cases.ErrValidation))

	_, err = f.desk.Reply(context.Background(), "c3", "admin", ReplyInput{Body: "b"})
	assert.True(t, errors.Is(err, cases.ErrValidation))

	_, err = f.desk.Reply(context.Background(), "c1", "admin", ReplyInput{Body: " "})
	assert.True(t, errors.Is(err, cases.ErrValidation))
	assert.Len(t, f.mail.sent, 1)
}

func TestSyncRecent(t *testing.T) {
	f := newFixture(t)
	observer := &recordingObserver{}
	f.desk.WithObserver(observer)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, threadID := range []string{"T1", "T2", "broken", ""} {
		doc := database.CaseDocument{ID: fmt.Sprintf("c%d", i), CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		if threadID != "" {
			doc.Emails = []models.Email{{ThreadID: threadID, SentAt: base}}
		}
		f.seed(t, doc)
	}
	for _, threadID := range []string{"T1", "T2"} {
		f.mail.threads[threadID] = []mail.ThreadMessage{{ThreadID: threadID, Subject: "reply", Date: "Tue, 02 Jan 2024 10:00:00 +0000"}}
	}

	result, err := f.desk.SyncRecent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SyncResult{Scanned: 3, Synced: 2, Failed: 1}, result)
	assert.ElementsMatch(t, []string{"T1", "T2", "broken"}, f.mail.fetched)
	assert.Equal(t, []SyncResult{result}, observer.results)

	assert.Len(t, f.load(t, "c0").Emails, 2)
	assert.Len(t, f.load(t, "c1").Emails, 2)
	assert.Len(t, f.load(t, "c2").Emails, 1)
	assert.Empty(t, f.load(t, "c3").StatusHistory)
}

func TestSyncRecentRespectsBatchSize(t *testing.T) {
	f := newFixture(t)
	f.desk.opts.BatchSize = 2
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		threadID := fmt.Sprintf("T%d", i)
		f.seed(t, database.CaseDocument{
			ID:        fmt.Sprintf("c%d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
			Emails:    []models.Email{{ThreadID: threadID}},
		})
		f.mail.threads[threadID] = []mail.ThreadMessage{}
	}

	result, err := f.desk.SyncRecent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Scanned)
	assert.ElementsMatch(t, []string{"T3", "T2"}, f.mail.fetched)
}

func TestDeleteWithAssets(t *testing.T) {
	f := newFixture(t)
	f.seed(t, database.CaseDocument{ID: "c1", AssetIDs: models.ImageRefs{Product: "prod-1", Receipt: "rec-1"}})
	f.assets.deleteErr["prod-1"] = errors.New("storage unavailable")

	require.NoError(t, f.desk.Delete(context.Background(), "c1", true))

	assert.Equal(t, []string{"prod-1", "rec-1"}, f.assets.deleted)
	var count int64
	require.NoError(t, f.db.Model(&database.CaseDocument{}).Where("id = ?", "c1").Count(&count).Error)
	assert.Zero(t, count)
}

func TestDeleteWithoutAssets(t *testing.T) {
	f := newFixture(t)
	f.seed(t, database.CaseDocument{ID: "c1", AssetIDs: models.ImageRefs{Product: "prod-1"}})
	f.seed(t, database.CaseDocument{ID: "c2", AssetIDs: models.ImageRefs{Receipt: "rec-2"}})

	require.NoError(t, f.desk.Delete(context.Background(), "c1", false))
	assert.Empty(t, f.assets.deleted)

	require.NoError(t, f.desk.Delete(context.Background(), "c2", true))
	assert.Equal(t, []string{"rec-2"}, f.assets.deleted)

	err := f.desk.Delete(context.Background(), "c1", true)
	assert.True(t, errors.Is(err, cases.ErrNotFound))
	assert.Equal(t, []string{"rec-2"}, f.assets.deleted)
}
