package cases

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/claimy/claimy-admin/internal/cache"
	"github.com/claimy/claimy-admin/internal/database"
	"github.com/claimy/claimy-admin/internal/models"
	"github.com/claimy/claimy-admin/pkg/logger"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// ListParams filters and pages the case queue.
type ListParams struct {
	Status string
	Query  string
	Limit  int
	Skip   int
}

// InfoRequestInput is the payload of a request for more information.
type InfoRequestInput struct {
	Message           string
	RequiresFile      bool
	RequiresYesNo     bool
	SupersedePrevious bool
}

// ApproveInput is the payload of an approval.
type ApproveInput struct {
	Code       string
	ExpiryDate *time.Time
}

// Draft is an email an admin is composing but has not sent.
type Draft struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
	To      string `json:"to"`
}

// DraftResult is returned by SaveDraft.
type DraftResult struct {
	Draft Draft        `json:"draft"`
	Case  *models.Case `json:"case"`
}

// Service reads and mutates case documents. Every mutation runs in a single
// transaction and returns the full normalized record.
type Service struct {
	db     *gorm.DB
	cache  cache.Cache
	logger *logger.Logger
	now    func() time.Time
	newID  func() string
}

func NewService(db *gorm.DB, c cache.Cache, log *logger.Logger) *Service {
	return &Service{
		db:     db,
		cache:  c,
		logger: log,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

// List returns one page of the queue, newest first, with the total number
// of matching cases.
func (s *Service) List(ctx context.Context, params ListParams) (models.Page, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	skip := params.Skip
	if skip < 0 {
		skip = 0
	}

	filtered := func() *gorm.DB {
		query := s.db.WithContext(ctx).Model(&database.CaseDocument{})
		if status := strings.TrimSpace(params.Status); status != "" {
			query = query.Where(database.StatusKeyExpr+" IN ?", models.StatusKeys(status))
		}
		if q := strings.TrimSpace(params.Query); q != "" {
			like := "%" + escapeLike(strings.ToLower(q)) + "%"
			query = query.Where(
				`LOWER(store_name) LIKE ? ESCAPE '\' OR LOWER(product_name) LIKE ? ESCAPE '\' OR LOWER(user_email) LIKE ? ESCAPE '\'`,
				like, like, like,
			)
		}
		return query
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return models.Page{}, errors.Wrap(err, "count cases")
	}

	var docs []database.CaseDocument
	if err := filtered().Order("created_at DESC").Offset(skip).Limit(limit).Find(&docs).Error; err != nil {
		return models.Page{}, errors.Wrap(err, "list cases")
	}

	page := models.Page{Items: make([]models.Case, 0, len(docs)), Total: total}
	for _, doc := range docs {
		page.Items = append(page.Items, ToRecord(doc))
	}
	return page, nil
}

// Get returns one case by id, read from the store. Documents are also
// written outside this service, so the cache only answers when the store
// cannot be reached.
func (s *Service) Get(ctx context.Context, id string) (*models.Case, error) {
	doc, err := s.load(s.db.WithContext(ctx), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.cache.Delete(cache.CaseKey(id))
			return nil, err
		}
		if cached, ok := s.cache.Get(cache.CaseKey(id)); ok {
			s.logger.Warn("Serving cached case", "case_id", id, "error", err)
			return cached, nil
		}
		return nil, err
	}
	record := ToRecord(doc)
	s.remember(&record)
	return &record, nil
}

// SaveAnalysis overwrites the manual analysis and moves the case to review.
func (s *Service) SaveAnalysis(ctx context.Context, id, actor, text string) (*models.Case, error) {
	return s.mutate(ctx, id, func(doc *database.CaseDocument, now time.Time) error {
		doc.ManualAnalysis = &models.ManualAnalysis{Text: text, UpdatedAt: now}
		doc.Status = string(models.StatusInReview)
		appendHistory(doc, models.StatusInReview, actor, now, "Manual analysis updated")
		return nil
	})
}

// SaveDraft records that a draft was edited. The status is left alone.
func (s *Service) SaveDraft(ctx context.Context, id, actor string, draft Draft) (*DraftResult, error) {
	record, err := s.mutate(ctx, id, func(doc *database.CaseDocument, now time.Time) error {
		appendHistory(doc, models.StatusInReview, actor, now, "Email draft updated")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &DraftResult{Draft: draft, Case: record}, nil
}

// RequestInfo appends a pending info request. With SupersedePrevious every
// other pending request is marked superseded in the same write.
func (s *Service) RequestInfo(ctx context.Context, id, actor string, input InfoRequestInput) (*models.Case, error) {
	message := strings.TrimSpace(input.Message)
	if message == "" {
		return nil, Invalid("Message required")
	}

	return s.mutate(ctx, id, func(doc *database.CaseDocument, now time.Time) error {
		if input.SupersedePrevious {
			for i := range doc.InfoRequests {
				if doc.InfoRequests[i].Status == models.InfoRequestPending {
					doc.InfoRequests[i].Status = models.InfoRequestSuperseded
				}
			}
		}
		doc.InfoRequests = append(doc.InfoRequests, models.InfoRequest{
			ID:            s.newID(),
			Message:       message,
			RequiresFile:  input.RequiresFile,
			RequiresYesNo: input.RequiresYesNo,
			RequestedAt:   now,
			RequestedBy:   actor,
			Status:        models.InfoRequestPending,
		})
		doc.Status = string(models.StatusNeedInfo)
		appendHistory(doc, models.StatusNeedInfo, actor, now, message)
		return nil
	})
}

// Approve sets the resolution voucher and approves the case. A blank code is
// rejected before the document is read.
func (s *Service) Approve(ctx context.Context, id, actor string, input ApproveInput) (*models.Case, error) {
	code := strings.TrimSpace(input.Code)
	if code == "" {
		return nil, Invalid("Resolution code required")
	}

	return s.mutate(ctx, id, func(doc *database.CaseDocument, now time.Time) error {
		resolution := &models.Resolution{Code: code, AddedAt: now}
		if input.ExpiryDate != nil {
			expiry := input.ExpiryDate.UTC()
			resolution.ExpiryDate = &expiry
		}
		doc.Resolution = resolution
		doc.Status = string(models.StatusApproved)
		appendHistory(doc, models.StatusApproved, actor, now, "Resolution code "+code)
		return nil
	})
}

// Reject closes the case as rejected with an optional note.
func (s *Service) Reject(ctx context.Context, id, actor, note string) (*models.Case, error) {
	note = strings.TrimSpace(note)
	return s.mutate(ctx, id, func(doc *database.CaseDocument, now time.Time) error {
		doc.Status = string(models.StatusRejected)
		appendHistory(doc, models.StatusRejected, actor, now, note)
		return nil
	})
}

// RecordEmailSent appends an email an admin sent through the provider.
func (s *Service) RecordEmailSent(ctx context.Context, id, actor string, email models.Email) (*models.Case, error) {
	return s.mutate(ctx, id, func(doc *database.CaseDocument, now time.Time) error {
		if email.SentAt.IsZero() {
			email.SentAt = now
		}
		email.SentAt = email.SentAt.UTC()
		doc.Emails = append(doc.Emails, email)
		doc.Status = string(models.StatusInReview)
		appendHistory(doc, models.StatusInReview, actor, now, "Email sent to "+email.To)
		return nil
	})
}

// MergeThread reconciles the local email list with a provider thread
// snapshot. It is not an admin action and leaves the history untouched.
func (s *Service) MergeThread(ctx context.Context, id string, incoming []models.Email) (*models.Case, error) {
	return s.mutate(ctx, id, func(doc *database.CaseDocument, _ time.Time) error {
		doc.Emails = MergeEmails(doc.Emails, incoming)
		return nil
	})
}

// Delete removes the document and returns the record it held.
func (s *Service) Delete(ctx context.Context, id string) (*models.Case, error) {
	var record models.Case
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		doc, err := s.load(lockRow(tx), id)
		if err != nil {
			return err
		}
		if err := tx.Delete(&database.CaseDocument{}, "id = ?", id).Error; err != nil {
			return errors.Wrapf(err, "delete case %s", id)
		}
		record = ToRecord(doc)
		return nil
	})
	s.cache.Delete(cache.CaseKey(id))
	if err != nil {
		return nil, err
	}
	s.logger.Info("Case deleted", "case_id", id)
	return &record, nil
}

func (s *Service) mutate(ctx context.Context, id string, apply func(doc *database.CaseDocument, now time.Time) error) (*models.Case, error) {
	var record models.Case
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		doc, err := s.load(lockRow(tx), id)
		if err != nil {
			return err
		}
		if err := apply(&doc, s.now()); err != nil {
			return err
		}
		if err := tx.Save(&doc).Error; err != nil {
			return errors.Wrapf(err, "save case %s", id)
		}
		record = ToRecord(doc)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.remember(&record)
	return &record, nil
}

// lockRow makes the read part of a read-modify-write hold the row until the
// transaction ends, so concurrent actions append to each other's history.
// The sqlite dialect omits the clause; its single connection already
// serializes transactions.
func lockRow(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func (s *Service) load(db *gorm.DB, id string) (database.CaseDocument, error) {
	var doc database.CaseDocument
	if err := db.First(&doc, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return doc, notFound(id)
		}
		return doc, errors.Wrapf(err, "load case %s", id)
	}
	return doc, nil
}

func (s *Service) remember(record *models.Case) {
	if err := s.cache.Set(cache.CaseKey(record.ID), record); err != nil {
		s.logger.Warn("Failed to cache case", "case_id", record.ID, "error", err)
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
