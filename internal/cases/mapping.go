package cases

import (
	"time"

	"github.com/claimy/claimy-admin/internal/database"
	"github.com/claimy/claimy-admin/internal/models"
)

// ToRecord maps a stored document to the normalized record admins see.
// Statuses are normalized, times are UTC and collections are never nil.
func ToRecord(doc database.CaseDocument) models.Case {
	record := models.Case{
		ID:          doc.ID,
		UserID:      doc.UserID,
		UserName:    doc.UserName,
		UserEmail:   doc.UserEmail,
		StoreName:   doc.StoreName,
		ProductName: doc.ProductName,
		Description: doc.Description,
		CreatedAt:   doc.CreatedAt.UTC(),
		ImageURLs:   doc.ImageURLs,
		AssetIDs:    doc.AssetIDs,
		Status:      models.NormalizeStatus(doc.Status),
	}

	if doc.ManualAnalysis != nil {
		analysis := *doc.ManualAnalysis
		analysis.UpdatedAt = analysis.UpdatedAt.UTC()
		record.ManualAnalysis = &analysis
	}

	if doc.Resolution != nil {
		resolution := *doc.Resolution
		resolution.AddedAt = resolution.AddedAt.UTC()
		if resolution.ExpiryDate != nil {
			expiry := resolution.ExpiryDate.UTC()
			resolution.ExpiryDate = &expiry
		}
		record.Resolution = &resolution
	}

	record.Emails = make([]models.Email, 0, len(doc.Emails))
	for _, email := range doc.Emails {
		email.SentAt = email.SentAt.UTC()
		record.Emails = append(record.Emails, email)
	}

	record.StatusHistory = make([]models.StatusEntry, 0, len(doc.StatusHistory))
	for _, entry := range doc.StatusHistory {
		entry.Status = string(models.NormalizeStatus(entry.Status))
		entry.At = entry.At.UTC()
		record.StatusHistory = append(record.StatusHistory, entry)
	}

	record.InfoRequestHistory = append(make([]models.InfoRequest, 0, len(doc.InfoRequests)), doc.InfoRequests...)
	record.InfoResponseHistory = append(make([]models.InfoResponse, 0, len(doc.InfoResponses)), doc.InfoResponses...)
	record.InfoExchanges = models.JoinInfoHistory(record.InfoRequestHistory, record.InfoResponseHistory)

	return record
}

func appendHistory(doc *database.CaseDocument, status models.Status, by string, at time.Time, note string) {
	doc.StatusHistory = append(doc.StatusHistory, models.StatusEntry{
		Status: string(status),
		By:     by,
		At:     at,
		Note:   note,
	})
}
