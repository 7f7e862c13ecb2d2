package models

import "time"

// ImageRefs holds one reference per evidence image of a case.
type ImageRefs struct {
	Product string `json:"product,omitempty"`
	Receipt string `json:"receipt,omitempty"`
}

type ManualAnalysis struct {
	Text      string    `json:"text"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Email is one message exchanged for a case, sent by an admin or pulled
// from the provider thread.
type Email struct {
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	To        string    `json:"to"`
	From      string    `json:"from"`
	SentAt    time.Time `json:"sentAt"`
	ThreadID  string    `json:"threadId,omitempty"`
	MessageID string    `json:"messageId,omitempty"`
}

type Resolution struct {
	Code       string     `json:"code"`
	AddedAt    time.Time  `json:"addedAt"`
	ExpiryDate *time.Time `json:"expiryDate,omitempty"`
	Used       *bool      `json:"used,omitempty"`
}

// StatusEntry is one audit record. Entries are appended, never edited.
type StatusEntry struct {
	Status string    `json:"status"`
	By     string    `json:"by"`
	At     time.Time `json:"at"`
	Note   string    `json:"note,omitempty"`
}

// Case is the normalized record returned to admin clients.
type Case struct {
	ID                  string          `json:"_id"`
	UserID              string          `json:"userId,omitempty"`
	UserName            string          `json:"userName,omitempty"`
	UserEmail           string          `json:"userEmail,omitempty"`
	StoreName           string          `json:"storeName,omitempty"`
	ProductName         string          `json:"productName,omitempty"`
	Description         string          `json:"description,omitempty"`
	CreatedAt           time.Time       `json:"createdAt"`
	ImageURLs           ImageRefs       `json:"imageUrls"`
	AssetIDs            ImageRefs       `json:"cloudinaryPublicIds"`
	ManualAnalysis      *ManualAnalysis `json:"manualAnalysis,omitempty"`
	Emails              []Email         `json:"emails"`
	Resolution          *Resolution     `json:"resolution,omitempty"`
	Status              Status          `json:"status"`
	StatusHistory       []StatusEntry   `json:"statusHistory"`
	InfoRequestHistory  []InfoRequest   `json:"infoRequestHistory"`
	InfoResponseHistory []InfoResponse  `json:"infoResponseHistory"`
	InfoExchanges       []InfoExchange  `json:"infoExchanges"`
}

// ThreadID returns the first known provider thread id of the case.
func (c *Case) ThreadID() string {
	for _, email := range c.Emails {
		if email.ThreadID != "" {
			return email.ThreadID
		}
	}
	return ""
}

// LastEmail returns the most recent email entry, if any.
func (c *Case) LastEmail() (Email, bool) {
	if len(c.Emails) == 0 {
		return Email{}, false
	}
	return c.Emails[len(c.Emails)-1], true
}

// Page is one slice of a listing together with the total match count.
type Page struct {
	Items []Case `json:"items"`
	Total int64  `json:"total"`
}
