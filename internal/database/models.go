package database

import (
	"time"

	"github.com/claimy/claimy-admin/internal/models"
)

// CaseDocument is the stored form of a case. Nested collections live in JSON
// columns so one row is one document.
type CaseDocument struct {
	ID             string                 `gorm:"primaryKey;size:64"`
	UserID         string                 `gorm:"size:128"`
	UserName       string                 `gorm:"size:255"`
	UserEmail      string                 `gorm:"index"`
	StoreName      string                 `gorm:"size:255"`
	ProductName    string                 `gorm:"size:255"`
	Description    string                 `gorm:"type:text"`
	CreatedAt      time.Time              `gorm:"index"`
	UpdatedAt      time.Time              `gorm:"autoUpdateTime"`
	ImageURLs      models.ImageRefs       `gorm:"serializer:json"`
	AssetIDs       models.ImageRefs       `gorm:"serializer:json"`
	ManualAnalysis *models.ManualAnalysis `gorm:"serializer:json"`
	Emails         []models.Email         `gorm:"serializer:json"`
	Resolution     *models.Resolution     `gorm:"serializer:json"`
	Status         string                 `gorm:"index;size:64"`
	StatusHistory  []models.StatusEntry   `gorm:"serializer:json"`
	InfoRequests   []models.InfoRequest   `gorm:"serializer:json"`
	InfoResponses  []models.InfoResponse  `gorm:"serializer:json"`
}

// StoreDocument is a partner store's branding and contact configuration.
type StoreDocument struct {
	ID             string    `gorm:"primaryKey;size:64"`
	StoreID        string    `gorm:"uniqueIndex;size:128"`
	Name           string    `gorm:"index"`
	PrimaryColor   string    `gorm:"size:16"`
	SecondaryColor string    `gorm:"size:16"`
	Email          string    `gorm:"size:255"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

func (CaseDocument) TableName() string {
	return "cases"
}

func (StoreDocument) TableName() string {
	return "stores"
}
