package stores

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/claimy/claimy-admin/internal/cases"
	"github.com/claimy/claimy-admin/internal/database"
	"github.com/claimy/claimy-admin/internal/models"
	"github.com/claimy/claimy-admin/pkg/logger"
)

// Input is the writable part of a store.
type Input struct {
	StoreID        string `validate:"required"`
	Name           string `validate:"required"`
	PrimaryColor   string `validate:"required"`
	SecondaryColor string
	Email          string `validate:"required,email"`
}

type Service struct {
	db       *gorm.DB
	validate *validator.Validate
	logger   *logger.Logger
}

func NewService(db *gorm.DB, log *logger.Logger) *Service {
	return &Service{db: db, validate: validator.New(), logger: log}
}

// List returns every store sorted by name.
func (s *Service) List(ctx context.Context) (models.StorePage, error) {
	var docs []database.StoreDocument
	if err := s.db.WithContext(ctx).Order("name ASC").Order("store_id ASC").Find(&docs).Error; err != nil {
		return models.StorePage{}, errors.Wrap(err, "list stores")
	}
	page := models.StorePage{Items: make([]models.Store, 0, len(docs)), Total: int64(len(docs))}
	for _, doc := range docs {
		page.Items = append(page.Items, toStore(doc))
	}
	return page, nil
}

// Create adds a store. The storeId must not be taken.
func (s *Service) Create(ctx context.Context, input Input) (*models.Store, error) {
	input, err := s.clean(input)
	if err != nil {
		return nil, err
	}

	doc := database.StoreDocument{
		ID:             uuid.NewString(),
		StoreID:        input.StoreID,
		Name:           input.Name,
		PrimaryColor:   input.PrimaryColor,
		SecondaryColor: input.SecondaryColor,
		Email:          input.Email,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureFree(tx, input.StoreID, ""); err != nil {
			return err
		}
		return translate(tx.Create(&doc).Error, input.StoreID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Store created", "store_id", doc.StoreID)
	store := toStore(doc)
	return &store, nil
}

// Update replaces the store identified by storeID. The input may rename
// its storeId as long as the new one is free.
func (s *Service) Update(ctx context.Context, storeID string, input Input) (*models.Store, error) {
	storeID = strings.TrimSpace(storeID)
	input, err := s.clean(input)
	if err != nil {
		return nil, err
	}

	var doc database.StoreDocument
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&doc, "store_id = ?", storeID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errors.Mark(errors.Newf("store %s not found", storeID), cases.ErrNotFound)
			}
			return errors.Wrapf(err, "load store %s", storeID)
		}
		if input.StoreID != doc.StoreID {
			if err := ensureFree(tx, input.StoreID, doc.ID); err != nil {
				return err
			}
		}
		doc.StoreID = input.StoreID
		doc.Name = input.Name
		doc.PrimaryColor = input.PrimaryColor
		doc.SecondaryColor = input.SecondaryColor
		doc.Email = input.Email
		return translate(tx.Save(&doc).Error, input.StoreID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Store updated", "store_id", doc.StoreID)
	store := toStore(doc)
	return &store, nil
}

func (s *Service) clean(input Input) (Input, error) {
	input.StoreID = strings.TrimSpace(input.StoreID)
	input.Name = strings.TrimSpace(input.Name)
	input.PrimaryColor = strings.TrimSpace(input.PrimaryColor)
	input.SecondaryColor = strings.TrimSpace(input.SecondaryColor)
	input.Email = strings.TrimSpace(input.Email)

	if err := s.validate.Struct(input); err != nil {
		var fieldErrors validator.ValidationErrors
		if errors.As(err, &fieldErrors) {
			for _, fe := range fieldErrors {
				if fe.Field() == "Email" && fe.Tag() == "email" {
					return input, cases.Invalid("Invalid email address")
				}
			}
			return input, cases.Invalid("storeId, name, primaryColor and email are required")
		}
		return input, errors.Wrap(err, "validate store")
	}
	return input, nil
}

func ensureFree(tx *gorm.DB, storeID, selfID string) error {
	query := tx.Model(&database.StoreDocument{}).Where("store_id = ?", storeID)
	if selfID != "" {
		query = query.Where("id <> ?", selfID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return errors.Wrap(err, "check store id")
	}
	if count > 0 {
		return conflict(storeID)
	}
	return nil
}

func translate(err error, storeID string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return conflict(storeID)
	}
	return errors.Wrapf(err, "save store %s", storeID)
}

func conflict(storeID string) error {
	return errors.Mark(errors.Newf("Store %s already exists", storeID), cases.ErrConflict)
}

func toStore(doc database.StoreDocument) models.Store {
	return models.Store{
		ID:             doc.ID,
		StoreID:        doc.StoreID,
		Name:           doc.Name,
		PrimaryColor:   doc.PrimaryColor,
		SecondaryColor: doc.SecondaryColor,
		Email:          doc.Email,
		CreatedAt:      doc.CreatedAt.UTC(),
		UpdatedAt:      doc.UpdatedAt.UTC(),
	}
}
