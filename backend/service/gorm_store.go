package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gleeclub/portal/backend/config"
	"github.com/gleeclub/portal/backend/model"
	"github.com/gleeclub/portal/backend/pkg/logger"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// OpenDatabase connects to the configured row store.
func OpenDatabase(cfg *config.DatabaseConfig, logLevel string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		Logger:                                   logger.Gorm(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Driver, err)
	}
	return db, nil
}

// AutoMigrate creates or updates the tables the signing workflow uses.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Contract{},
		&model.SignatureRecord{},
		&model.Profile{},
		&model.Notification{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// GormStore is the relational Store.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	default:
		return err
	}
}

func (s *GormStore) GetContract(ctx context.Context, id string) (*model.Contract, error) {
	var c model.Contract
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (s *GormStore) CreateContract(ctx context.Context, contract *model.Contract) error {
	if contract.Status == "" {
		contract.Status = model.StatusDraft
	}
	return translate(s.db.WithContext(ctx).Create(contract).Error)
}

func (s *GormStore) ListContracts(ctx context.Context, status model.ContractStatus) ([]*model.Contract, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var result []*model.Contract
	if err := q.Find(&result).Error; err != nil {
		return nil, err
	}
	return result, nil
}

func (s *GormStore) TransitionContract(ctx context.Context, id string, from []model.ContractStatus, to model.ContractStatus, content string) error {
	res := s.db.WithContext(ctx).
		Model(&model.Contract{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(map[string]any{
			"status":  to,
			"content": content,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := s.db.WithContext(ctx).Model(&model.Contract{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
		return fmt.Errorf("contract %s not in %v: %w", id, from, ErrConflict)
	}
	return nil
}

func (s *GormStore) GetSignatureByContract(ctx context.Context, contractID string) (*model.SignatureRecord, error) {
	var r model.SignatureRecord
	if err := s.db.WithContext(ctx).Where("contract_id = ?", contractID).First(&r).Error; err != nil {
		return nil, translate(err)
	}
	return &r, nil
}

func (s *GormStore) CreateSignature(ctx context.Context, record *model.SignatureRecord) error {
	if record.Version == 0 {
		record.Version = 1
	}
	return translate(s.db.WithContext(ctx).Create(record).Error)
}

func (s *GormStore) UpdateSignature(ctx context.Context, record *model.SignatureRecord, expectedVersion int) error {
	res := s.db.WithContext(ctx).
		Model(&model.SignatureRecord{}).
		Where("id = ? AND version = ?", record.ID, expectedVersion).
		Updates(map[string]any{
			"artist_signature_data": record.ArtistSignatureData,
			"artist_signed_at":      record.ArtistSignedAt,
			"date_signed":           record.DateSigned,
			"signer_ip":             record.SignerIP,
			"admin_signature_data":  record.AdminSignatureData,
			"admin_signed_at":       record.AdminSignedAt,
			"admin_date_signed":     record.AdminDateSigned,
			"admin_signer_ip":       record.AdminSignerIP,
			"pdf_storage_path":      record.PDFStoragePath,
			"status":                record.Status,
			"embedded_signatures":   record.EmbeddedSignatures,
			"version":               expectedVersion + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := s.db.WithContext(ctx).Model(&model.SignatureRecord{}).Where("id = ?", record.ID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
		return fmt.Errorf("signature %s version moved past %d: %w", record.ID, expectedVersion, ErrConflict)
	}
	record.Version = expectedVersion + 1
	return nil
}

func (s *GormStore) FindProfileByEmail(ctx context.Context, email string) (*model.Profile, error) {
	var p model.Profile
	err := s.db.WithContext(ctx).
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&p).Error
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *GormStore) CreateProfile(ctx context.Context, profile *model.Profile) error {
	return translate(s.db.WithContext(ctx).Create(profile).Error)
}

func (s *GormStore) CreateNotification(ctx context.Context, notification *model.Notification) error {
	return translate(s.db.WithContext(ctx).Create(notification).Error)
}

func (s *GormStore) ListNotifications(ctx context.Context, userID string) ([]*model.Notification, error) {
	var result []*model.Notification
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at").Find(&result).Error; err != nil {
		return nil, err
	}
	return result, nil
}

func (s *GormStore) Transact(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}
