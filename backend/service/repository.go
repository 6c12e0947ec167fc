package service

import (
	"context"
	"io"

	"github.com/gleeclub/portal/backend/model"
)

// ContractRepository persists contracts. Status changes only happen through
// TransitionContract, which fails with ErrConflict when the current status is
// not one of from.
type ContractRepository interface {
	GetContract(ctx context.Context, id string) (*model.Contract, error)
	CreateContract(ctx context.Context, contract *model.Contract) error
	ListContracts(ctx context.Context, status model.ContractStatus) ([]*model.Contract, error)
	TransitionContract(ctx context.Context, id string, from []model.ContractStatus, to model.ContractStatus, content string) error
}

// SignatureRepository persists the one signature record each contract has.
// UpdateSignature fails with ErrConflict when the stored version differs from
// expectedVersion, and bumps record.Version on success.
type SignatureRepository interface {
	GetSignatureByContract(ctx context.Context, contractID string) (*model.SignatureRecord, error)
	CreateSignature(ctx context.Context, record *model.SignatureRecord) error
	UpdateSignature(ctx context.Context, record *model.SignatureRecord, expectedVersion int) error
}

type ProfileRepository interface {
	FindProfileByEmail(ctx context.Context, email string) (*model.Profile, error)
	CreateProfile(ctx context.Context, profile *model.Profile) error
}

type NotificationRepository interface {
	CreateNotification(ctx context.Context, notification *model.Notification) error
	ListNotifications(ctx context.Context, userID string) ([]*model.Notification, error)
}

// Store bundles the repositories. Transact runs fn against a store whose
// writes commit together or not at all.
type Store interface {
	ContractRepository
	SignatureRepository
	ProfileRepository
	NotificationRepository
	Transact(ctx context.Context, fn func(tx Store) error) error
}

// DocumentStore holds rendered contract PDFs.
type DocumentStore interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error
	DeleteFile(ctx context.Context, objectName string) error
	GetPresignedURL(ctx context.Context, objectName string) (string, error)
}
