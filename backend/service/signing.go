package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gleeclub/portal/backend/model"
	"github.com/gleeclub/portal/backend/pkg/logger"
	"github.com/gleeclub/portal/backend/pkg/pdfdoc"
)

// DisplayDateLayout formats the human readable signing date.
const DisplayDateLayout = "January 2, 2006"

const (
	artistSlotLabel = "Artist Signature"
	adminSlotLabel  = "Glee Club Administrator"
)

// DocumentRenderer turns a contract into PDF bytes.
type DocumentRenderer interface {
	Render(doc pdfdoc.Document) (*pdfdoc.Result, error)
}

// SigningService runs the two-party signing workflow:
// draft -> pending_admin_signature -> completed.
type SigningService struct {
	store    Store
	docs     DocumentStore
	renderer DocumentRenderer
	taxForms TaxFormRequester
	clock    Clock
	ids      IDGenerator
	namer    *blobNamer
}

// Option configures a SigningService.
type Option func(*SigningService)

// WithClock replaces the wall clock used for signing dates and blob names.
func WithClock(c Clock) Option {
	return func(s *SigningService) { s.clock = c }
}

// WithIDGenerator replaces the generator for signature and notification ids.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *SigningService) { s.ids = g }
}

// NewSigningService builds the workflow. A nil taxForms disables the tax form
// follow-up.
func NewSigningService(store Store, docs DocumentStore, renderer DocumentRenderer, taxForms TaxFormRequester, opts ...Option) *SigningService {
	s := &SigningService{
		store:    store,
		docs:     docs,
		renderer: renderer,
		taxForms: taxForms,
		clock:    RealClock{},
		ids:      UUIDGenerator{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.taxForms == nil {
		s.taxForms = NoopTaxFormRequester{}
	}
	s.namer = &blobNamer{clock: s.clock}
	return s
}

// ArtistSignRequest is the artist's signature on a contract.
type ArtistSignRequest struct {
	ContractID    string
	SignatureData string
	DateSigned    string // defaults to today
	SignerName    string
	ClientIP      string
}

// AdminSignRequest countersigns a contract. RecipientEmail, when set, selects
// the profile that is notified once the contract completes.
type AdminSignRequest struct {
	ContractID     string
	SignatureData  string
	RecipientEmail string
	RecipientName  string
	SignerName     string
	ClientIP       string
}

// SignResult describes the stored signature and the PDF rendered for it.
// Warnings lists problems that were rendered as placeholders.
type SignResult struct {
	SignatureID string
	PDFPath     string
	DateSigned  string
	Status      model.ContractStatus
	Warnings    []string
}

// MaxSignatureDataBytes caps the encoded signature image a signer may submit.
const MaxSignatureDataBytes = 2 << 20

func validateSign(contractID, signatureData string) error {
	if strings.TrimSpace(contractID) == "" {
		return newError(KindInvalidInput, "contractId is required", nil)
	}
	if strings.TrimSpace(signatureData) == "" {
		return newError(KindInvalidInput, "signatureData is required", nil)
	}
	if len(signatureData) > MaxSignatureDataBytes {
		return newError(KindInvalidInput, "signatureData is too large", nil)
	}
	return nil
}

func normalizeIP(ip string) string {
	if ip == "" {
		return UnknownIP
	}
	return ip
}

// SignAsArtist records the artist's signature, renders the interim PDF and
// moves the contract to pending_admin_signature. Signing again before the
// admin does replaces the artist's previous signature.
func (s *SigningService) SignAsArtist(ctx context.Context, req ArtistSignRequest) (*SignResult, error) {
	if err := validateSign(req.ContractID, req.SignatureData); err != nil {
		return nil, err
	}
	ctx = logger.WithContractID(ctx, req.ContractID)

	contract, err := s.loadContract(ctx, req.ContractID)
	if err != nil {
		return nil, err
	}
	if !contract.Status.CanAdvanceTo(model.StatusPendingAdminSignature) {
		if contract.Status == model.StatusCompleted {
			return nil, newError(KindConflict, "Contract is already fully signed", nil)
		}
		return nil, newError(KindConflict, fmt.Sprintf("Contract is %s and cannot be signed", contract.Status), nil)
	}

	existing, err := s.store.GetSignatureByContract(ctx, contract.ID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, newError(KindPersistence, "Failed to load signature", err)
	}

	now := s.clock.Now()
	dateSigned := req.DateSigned
	if dateSigned == "" {
		dateSigned = now.Format(DisplayDateLayout)
	}
	ip := normalizeIP(req.ClientIP)

	ledger := model.Ledger{}
	if existing != nil {
		ledger = s.readLedger(ctx, existing)
	}
	ledger = ledger.Upsert(model.EmbeddedSignature{
		FieldID:       model.SignerArtist.FieldID(),
		SignatureData: req.SignatureData,
		DateSigned:    dateSigned,
		Timestamp:     now.UTC().Format(time.RFC3339),
		IPAddress:     ip,
		SignerType:    model.SignerArtist,
		SignerName:    req.SignerName,
	})

	content, err := model.EmbedSignatures(contract.Content, ledger)
	if err != nil {
		return nil, newError(KindInternal, "Failed to update contract content", err)
	}

	rendered, err := s.render(contract, ledger, now)
	if err != nil {
		return nil, err
	}

	name := s.namer.Name(contract.ID, StageArtistSigned)
	if err := s.upload(ctx, name, rendered.Bytes); err != nil {
		return nil, newError(KindStorage, "Failed to store interim PDF", err)
	}

	var record *model.SignatureRecord
	err = s.store.Transact(ctx, func(tx Store) error {
		if existing == nil {
			record = &model.SignatureRecord{ID: s.ids.New(), ContractID: contract.ID}
		} else {
			record = existing
		}
		record.ArtistSignatureData = req.SignatureData
		record.ArtistSignedAt = &now
		record.DateSigned = dateSigned
		record.SignerIP = ip
		record.PDFStoragePath = name
		record.Status = model.StatusPendingAdminSignature
		if err := record.SetLedger(ledger); err != nil {
			return newError(KindInternal, "Failed to store signature", err)
		}

		if existing == nil {
			if err := tx.CreateSignature(ctx, record); err != nil {
				return persistenceError("Failed to store signature", err)
			}
		} else if err := tx.UpdateSignature(ctx, record, existing.Version); err != nil {
			return persistenceError("Failed to update signature", err)
		}

		from := []model.ContractStatus{model.StatusDraft, model.StatusPendingAdminSignature}
		if err := tx.TransitionContract(ctx, contract.ID, from, model.StatusPendingAdminSignature, content); err != nil {
			return persistenceError("Failed to update contract status", err)
		}
		return nil
	})
	if err != nil {
		s.discard(ctx, name)
		return nil, asSigningError(err, "Failed to store signature")
	}

	logger.Info(ctx, "artist signature recorded",
		"signature_id", record.ID,
		"pdf_path", name,
		"resign", existing != nil,
	)

	return &SignResult{
		SignatureID: record.ID,
		PDFPath:     name,
		DateSigned:  dateSigned,
		Status:      model.StatusPendingAdminSignature,
		Warnings:    rendered.Warnings,
	}, nil
}

// SignAsAdmin countersigns a contract the artist has signed, renders the
// final PDF and completes the contract. The recipient is then notified on a
// best-effort basis.
func (s *SigningService) SignAsAdmin(ctx context.Context, req AdminSignRequest) (*SignResult, error) {
	if err := validateSign(req.ContractID, req.SignatureData); err != nil {
		return nil, err
	}
	ctx = logger.WithContractID(ctx, req.ContractID)

	contract, err := s.loadContract(ctx, req.ContractID)
	if err != nil {
		return nil, err
	}

	record, err := s.store.GetSignatureByContract(ctx, contract.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, newError(KindNotFound, "Artist signature not found", err)
		}
		return nil, newError(KindPersistence, "Failed to load signature", err)
	}
	if !contract.Status.CanAdvanceTo(model.StatusCompleted) {
		return nil, newError(KindConflict, fmt.Sprintf("Contract is %s, not awaiting admin signature", contract.Status), nil)
	}

	now := s.clock.Now()
	dateSigned := now.Format(DisplayDateLayout)
	ip := normalizeIP(req.ClientIP)

	ledger := s.readLedger(ctx, record)
	ledger = ledger.Upsert(model.EmbeddedSignature{
		FieldID:       model.SignerAdmin.FieldID(),
		SignatureData: req.SignatureData,
		DateSigned:    dateSigned,
		Timestamp:     now.UTC().Format(time.RFC3339),
		IPAddress:     ip,
		SignerType:    model.SignerAdmin,
		SignerName:    req.SignerName,
	})

	content, err := model.EmbedSignatures(contract.Content, ledger)
	if err != nil {
		return nil, newError(KindInternal, "Failed to update contract content", err)
	}

	rendered, err := s.render(contract, ledger, now)
	if err != nil {
		return nil, err
	}

	name := s.namer.Name(contract.ID, StageFullySigned)
	if err := s.upload(ctx, name, rendered.Bytes); err != nil {
		return nil, newError(KindStorage, "Failed to store final PDF", err)
	}

	expected := record.Version
	adminData := req.SignatureData
	record.AdminSignatureData = &adminData
	record.AdminSignedAt = &now
	record.AdminDateSigned = dateSigned
	record.AdminSignerIP = ip
	record.PDFStoragePath = name
	record.Status = model.StatusCompleted
	if err := record.SetLedger(ledger); err != nil {
		s.discard(ctx, name)
		return nil, newError(KindInternal, "Failed to update signature", err)
	}

	err = s.store.Transact(ctx, func(tx Store) error {
		if err := tx.UpdateSignature(ctx, record, expected); err != nil {
			return persistenceError("Failed to update signature", err)
		}
		from := []model.ContractStatus{model.StatusPendingAdminSignature}
		if err := tx.TransitionContract(ctx, contract.ID, from, model.StatusCompleted, content); err != nil {
			return persistenceError("Failed to update contract status", err)
		}
		return nil
	})
	if err != nil {
		s.discard(ctx, name)
		return nil, asSigningError(err, "Failed to update signature")
	}

	logger.Info(ctx, "contract fully signed", "signature_id", record.ID, "pdf_path", name)

	s.notifyRecipient(ctx, contract, name, req)

	return &SignResult{
		SignatureID: record.ID,
		PDFPath:     name,
		DateSigned:  dateSigned,
		Status:      model.StatusCompleted,
		Warnings:    rendered.Warnings,
	}, nil
}

func (s *SigningService) loadContract(ctx context.Context, id string) (*model.Contract, error) {
	contract, err := s.store.GetContract(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, newError(KindNotFound, "Contract not found", err)
		}
		return nil, newError(KindPersistence, "Failed to load contract", err)
	}
	return contract, nil
}

// readLedger decodes the stored ledger. A ledger that cannot be decoded, or
// that lost its artist entry, is rebuilt from the record's artist columns.
func (s *SigningService) readLedger(ctx context.Context, record *model.SignatureRecord) model.Ledger {
	ledger, err := record.Ledger()
	if err != nil {
		logger.Warn(ctx, "stored signature ledger is unreadable, rebuilding artist entry",
			"signature_id", record.ID,
			"error", err,
		)
		ledger = model.Ledger{}
	}
	if _, ok := ledger.Find(model.SignerArtist); !ok && record.ArtistSignatureData != "" {
		ledger = ledger.Upsert(record.ArtistEntry())
	}
	return ledger
}

func (s *SigningService) render(contract *model.Contract, ledger model.Ledger, now time.Time) (*pdfdoc.Result, error) {
	artist, _ := ledger.Find(model.SignerArtist)
	admin, _ := ledger.Find(model.SignerAdmin)

	rendered, err := s.renderer.Render(pdfdoc.Document{
		ContractID: contract.ID,
		Title:      contract.Title,
		Body:       contract.Body(),
		Slots: []pdfdoc.Slot{
			{Label: artistSlotLabel, SignerName: artist.SignerName, ImageDataURI: artist.SignatureData, DateSigned: artist.DateSigned},
			{Label: adminSlotLabel, SignerName: admin.SignerName, ImageDataURI: admin.SignatureData, DateSigned: admin.DateSigned},
		},
		GeneratedAt: now,
	})
	if err != nil {
		return nil, newError(KindInternal, "Failed to generate PDF", err)
	}
	return rendered, nil
}

func (s *SigningService) upload(ctx context.Context, name string, data []byte) error {
	return s.docs.UploadFile(ctx, name, bytes.NewReader(data), int64(len(data)), "application/pdf")
}

// discard removes a blob whose database write did not commit.
func (s *SigningService) discard(ctx context.Context, name string) {
	if err := s.docs.DeleteFile(context.WithoutCancel(ctx), name); err != nil {
		logger.Error(ctx, "failed to delete orphaned document", "pdf_path", name, "error", err)
		return
	}
	logger.Warn(ctx, "deleted orphaned document", "pdf_path", name)
}

func asSigningError(err error, fallback string) error {
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	return persistenceError(fallback, err)
}

// notifyRecipient tells the recipient the contract is complete and asks the
// tax form handler to follow up. Failures are logged only.
func (s *SigningService) notifyRecipient(ctx context.Context, contract *model.Contract, pdfPath string, req AdminSignRequest) {
	if strings.TrimSpace(req.RecipientEmail) == "" {
		return
	}

	profile, err := s.store.FindProfileByEmail(ctx, req.RecipientEmail)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			logger.Info(ctx, "no profile for recipient, skipping notification", "recipient_email", req.RecipientEmail)
		} else {
			logger.Error(ctx, "failed to look up recipient profile", "error", err)
		}
		return
	}

	metadata, _ := json.Marshal(map[string]string{
		"contractId": contract.ID,
		"pdfPath":    pdfPath,
	})
	notification := &model.Notification{
		ID:       s.ids.New(),
		UserID:   profile.ID,
		Title:    "Contract fully signed",
		Message:  fmt.Sprintf("Your contract %q has been signed by both parties.", contract.Title),
		Type:     model.NotificationContractSigned,
		Metadata: metadata,
	}
	if err := s.store.CreateNotification(ctx, notification); err != nil {
		logger.Error(ctx, "failed to create notification", "user_id", profile.ID, "error", err)
	}

	name := req.RecipientName
	if name == "" {
		name = profile.FullName
	}
	err = s.taxForms.RequestTaxForm(ctx, TaxFormRequest{
		UserID:         profile.ID,
		ContractID:     contract.ID,
		ContractTitle:  contract.Title,
		RecipientEmail: req.RecipientEmail,
		RecipientName:  name,
	})
	if err != nil {
		logger.Error(ctx, "tax form request failed", "user_id", profile.ID, "error", err)
		return
	}
	logger.Info(ctx, "tax form requested", "user_id", profile.ID)
}
