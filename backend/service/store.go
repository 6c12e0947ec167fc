package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/gleeclub/portal/backend/model"
)

// MemoryStore is an in-memory Store for local runs and tests.
// Transactions are serialized and roll back through an undo journal.
type MemoryStore struct {
	mu            sync.RWMutex
	txMu          sync.Mutex
	clock         Clock
	contracts     map[string]*model.Contract
	signatures    map[string]*model.SignatureRecord // keyed by contract id
	profiles      map[string]*model.Profile         // keyed by lower-cased email
	notifications []*model.Notification
}

func NewMemoryStore(clock Clock) *MemoryStore {
	if clock == nil {
		clock = RealClock{}
	}
	slog.Info("memory store initialized")
	return &MemoryStore{
		clock:      clock,
		contracts:  make(map[string]*model.Contract),
		signatures: make(map[string]*model.SignatureRecord),
		profiles:   make(map[string]*model.Profile),
	}
}

func cloneContract(c *model.Contract) *model.Contract {
	cp := *c
	return &cp
}

func cloneSignature(r *model.SignatureRecord) *model.SignatureRecord {
	cp := *r
	cp.EmbeddedSignatures = bytes.Clone(r.EmbeddedSignatures)
	if r.AdminSignatureData != nil {
		v := *r.AdminSignatureData
		cp.AdminSignatureData = &v
	}
	if r.ArtistSignedAt != nil {
		v := *r.ArtistSignedAt
		cp.ArtistSignedAt = &v
	}
	if r.AdminSignedAt != nil {
		v := *r.AdminSignedAt
		cp.AdminSignedAt = &v
	}
	return &cp
}

func (s *MemoryStore) GetContract(_ context.Context, id string) (*model.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contracts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneContract(c), nil
}

func (s *MemoryStore) CreateContract(_ context.Context, contract *model.Contract) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contracts[contract.ID]; ok {
		return fmt.Errorf("contract %s: %w", contract.ID, ErrConflict)
	}
	now := s.clock.Now()
	if contract.CreatedAt.IsZero() {
		contract.CreatedAt = now
	}
	contract.UpdatedAt = now
	if contract.Status == "" {
		contract.Status = model.StatusDraft
	}
	s.contracts[contract.ID] = cloneContract(contract)
	return nil
}

func (s *MemoryStore) ListContracts(_ context.Context, status model.ContractStatus) ([]*model.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*model.Contract
	for _, c := range s.contracts {
		if status == "" || c.Status == status {
			result = append(result, cloneContract(c))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (s *MemoryStore) TransitionContract(_ context.Context, id string, from []model.ContractStatus, to model.ContractStatus, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contracts[id]
	if !ok {
		return ErrNotFound
	}
	if !slices.Contains(from, c.Status) {
		return fmt.Errorf("contract %s is %s: %w", id, c.Status, ErrConflict)
	}
	c.Status = to
	c.Content = content
	c.UpdatedAt = s.clock.Now()
	return nil
}

func (s *MemoryStore) GetSignatureByContract(_ context.Context, contractID string) (*model.SignatureRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.signatures[contractID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSignature(r), nil
}

func (s *MemoryStore) CreateSignature(_ context.Context, record *model.SignatureRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.signatures[record.ContractID]; ok {
		return fmt.Errorf("signature for contract %s: %w", record.ContractID, ErrConflict)
	}
	now := s.clock.Now()
	record.CreatedAt = now
	record.UpdatedAt = now
	if record.Version == 0 {
		record.Version = 1
	}
	s.signatures[record.ContractID] = cloneSignature(record)
	return nil
}

func (s *MemoryStore) UpdateSignature(_ context.Context, record *model.SignatureRecord, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.signatures[record.ContractID]
	if !ok || current.ID != record.ID {
		return ErrNotFound
	}
	if current.Version != expectedVersion {
		return fmt.Errorf("signature %s at version %d, expected %d: %w", record.ID, current.Version, expectedVersion, ErrConflict)
	}
	record.Version = expectedVersion + 1
	record.CreatedAt = current.CreatedAt
	record.UpdatedAt = s.clock.Now()
	s.signatures[record.ContractID] = cloneSignature(record)
	return nil
}

func (s *MemoryStore) FindProfileByEmail(_ context.Context, email string) (*model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) CreateProfile(_ context.Context, profile *model.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(strings.TrimSpace(profile.Email))
	if _, ok := s.profiles[key]; ok {
		return fmt.Errorf("profile %s: %w", profile.Email, ErrConflict)
	}
	profile.CreatedAt = s.clock.Now()
	cp := *profile
	s.profiles[key] = &cp
	return nil
}

func (s *MemoryStore) CreateNotification(_ context.Context, notification *model.Notification) error {
	s.addNotification(notification)
	return nil
}

func (s *MemoryStore) addNotification(notification *model.Notification) *model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	notification.CreatedAt = s.clock.Now()
	cp := *notification
	s.notifications = append(s.notifications, &cp)
	return &cp
}

func (s *MemoryStore) ListNotifications(_ context.Context, userID string) ([]*model.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*model.Notification
	for _, n := range s.notifications {
		if n.UserID == userID {
			cp := *n
			result = append(result, &cp)
		}
	}
	return result, nil
}

// memoryTx journals an undo step for each write made through it, so a
// rollback reverts only what the transaction itself changed.
type memoryTx struct {
	*MemoryStore
	undo []func()
}

func (tx *memoryTx) CreateContract(ctx context.Context, contract *model.Contract) error {
	if err := tx.MemoryStore.CreateContract(ctx, contract); err != nil {
		return err
	}
	id := contract.ID
	tx.undo = append(tx.undo, func() {
		tx.mu.Lock()
		defer tx.mu.Unlock()
		delete(tx.contracts, id)
	})
	return nil
}

func (tx *memoryTx) TransitionContract(ctx context.Context, id string, from []model.ContractStatus, to model.ContractStatus, content string) error {
	prev, err := tx.MemoryStore.GetContract(ctx, id)
	if err != nil {
		return err
	}
	if err := tx.MemoryStore.TransitionContract(ctx, id, from, to, content); err != nil {
		return err
	}
	tx.undo = append(tx.undo, func() {
		tx.mu.Lock()
		defer tx.mu.Unlock()
		tx.contracts[id] = prev
	})
	return nil
}

func (tx *memoryTx) CreateSignature(ctx context.Context, record *model.SignatureRecord) error {
	if err := tx.MemoryStore.CreateSignature(ctx, record); err != nil {
		return err
	}
	contractID := record.ContractID
	tx.undo = append(tx.undo, func() {
		tx.mu.Lock()
		defer tx.mu.Unlock()
		delete(tx.signatures, contractID)
	})
	return nil
}

func (tx *memoryTx) UpdateSignature(ctx context.Context, record *model.SignatureRecord, expectedVersion int) error {
	prev, err := tx.MemoryStore.GetSignatureByContract(ctx, record.ContractID)
	if err != nil {
		return err
	}
	if err := tx.MemoryStore.UpdateSignature(ctx, record, expectedVersion); err != nil {
		return err
	}
	tx.undo = append(tx.undo, func() {
		tx.mu.Lock()
		defer tx.mu.Unlock()
		tx.signatures[prev.ContractID] = prev
	})
	return nil
}

func (tx *memoryTx) CreateProfile(ctx context.Context, profile *model.Profile) error {
	if err := tx.MemoryStore.CreateProfile(ctx, profile); err != nil {
		return err
	}
	key := strings.ToLower(strings.TrimSpace(profile.Email))
	tx.undo = append(tx.undo, func() {
		tx.mu.Lock()
		defer tx.mu.Unlock()
		delete(tx.profiles, key)
	})
	return nil
}

func (tx *memoryTx) CreateNotification(ctx context.Context, notification *model.Notification) error {
	stored := tx.addNotification(notification)
	tx.undo = append(tx.undo, func() {
		tx.mu.Lock()
		defer tx.mu.Unlock()
		tx.notifications = slices.DeleteFunc(tx.notifications, func(n *model.Notification) bool {
			return n == stored
		})
	})
	return nil
}

// Transact on a transaction joins it.
func (tx *memoryTx) Transact(_ context.Context, fn func(tx Store) error) error {
	return fn(tx)
}

func (tx *memoryTx) rollback() {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
}

// Transact serializes transactions. Writes made outside the transaction
// survive its rollback.
func (s *MemoryStore) Transact(_ context.Context, fn func(tx Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &memoryTx{MemoryStore: s}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// Count returns the number of contracts in the store
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.contracts)
}

// MemoryDocumentStore keeps uploaded documents in memory.
type MemoryDocumentStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{objects: make(map[string][]byte)}
}

func (d *MemoryDocumentStore) UploadFile(_ context.Context, objectName string, reader io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("failed to upload file: %w", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.objects[objectName]; ok {
		return fmt.Errorf("failed to upload file: object %s already exists", objectName)
	}
	d.objects[objectName] = data
	return nil
}

func (d *MemoryDocumentStore) DeleteFile(_ context.Context, objectName string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.objects, objectName)
	return nil
}

func (d *MemoryDocumentStore) GetPresignedURL(_ context.Context, objectName string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if _, ok := d.objects[objectName]; !ok {
		return "", fmt.Errorf("failed to generate presigned URL: %s: %w", objectName, ErrNotFound)
	}
	return "memory://" + objectName, nil
}

// Object returns a copy of the stored document.
func (d *MemoryDocumentStore) Object(objectName string) ([]byte, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	data, ok := d.objects[objectName]
	return bytes.Clone(data), ok
}

// Names lists stored object names in sorted order.
func (d *MemoryDocumentStore) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.objects))
	for name := range d.objects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
