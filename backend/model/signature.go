package model

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// SignerType discriminates ledger entries by the party that produced them.
type SignerType string

const (
	SignerArtist SignerType = "artist"
	SignerAdmin  SignerType = "admin"
)

// FieldID returns the signature field slot for the signer type.
func (t SignerType) FieldID() int {
	if t == SignerAdmin {
		return 2
	}
	return 1
}

// SignatureRecord holds both parties' signatures for one contract.
type SignatureRecord struct {
	ID                  string         `gorm:"primaryKey;type:varchar(64)" json:"id"`
	ContractID          string         `gorm:"type:varchar(64);uniqueIndex;not null" json:"contract_id"`
	ArtistSignatureData string         `gorm:"type:text" json:"artist_signature_data"`
	ArtistSignedAt      *time.Time     `json:"artist_signed_at"`
	DateSigned          string         `json:"date_signed"`
	SignerIP            string         `gorm:"column:signer_ip" json:"signer_ip"`
	AdminSignatureData  *string        `gorm:"type:text" json:"admin_signature_data"`
	AdminSignedAt       *time.Time     `json:"admin_signed_at"`
	AdminDateSigned     string         `json:"admin_date_signed,omitempty"`
	AdminSignerIP       string         `gorm:"column:admin_signer_ip" json:"admin_signer_ip,omitempty"`
	PDFStoragePath      string         `gorm:"column:pdf_storage_path" json:"pdf_storage_path"`
	Status              ContractStatus `gorm:"type:varchar(32);not null" json:"status"`
	EmbeddedSignatures  datatypes.JSON `json:"embedded_signatures"`
	Version             int            `gorm:"not null;default:1" json:"version"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

func (SignatureRecord) TableName() string { return "contract_signatures" }

// Ledger decodes the stored embedded signature ledger.
func (r *SignatureRecord) Ledger() (Ledger, error) {
	return ParseLedger(r.EmbeddedSignatures)
}

// SetLedger replaces the stored ledger.
func (r *SignatureRecord) SetLedger(l Ledger) error {
	raw, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("failed to encode ledger: %w", err)
	}
	r.EmbeddedSignatures = datatypes.JSON(raw)
	return nil
}

// ArtistEntry rebuilds the artist ledger entry from the record's artist columns.
func (r *SignatureRecord) ArtistEntry() EmbeddedSignature {
	e := EmbeddedSignature{
		FieldID:       SignerArtist.FieldID(),
		SignatureData: r.ArtistSignatureData,
		DateSigned:    r.DateSigned,
		IPAddress:     r.SignerIP,
		SignerType:    SignerArtist,
	}
	if r.ArtistSignedAt != nil {
		e.Timestamp = r.ArtistSignedAt.UTC().Format(time.RFC3339)
	}
	return e
}

// EmbeddedSignature is one signer's entry in the ledger.
type EmbeddedSignature struct {
	FieldID       int        `json:"fieldId"`
	SignatureData string     `json:"signatureData"`
	DateSigned    string     `json:"dateSigned"`
	Timestamp     string     `json:"timestamp"`
	IPAddress     string     `json:"ipAddress"`
	SignerType    SignerType `json:"signerType"`
	SignerName    string     `json:"signerName"`
}

// Ledger is the ordered list of embedded signatures, at most one per signer type.
type Ledger []EmbeddedSignature

// ParseLedger decodes a JSON ledger. Empty input yields an empty ledger.
func ParseLedger(raw []byte) (Ledger, error) {
	if len(strings.TrimSpace(string(raw))) == 0 || string(raw) == "null" {
		return Ledger{}, nil
	}
	var l Ledger
	if err := json.Unmarshal(raw, &l); err != nil {
		return nil, fmt.Errorf("failed to decode ledger: %w", err)
	}
	return l, nil
}

// Upsert returns a copy of the ledger with e replacing any entry of the same signer type.
// Entries stay ordered by field id so the artist always precedes the admin.
func (l Ledger) Upsert(e EmbeddedSignature) Ledger {
	out := make(Ledger, 0, len(l)+1)
	for _, existing := range l {
		if existing.SignerType != e.SignerType {
			out = append(out, existing)
		}
	}
	out = append(out, e)
	sort.SliceStable(out, func(i, j int) bool { return out[i].FieldID < out[j].FieldID })
	return out
}

// Find returns the entry for the signer type, if present.
func (l Ledger) Find(t SignerType) (EmbeddedSignature, bool) {
	for _, e := range l {
		if e.SignerType == t {
			return e, true
		}
	}
	return EmbeddedSignature{}, false
}

// Complete reports whether the ledger holds exactly one artist entry followed by one admin entry.
func (l Ledger) Complete() bool {
	return len(l) == 2 && l[0].SignerType == SignerArtist && l[1].SignerType == SignerAdmin
}

const (
	ledgerOpen  = "[EMBEDDED_SIGNATURES]"
	ledgerClose = "[/EMBEDDED_SIGNATURES]"
)

var ledgerBlock = regexp.MustCompile(`(?s)\s*\[EMBEDDED_SIGNATURES\].*?\[/EMBEDDED_SIGNATURES\]`)

// StripEmbeddedSignatures removes every ledger block from contract content.
func StripEmbeddedSignatures(content string) string {
	return strings.TrimRight(ledgerBlock.ReplaceAllString(content, ""), " \t\r\n")
}

// EmbedSignatures replaces any ledger block in content with one holding l.
func EmbedSignatures(content string, l Ledger) (string, error) {
	raw, err := json.Marshal(l)
	if err != nil {
		return "", fmt.Errorf("failed to encode ledger: %w", err)
	}
	body := StripEmbeddedSignatures(content)
	return body + "\n\n" + ledgerOpen + "\n" + string(raw) + "\n" + ledgerClose, nil
}

// ExtractEmbeddedSignatures returns the ledger from the first block in content.
func ExtractEmbeddedSignatures(content string) (Ledger, bool, error) {
	block := ledgerBlock.FindString(content)
	if block == "" {
		return nil, false, nil
	}
	block = strings.TrimSpace(block)
	inner := strings.TrimSuffix(strings.TrimPrefix(block, ledgerOpen), ledgerClose)
	l, err := ParseLedger([]byte(inner))
	if err != nil {
		return nil, true, err
	}
	return l, true, nil
}
