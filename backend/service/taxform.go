package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gleeclub/portal/backend/config"
)

// TaxFormRequest is the payload the downstream tax form handler expects.
type TaxFormRequest struct {
	UserID         string `json:"userId"`
	ContractID     string `json:"contractId"`
	ContractTitle  string `json:"contractTitle"`
	RecipientEmail string `json:"recipientEmail"`
	RecipientName  string `json:"recipientName"`
}

// TaxFormRequester asks the recipient of a completed contract for a tax form.
type TaxFormRequester interface {
	RequestTaxForm(ctx context.Context, req TaxFormRequest) error
}

// NoopTaxFormRequester is used when no downstream handler is configured.
type NoopTaxFormRequester struct{}

func (NoopTaxFormRequester) RequestTaxForm(context.Context, TaxFormRequest) error { return nil }

type TaxFormService struct {
	config     *config.NotifyConfig
	httpClient *http.Client
}

func NewTaxFormService(cfg *config.NotifyConfig) *TaxFormService {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &TaxFormService{
		config: cfg,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// NewTaxFormRequester picks the HTTP requester when a URL is configured.
func NewTaxFormRequester(cfg *config.NotifyConfig) TaxFormRequester {
	if cfg.TaxFormURL == "" {
		return NoopTaxFormRequester{}
	}
	return NewTaxFormService(cfg)
}

// RequestTaxForm posts the request to the downstream handler
func (s *TaxFormService) RequestTaxForm(ctx context.Context, reqBody TaxFormRequest) error {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.TaxFormURL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if s.config.TaxFormToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.config.TaxFormToken)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("tax form handler returned %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
