package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gleeclub/portal/backend/model"
	"github.com/gleeclub/portal/backend/pkg/logger"
	"github.com/gleeclub/portal/backend/service"
)

type ContractHandler struct {
	store service.Store
	docs  service.DocumentStore
	ids   service.IDGenerator
}

func NewContractHandler(store service.Store, docs service.DocumentStore, ids service.IDGenerator) *ContractHandler {
	if ids == nil {
		ids = service.UUIDGenerator{}
	}
	return &ContractHandler{store: store, docs: docs, ids: ids}
}

type CreateContractRequest struct {
	Title   string `json:"title" binding:"required"`
	Content string `json:"content"`
}

func contractView(contract *model.Contract) gin.H {
	return gin.H{
		"id":         contract.ID,
		"title":      contract.Title,
		"status":     contract.Status,
		"created_at": contract.CreatedAt.Format(time.RFC3339),
		"updated_at": contract.UpdatedAt.Format(time.RFC3339),
	}
}

// Create stores a new draft contract
func (h *ContractHandler) Create(c *gin.Context) {
	var req CreateContractRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Title) == "" {
		respondInvalid(c, "title is required")
		return
	}

	contract := &model.Contract{
		ID:      h.ids.New(),
		Title:   strings.TrimSpace(req.Title),
		Content: model.StripEmbeddedSignatures(req.Content),
		Status:  model.StatusDraft,
	}
	if err := h.store.CreateContract(c.Request.Context(), contract); err != nil {
		respondError(c, err)
		return
	}

	logger.Info(logger.WithContractID(c.Request.Context(), contract.ID), "contract created", "title", contract.Title)
	c.JSON(http.StatusCreated, contractView(contract))
}

// List returns contracts, optionally filtered by ?status=
func (h *ContractHandler) List(c *gin.Context) {
	status := model.ContractStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		respondInvalid(c, "unknown status")
		return
	}

	contracts, err := h.store.ListContracts(c.Request.Context(), status)
	if err != nil {
		respondError(c, err)
		return
	}

	result := make([]gin.H, len(contracts))
	for i, contract := range contracts {
		result[i] = contractView(contract)
	}

	c.JSON(http.StatusOK, gin.H{"contracts": result})
}

// Get returns a single contract with its text and ledger
func (h *ContractHandler) Get(c *gin.Context) {
	contract, err := h.store.GetContract(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, lookupError("Contract not found", err))
		return
	}

	view := contractView(contract)
	view["body"] = contract.Body()
	ledger, ok, err := model.ExtractEmbeddedSignatures(contract.Content)
	if err != nil {
		logger.Warn(logger.WithContractID(c.Request.Context(), contract.ID), "contract ledger block is unreadable", "error", err)
	}
	if ok && err == nil {
		view["embedded_signatures"] = ledger
	}

	c.JSON(http.StatusOK, view)
}

// GetSignature returns the signature record of a contract
func (h *ContractHandler) GetSignature(c *gin.Context) {
	record, err := h.store.GetSignatureByContract(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, lookupError("Signature not found", err))
		return
	}

	c.JSON(http.StatusOK, record)
}

// Document returns a presigned URL for the latest rendered PDF
func (h *ContractHandler) Document(c *gin.Context) {
	ctx := c.Request.Context()
	record, err := h.store.GetSignatureByContract(ctx, c.Param("id"))
	if err != nil {
		respondError(c, lookupError("Signature not found", err))
		return
	}
	if record.PDFStoragePath == "" {
		respondError(c, lookupError("Document not found", service.ErrNotFound))
		return
	}

	url, err := h.docs.GetPresignedURL(ctx, record.PDFStoragePath)
	if err != nil {
		respondError(c, &service.Error{Kind: service.KindStorage, Message: "Failed to generate document URL", Err: err})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"contract_id": record.ContractID,
		"status":      record.Status,
		"pdf_path":    record.PDFStoragePath,
		"url":         url,
	})
}

func lookupError(notFound string, err error) error {
	if errors.Is(err, service.ErrNotFound) {
		return &service.Error{Kind: service.KindNotFound, Message: notFound, Err: err}
	}
	return &service.Error{Kind: service.KindPersistence, Message: "Failed to load record", Err: err}
}
