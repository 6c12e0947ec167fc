package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gleeclub/portal/backend/middleware"
	"github.com/gleeclub/portal/backend/service"
)

type SignatureHandler struct {
	signing *service.SigningService
}

func NewSignatureHandler(signing *service.SigningService) *SignatureHandler {
	return &SignatureHandler{signing: signing}
}

type ArtistSignRequest struct {
	ContractID    string `json:"contractId" binding:"required"`
	SignatureData string `json:"signatureData" binding:"required"`
	DateSigned    string `json:"dateSigned"`
}

type AdminSignRequest struct {
	ContractID     string `json:"contractId" binding:"required"`
	SignatureData  string `json:"signatureData" binding:"required"`
	RecipientEmail string `json:"recipientEmail"`
	RecipientName  string `json:"recipientName"`
}

type SignResponse struct {
	Success     bool     `json:"success"`
	SignatureID string   `json:"signatureId"`
	PDFPath     string   `json:"pdfPath"`
	DateSigned  string   `json:"dateSigned,omitempty"`
	Status      string   `json:"status"`
	Warnings    []string `json:"warnings,omitempty"`
}

func clientIP(c *gin.Context) string {
	return service.ParseClientIP(c.GetHeader("X-Forwarded-For"), c.GetHeader("X-Real-IP"))
}

// bindSignRequest decodes a sign body, answering 413 when it exceeds the
// route's body limit and 400 when it is malformed.
func bindSignRequest(c *gin.Context, req any) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": "Request body too large",
			"code":  "payload_too_large",
		})
		return false
	}
	respondInvalid(c, "contractId and signatureData are required")
	return false
}

func newSignResponse(res *service.SignResult) SignResponse {
	return SignResponse{
		Success:     true,
		SignatureID: res.SignatureID,
		PDFPath:     res.PDFPath,
		DateSigned:  res.DateSigned,
		Status:      string(res.Status),
		Warnings:    res.Warnings,
	}
}

// ArtistSign records the artist's signature on a contract
func (h *SignatureHandler) ArtistSign(c *gin.Context) {
	var req ArtistSignRequest
	if !bindSignRequest(c, &req) {
		return
	}

	res, err := h.signing.SignAsArtist(c.Request.Context(), service.ArtistSignRequest{
		ContractID:    req.ContractID,
		SignatureData: req.SignatureData,
		DateSigned:    req.DateSigned,
		SignerName:    middleware.GetUsername(c),
		ClientIP:      clientIP(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, newSignResponse(res))
}

// AdminSign countersigns a contract and completes it
func (h *SignatureHandler) AdminSign(c *gin.Context) {
	var req AdminSignRequest
	if !bindSignRequest(c, &req) {
		return
	}

	res, err := h.signing.SignAsAdmin(c.Request.Context(), service.AdminSignRequest{
		ContractID:     req.ContractID,
		SignatureData:  req.SignatureData,
		RecipientEmail: req.RecipientEmail,
		RecipientName:  req.RecipientName,
		SignerName:     middleware.GetUsername(c),
		ClientIP:       clientIP(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, newSignResponse(res))
}
