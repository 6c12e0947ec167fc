// Package pdfdoc renders signed contract documents.
//
// Contract text flows across as many Letter pages as it needs; the signature
// block is kept together on one page. Every signature slot follows the same
// image policy: an image that cannot be decoded is replaced by a placeholder
// and reported in Result.Warnings.
package pdfdoc

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
)

const (
	margin       = 54.0
	lineHeight   = 15.0
	slotGap      = 24.0
	slotLabelH   = 14.0
	imageBoxW    = 180.0
	imageBoxH    = 60.0
	slotTextH    = 14.0
	signatureBkH = slotLabelH + 2 + imageBoxH + 4 + 4 + 2*slotTextH + 16

	PlaceholderText = "[signature image unavailable]"
	PendingText     = "Awaiting signature"
)

// Slot is one signature position on the document.
// A slot with empty ImageDataURI is drawn as pending.
type Slot struct {
	Label        string
	SignerName   string
	ImageDataURI string
	DateSigned   string
}

// Document is everything needed to render a contract.
type Document struct {
	ContractID  string
	Title       string
	Body        string
	Slots       []Slot
	GeneratedAt time.Time
}

// Result is a rendered PDF plus what went into it.
type Result struct {
	Bytes    []byte
	Pages    int
	Images   int
	Warnings []string
}

type Options struct {
	// Compress deflates page content streams.
	Compress bool
}

type Renderer struct {
	opts Options
}

func NewRenderer(opts Options) *Renderer {
	return &Renderer{opts: opts}
}

// Render lays out the document and returns the PDF bytes.
func (r *Renderer) Render(doc Document) (*Result, error) {
	if doc.GeneratedAt.IsZero() {
		doc.GeneratedAt = time.Now()
	}

	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetCompression(r.opts.Compress)
	pdf.SetCreationDate(doc.GeneratedAt)
	pdf.SetTitle(doc.Title, true)
	pdf.SetCreator("glee-sign", false)
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-margin + 18)
		pdf.SetFont("Helvetica", "", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	})

	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.MultiCell(0, 22, tr(doc.Title), "", "C", false)
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	if doc.Body != "" {
		pdf.MultiCell(0, lineHeight, tr(doc.Body), "", "L", false)
	}

	res := &Result{}
	if len(doc.Slots) > 0 {
		r.drawSignatures(pdf, tr, doc.Slots, res)
	}

	pdf.Ln(8)
	pdf.SetFont("Helvetica", "I", 8)
	audit := fmt.Sprintf("Document generated %s - contract %s", doc.GeneratedAt.UTC().Format(time.RFC3339), doc.ContractID)
	pdf.CellFormat(0, 10, tr(audit), "", 1, "L", false, 0, "")

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("failed to lay out pdf: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write pdf: %w", err)
	}
	res.Bytes = buf.Bytes()
	res.Pages = pdf.PageNo()
	return res, nil
}

func (r *Renderer) drawSignatures(pdf *fpdf.Fpdf, tr func(string) string, slots []Slot, res *Result) {
	pageW, pageH := pdf.GetPageSize()
	left, _, right, bottom := pdf.GetMargins()

	pdf.Ln(24)
	if pdf.GetY()+signatureBkH > pageH-bottom {
		pdf.AddPage()
	}

	n := float64(len(slots))
	slotW := (pageW - left - right - slotGap*(n-1)) / n
	top := pdf.GetY()

	for i, slot := range slots {
		x := left + float64(i)*(slotW+slotGap)
		r.drawSlot(pdf, tr, i, slot, x, top, slotW, res)
	}

	pdf.SetXY(left, top+signatureBkH)
}

func (r *Renderer) drawSlot(pdf *fpdf.Fpdf, tr func(string) string, idx int, slot Slot, x, y, w float64, res *Result) {
	pdf.SetXY(x, y)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(w, slotLabelH, tr(slot.Label), "", 0, "L", false, 0, "")

	imgY := y + slotLabelH + 2
	switch {
	case slot.ImageDataURI == "":
		pdf.SetXY(x, imgY+imageBoxH/2-slotTextH/2)
		pdf.SetFont("Helvetica", "I", 9)
		pdf.CellFormat(w, slotTextH, PendingText, "", 0, "L", false, 0, "")
	default:
		if err := r.embedImage(pdf, fmt.Sprintf("signature-%d", idx), slot.ImageDataURI, x, imgY, w); err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %v", slot.Label, err))
			pdf.SetXY(x, imgY+imageBoxH/2-slotTextH/2)
			pdf.SetFont("Helvetica", "I", 9)
			pdf.CellFormat(w, slotTextH, PlaceholderText, "", 0, "L", false, 0, "")
		} else {
			res.Images++
		}
	}

	lineY := imgY + imageBoxH + 4
	pdf.SetDrawColor(60, 60, 60)
	pdf.Line(x, lineY, x+w, lineY)

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetXY(x, lineY+4)
	pdf.CellFormat(w, slotTextH, tr(slot.SignerName), "", 0, "L", false, 0, "")
	pdf.SetXY(x, lineY+4+slotTextH)
	date := slot.DateSigned
	if date == "" {
		date = "-"
	}
	pdf.CellFormat(w, slotTextH, tr("Date signed: "+date), "", 0, "L", false, 0, "")
}

func (r *Renderer) embedImage(pdf *fpdf.Fpdf, name, uri string, x, y, slotW float64) error {
	raw, err := DecodeDataURI(uri)
	if err != nil {
		return err
	}
	normalized, pw, ph, err := NormalizeSignature(raw)
	if err != nil {
		return err
	}

	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(normalized))
	if pdf.Err() {
		err := pdf.Error()
		pdf.ClearError()
		return fmt.Errorf("failed to register signature image: %w", err)
	}

	boxW := min(imageBoxW, slotW)
	scale := min(boxW/float64(pw), imageBoxH/float64(ph))
	pdf.ImageOptions(name, x, y, float64(pw)*scale, float64(ph)*scale, false, opts, 0, "")
	return nil
}
