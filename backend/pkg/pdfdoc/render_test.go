package pdfdoc

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"
)

func pngDataURI(t *testing.T, w, h int, c color.Color) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

// oversizedPNG returns a tiny PNG whose header claims w x h pixels.
func oversizedPNG(t *testing.T, w, h uint32) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 1, 1))); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	raw := buf.Bytes()
	// 8 byte signature, then the IHDR chunk: length, type, data, crc.
	binary.BigEndian.PutUint32(raw[16:20], w)
	binary.BigEndian.PutUint32(raw[20:24], h)
	binary.BigEndian.PutUint32(raw[29:33], crc32.ChecksumIEEE(raw[12:29]))
	return raw
}

func testDocument(t *testing.T) Document {
	return Document{
		ContractID: "c1",
		Title:      "Spring Concert Agreement",
		Body:       "The performer agrees to appear at the spring concert.\nRehearsals are held weekly.",
		Slots: []Slot{
			{Label: "Artist Signature", SignerName: "soloist", ImageDataURI: pngDataURI(t, 1, 1, color.Black), DateSigned: "March 1, 2026"},
			{Label: "Administrator Signature", SignerName: "director", ImageDataURI: pngDataURI(t, 1, 1, color.RGBA{R: 200, A: 255}), DateSigned: "March 2, 2026"},
		},
		GeneratedAt: time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
	}
}

func TestRenderEmbedsBothSignatures(t *testing.T) {
	res, err := NewRenderer(Options{}).Render(testDocument(t))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	if !bytes.HasPrefix(res.Bytes, []byte("%PDF-")) {
		t.Fatal("Output is not a PDF")
	}
	if res.Images != 2 {
		t.Errorf("Expected 2 images, got %d", res.Images)
	}
	if n := bytes.Count(res.Bytes, []byte("/Subtype /Image")); n != 2 {
		t.Errorf("Expected 2 image XObjects, got %d", n)
	}
	if !bytes.Contains(res.Bytes, []byte("(Spring Concert Agreement)")) {
		t.Error("Expected title in text layer")
	}
	if !bytes.Contains(res.Bytes, []byte("(Date signed: March 2, 2026)")) {
		t.Error("Expected admin signing date in text layer")
	}
	if !bytes.Contains(res.Bytes, []byte("2026-03-02T12:00:00Z - contract c1")) {
		t.Error("Expected audit line in text layer")
	}
	if len(res.Warnings) != 0 {
		t.Errorf("Unexpected warnings: %v", res.Warnings)
	}
	if res.Pages != 1 {
		t.Errorf("Expected 1 page, got %d", res.Pages)
	}
}

func TestRenderPaginatesLongContracts(t *testing.T) {
	var lines []string
	for i := 1; i <= 300; i++ {
		lines = append(lines, fmt.Sprintf("Clause %d: the performer shall attend.", i))
	}
	doc := testDocument(t)
	doc.Body = strings.Join(lines, "\n")

	res, err := NewRenderer(Options{}).Render(doc)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	if res.Pages < 2 {
		t.Errorf("Expected multiple pages, got %d", res.Pages)
	}
	if !bytes.Contains(res.Bytes, []byte("(Clause 300: the performer shall attend.)")) {
		t.Error("Last clause was truncated")
	}
	if res.Images != 2 {
		t.Errorf("Expected 2 images, got %d", res.Images)
	}
}

func TestRenderInvalidImageUsesPlaceholder(t *testing.T) {
	doc := testDocument(t)
	doc.Slots[1].ImageDataURI = "data:image/png;base64,bm90IGFuIGltYWdl"

	res, err := NewRenderer(Options{}).Render(doc)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	if res.Images != 1 {
		t.Errorf("Expected 1 image, got %d", res.Images)
	}
	if len(res.Warnings) != 1 || !strings.HasPrefix(res.Warnings[0], "Administrator Signature") {
		t.Errorf("Expected one admin warning, got %v", res.Warnings)
	}
	if !bytes.Contains(res.Bytes, []byte(PlaceholderText)) {
		t.Error("Expected placeholder text")
	}
}

func TestRenderPendingSlot(t *testing.T) {
	doc := testDocument(t)
	doc.Slots[1].ImageDataURI = ""
	doc.Slots[1].DateSigned = ""

	res, err := NewRenderer(Options{}).Render(doc)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	if res.Images != 1 {
		t.Errorf("Expected 1 image, got %d", res.Images)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("Pending slot must not warn, got %v", res.Warnings)
	}
	if !bytes.Contains(res.Bytes, []byte(PendingText)) {
		t.Error("Expected pending text")
	}
}

func TestRenderCompressed(t *testing.T) {
	plain, err := NewRenderer(Options{}).Render(testDocument(t))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	packed, err := NewRenderer(Options{Compress: true}).Render(testDocument(t))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if bytes.Contains(packed.Bytes, []byte("(Spring Concert Agreement) Tj")) {
		t.Error("Expected compressed content streams")
	}
	if packed.Images != plain.Images {
		t.Errorf("Compression changed image count: %d vs %d", packed.Images, plain.Images)
	}
}

func TestDecodeDataURI(t *testing.T) {
	tests := []struct {
		name    string
		uri     string
		want    string
		wantErr bool
	}{
		{"png", "data:image/png;base64,aGVsbG8=", "hello", false},
		{"unpadded", "data:image/png;base64,aGVsbG8", "hello", false},
		{"jpeg", "data:image/jpeg;base64,aGVsbG8=", "hello", false},
		{"missing prefix", "aGVsbG8=", "", true},
		{"not base64 encoded", "data:image/png,hello", "", true},
		{"bad payload", "data:image/png;base64,!!!", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeDataURI(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if string(got) != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestNormalizeSignatureScalesAndFlattens(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 1200, 300))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}

	out, w, h, err := NormalizeSignature(buf.Bytes())
	if err != nil {
		t.Fatalf("NormalizeSignature: %v", err)
	}
	if w != 600 || h != 150 {
		t.Errorf("Expected 600x150, got %dx%d", w, h)
	}

	decoded, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("png.Decode: %v", err)
	}
	r, g, b, a := decoded.At(10, 10).RGBA()
	if a != 0xffff || r != 0xffff || g != 0xffff || b != 0xffff {
		t.Errorf("Expected transparent pixels flattened to white, got %v %v %v %v", r, g, b, a)
	}
}

func TestNormalizeSignatureRejectsGarbage(t *testing.T) {
	if _, _, _, err := NormalizeSignature([]byte("not an image")); err == nil {
		t.Error("Expected decode error")
	}
}

func TestNormalizeSignatureRejectsHugeDimensions(t *testing.T) {
	tests := []struct {
		name string
		w, h uint32
	}{
		{"wide", 12000, 10},
		{"tall", 10, 4001},
		{"both", 40000, 40000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, err := NormalizeSignature(oversizedPNG(t, tt.w, tt.h))
			if !errors.Is(err, ErrImageTooLarge) {
				t.Errorf("Expected ErrImageTooLarge, got %v", err)
			}
		})
	}
}

func TestRenderOversizedImageUsesPlaceholder(t *testing.T) {
	doc := testDocument(t)
	doc.Slots[0].ImageDataURI = "data:image/png;base64," + base64.StdEncoding.EncodeToString(oversizedPNG(t, 12000, 12000))

	res, err := NewRenderer(Options{}).Render(doc)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	if res.Images != 1 {
		t.Errorf("Expected 1 image, got %d", res.Images)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "exceed limit") {
		t.Errorf("Expected one size warning, got %v", res.Warnings)
	}
	if !bytes.Contains(res.Bytes, []byte(PlaceholderText)) {
		t.Error("Expected placeholder text")
	}
}

func TestFitWithin(t *testing.T) {
	tests := []struct {
		w, h, wantW, wantH int
	}{
		{1, 1, 1, 1},
		{600, 200, 600, 200},
		{1200, 200, 600, 100},
		{300, 800, 75, 200},
	}
	for _, tt := range tests {
		w, h := fitWithin(tt.w, tt.h, 600, 200)
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("fitWithin(%d,%d) = %dx%d, want %dx%d", tt.w, tt.h, w, h, tt.wantW, tt.wantH)
		}
	}
}
