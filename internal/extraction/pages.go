package extraction

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// normalizeContentType lowercases and trims a MIME type, defaulting to JPEG.
func normalizeContentType(contentType string) string {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return mimeType
}

// PageCount returns the number of pages in an uploaded document. PDFs are
// opened with MuPDF; single images count as one page. Undecodable uploads
// fail here so the session is never created with an unusable file.
func PageCount(data []byte, contentType string) (int, error) {
	mimeType := normalizeContentType(contentType)

	if mimeType == "application/pdf" {
		doc, err := fitz.NewFromMemory(data)
		if err != nil {
			return 0, fmt.Errorf("opening PDF: %w", err)
		}
		defer doc.Close()
		return doc.NumPage(), nil
	}

	if isHEICFormat(data) || isHEICMimeType(mimeType) {
		if _, err := heic.DecodeConfig(bytes.NewReader(data)); err != nil {
			return 0, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
		return 1, nil
	}

	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return 0, fmt.Errorf("unsupported document format. Supported formats: PDF, JPEG, PNG, GIF, HEIC, HEIF. Error: %w", err)
	}
	return 1, nil
}

// renderPage renders one page of the document as PNG. Pages are numbered
// from 1. Single images only have page 1.
func renderPage(data []byte, contentType string, page int) ([]byte, error) {
	if page < 1 {
		return nil, fmt.Errorf("page number must be positive, got %d", page)
	}
	mimeType := normalizeContentType(contentType)

	if mimeType == "application/pdf" {
		return pdfPageImage(data, page)
	}

	if page != 1 {
		return nil, fmt.Errorf("page %d out of range for a single image", page)
	}
	return imageToPNG(data, mimeType)
}

// pdfPageImage renders one PDF page to PNG.
func pdfPageImage(pdfData []byte, page int) ([]byte, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	if page > doc.NumPage() {
		return nil, fmt.Errorf("page %d out of range, document has %d pages", page, doc.NumPage())
	}

	// go-fitz pages are zero-indexed
	img, err := doc.Image(page - 1)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page %d: %w", page, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// imageToPNG converts any supported image format to PNG.
func imageToPNG(imageData []byte, mimeType string) ([]byte, error) {
	var img image.Image
	var err error

	// HEIC/HEIF (common on iPhones) is not covered by the standard image package
	if isHEICFormat(imageData) || isHEICMimeType(mimeType) {
		img, err = heic.Decode(bytes.NewReader(imageData))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
	} else {
		img, _, err = image.Decode(bytes.NewReader(imageData))
		if err != nil {
			if strings.Contains(err.Error(), "unknown format") || strings.Contains(err.Error(), "unsupported") {
				return nil, fmt.Errorf("unsupported image format. Supported formats: JPEG, PNG, GIF, HEIC, HEIF, PDF. Error: %w", err)
			}
			return nil, fmt.Errorf("decoding image: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// isHEICFormat checks the ftyp box for HEIC/HEIF brands.
func isHEICFormat(data []byte) bool {
	if len(data) < 12 {
		return false
	}
	if string(data[4:8]) == "ftyp" {
		brand := string(data[8:12])
		if brand == "heic" || brand == "heif" || brand == "mif1" || brand == "msf1" {
			return true
		}
	}
	return false
}

// isHEICMimeType checks if the MIME type indicates HEIC/HEIF format.
func isHEICMimeType(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	return mimeType == "image/heic" || mimeType == "image/heif" ||
		strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}
