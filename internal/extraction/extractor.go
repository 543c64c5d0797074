package extraction

import (
	"context"
	"fmt"
)

// Rect is a region rectangle in canvas-relative coordinates.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// PageRegions maps a field key to its rectangle on one page.
type PageRegions map[string]Rect

// Field keys accepted in a region submission.
const (
	FieldDate        = "date_region"
	FieldDescription = "description_region"
	FieldAmount      = "amount_region"
	FieldDebit       = "debit_region"
	FieldCredit      = "credit_region"
)

// AmountType tells the backend how to read the amount region(s).
type AmountType string

const (
	// AmountSingle means one amount column, signed.
	AmountSingle AmountType = "single"
	// AmountSplit means separate debit and credit columns.
	AmountSplit AmountType = "split"
)

// Valid reports whether t is a known amount type.
func (t AmountType) Valid() bool {
	return t == AmountSingle || t == AmountSplit
}

// allowedFields returns the field keys valid for the given amount type.
func allowedFields(t AmountType) map[string]bool {
	fields := map[string]bool{
		FieldDate:        true,
		FieldDescription: true,
	}
	if t == AmountSplit {
		fields[FieldDebit] = true
		fields[FieldCredit] = true
	} else {
		fields[FieldAmount] = true
	}
	return fields
}

// Validate checks that every field key is in the fixed set for the amount type.
func (r PageRegions) Validate(t AmountType) error {
	if len(r) == 0 {
		return fmt.Errorf("no regions defined")
	}
	allowed := allowedFields(t)
	for field := range r {
		if !allowed[field] {
			return fmt.Errorf("unknown region field %q for amount type %q", field, t)
		}
	}
	return nil
}

// Request carries everything the backend needs for one extraction call.
// Page selection is not part of the request; the caller passes the page
// number per call, or asks for all saved pages at once.
type Request struct {
	SessionID   string
	File        []byte
	ContentType string
	Regions     map[int]PageRegions
	AmountType  AmountType
}

// Row is one extracted transaction row. Every field is optional; the
// backend reports what it could read and flags the rest in Issues.
type Row struct {
	Date        string   `json:"date,omitempty"`
	Description string   `json:"description,omitempty"`
	Amount      *Amount  `json:"amount,omitempty"`
	Issues      []string `json:"issues,omitempty"`
}

// PageExtraction is the payload for one successfully extracted page.
type PageExtraction struct {
	Rows     []Row    `json:"rows"`
	Warnings []string `json:"warnings"`
}

// Extractor defines the interface to the extraction backend.
type Extractor interface {
	// ExtractPage extracts transaction rows from a single page.
	ExtractPage(ctx context.Context, req Request, page int) (*PageExtraction, error)
	// ExtractAll extracts every page that has saved regions in one call.
	ExtractAll(ctx context.Context, req Request) (*CombinedExtraction, error)
	// Close releases backend resources.
	Close() error
}
