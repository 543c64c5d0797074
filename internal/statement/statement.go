package statement

import (
	"time"

	"github.com/zombor/statement-lens/internal/extraction"
)

// WorkflowStep tracks how far a session has progressed. Steps only move
// forward: a failed region submission or extraction leaves the step alone.
type WorkflowStep string

const (
	StepFileChosen     WorkflowStep = "file_chosen"
	StepRegionsDefined WorkflowStep = "regions_defined"
	StepExtracted      WorkflowStep = "extracted"
)

// Session is one document's workflow instance. The ID is minted when the
// file is uploaded and correlates every later region and extraction call;
// it is never reused for a different file.
type Session struct {
	ID          string                         `json:"id"`
	Filename    string                         `json:"filename"`
	ContentType string                         `json:"content_type"`
	PageCount   int                            `json:"page_count"`
	Selection   *PageSelection                 `json:"selection"`
	Regions     map[int]extraction.PageRegions `json:"regions,omitempty"`
	AmountType  extraction.AmountType          `json:"amount_type,omitempty"`
	Step        WorkflowStep                   `json:"step"`
	CreatedAt   time.Time                      `json:"created_at"`
	UpdatedAt   time.Time                      `json:"updated_at"`
}
