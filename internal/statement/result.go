package statement

import "github.com/zombor/statement-lens/internal/extraction"

// RunMode names the two extraction execution strategies.
type RunMode string

const (
	// ModeAllPages is the single-call path taken when the selection is empty.
	ModeAllPages RunMode = "all_pages"
	// ModeSelectedPages is the sequential per-page path.
	ModeSelectedPages RunMode = "selected_pages"
)

// PageResult is the outcome for one page: rows and warnings on success, an
// error message on failure. The two are mutually exclusive.
type PageResult struct {
	Rows     []extraction.Row `json:"rows,omitempty"`
	Warnings []string         `json:"warnings,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// Failed reports whether the page's extraction call failed.
func (r PageResult) Failed() bool {
	return r.Error != ""
}

// AggregatedResult is the merged outcome of one run. In selected-pages mode
// Pages has exactly one entry per selected page; in all-pages mode Combined
// carries the backend's payload verbatim. Page entries are never merged
// with each other; reconciling rows across pages belongs to the review
// layer, not here.
type AggregatedResult struct {
	Mode     RunMode                        `json:"mode"`
	Pages    map[int]PageResult             `json:"pages,omitempty"`
	Combined *extraction.CombinedExtraction `json:"combined,omitempty"`
}
