package statement

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zombor/statement-lens/internal/extraction"
)

// Orchestrator drives one extraction run over a session's page selection.
// Calls are issued strictly one at a time: sequencing bounds the load on
// the extraction backend to a single outstanding request and lets the UI
// attribute "in progress" to exactly one page. All progress and result
// updates for page N happen before the call for page N+1 starts.
type Orchestrator struct {
	extractor extraction.Extractor
	progress  *ProgressTracker
}

// NewOrchestrator creates an orchestrator writing progress to the given
// tracker. The tracker should be fresh for each run.
func NewOrchestrator(extractor extraction.Extractor, progress *ProgressTracker) *Orchestrator {
	return &Orchestrator{
		extractor: extractor,
		progress:  progress,
	}
}

// Run executes one extraction pass. The mode is chosen once, from whether
// the selection is empty at invocation time:
//
// Empty selection: a single all-pages call. Its payload becomes the entire
// result verbatim; any error ends the run with no partial result.
//
// Non-empty selection: one call per selected page, ascending. A page's
// failure is captured as that page's result entry and the run continues,
// so the returned result always covers every selected page.
func (o *Orchestrator) Run(ctx context.Context, req extraction.Request, selection *PageSelection) (*AggregatedResult, error) {
	if selection.IsEmpty() {
		return o.runAllPages(ctx, req)
	}
	return o.runSelectedPages(ctx, req, selection.Sorted())
}

func (o *Orchestrator) runAllPages(ctx context.Context, req extraction.Request) (*AggregatedResult, error) {
	combined, err := o.extractor.ExtractAll(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("extracting all pages: %w", err)
	}

	return &AggregatedResult{
		Mode:     ModeAllPages,
		Combined: combined,
	}, nil
}

func (o *Orchestrator) runSelectedPages(ctx context.Context, req extraction.Request, pages []int) (*AggregatedResult, error) {
	result := &AggregatedResult{
		Mode:  ModeSelectedPages,
		Pages: make(map[int]PageResult, len(pages)),
	}

	for _, page := range pages {
		o.progress.Begin(page)

		payload, err := o.extractor.ExtractPage(ctx, req, page)
		if err != nil {
			// One page's failure never aborts the run; it becomes data.
			slog.Warn("Page extraction failed",
				"session_id", req.SessionID,
				"page", page,
				"error", err,
			)
			result.Pages[page] = PageResult{Error: err.Error()}
			o.progress.Finish(page, StatusFailed)
			continue
		}

		result.Pages[page] = PageResult{
			Rows:     payload.Rows,
			Warnings: payload.Warnings,
		}
		o.progress.Finish(page, StatusDone)
	}

	return result, nil
}
