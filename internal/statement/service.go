package statement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/statement-lens/internal/extraction"
)

// ErrRunSuperseded is returned when a newer extraction run replaced this
// one before it could commit; the stale run's result is discarded.
var ErrRunSuperseded = errors.New("extraction run superseded by a newer run")

// ErrRegionsNotSubmitted is returned when a run is requested before the
// session's region batch has been accepted.
var ErrRegionsNotSubmitted = errors.New("regions have not been submitted")

// IDGenerator generates session identifiers
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// PageCounter counts the pages of an uploaded document
type PageCounter interface {
	PageCount(data []byte, contentType string) (int, error)
}

// uuidGenerator mints opaque session identifiers
type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// documentPageCounter counts pages by opening the document
type documentPageCounter struct{}

func (documentPageCounter) PageCount(data []byte, contentType string) (int, error) {
	return extraction.PageCount(data, contentType)
}

// activeRun is the live state of one extraction run. Installing a new
// activeRun for a session supersedes the previous one: the old goroutine
// keeps writing to its own tracker, which nothing reads anymore, and its
// commit is refused by the generation check.
type activeRun struct {
	generation int
	progress   *ProgressTracker
}

// Service owns the session workflow: upload, selection, region
// submission, and extraction runs.
type Service struct {
	db          DB
	storage     Storage
	extractor   extraction.Extractor
	idGenerator IDGenerator
	timeSource  TimeSource
	pageCounter PageCounter

	mu          sync.Mutex
	runs        map[string]*activeRun
	generations map[string]int
}

// NewService creates a new Service with default ID generator, time source
// and page counter.
func NewService(db DB, extractor extraction.Extractor, storage Storage) *Service {
	return NewServiceWithDeps(db, extractor, storage, &uuidGenerator{}, &defaultTimeSource{}, documentPageCounter{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing.
func NewServiceWithDeps(db DB, extractor extraction.Extractor, storage Storage, idGen IDGenerator, timeSrc TimeSource, pageCounter PageCounter) *Service {
	return &Service{
		db:          db,
		storage:     storage,
		extractor:   extractor,
		idGenerator: idGen,
		timeSource:  timeSrc,
		pageCounter: pageCounter,
		runs:        make(map[string]*activeRun),
		generations: make(map[string]int),
	}
}

// sanitizeFilename cleans up a filename by removing special characters and
// truncating length
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	reg := regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	base = reg.ReplaceAllString(base, "")

	reg = regexp.MustCompile(`\s+`)
	base = reg.ReplaceAllString(base, " ")

	base = strings.TrimSpace(base)

	maxLen := 50
	if len(base) > maxLen {
		base = base[:maxLen]
	}

	if base == "" {
		base = "statement"
	}

	return base + ext
}

// CreateSession mints a session for an uploaded document. The page count
// is read from the file and the selection is seeded to page 1.
func (s *Service) CreateSession(filename string, data []byte, contentType string) (*Session, error) {
	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	pageCount, err := s.pageCounter.PageCount(data, contentType)
	if err != nil {
		return nil, fmt.Errorf("counting pages: %w", err)
	}

	cleanFilename := sanitizeFilename(filename)

	savedPath, err := s.storage.Save(fmt.Sprintf("%s_%s", id, cleanFilename), data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}

	session := &Session{
		ID:          id,
		Filename:    savedPath,
		ContentType: contentType,
		PageCount:   pageCount,
		Selection:   NewPageSelection(1),
		Step:        StepFileChosen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.db.SaveSession(session); err != nil {
		// Clean up file if database save fails
		s.storage.Delete(savedPath)
		return nil, fmt.Errorf("saving session to database: %w", err)
	}

	return session, nil
}

// GetSession retrieves a session by ID.
func (s *Service) GetSession(id string) (*Session, error) {
	session, err := s.db.GetSession(id)
	if err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}
	return session, nil
}

// ListSessions returns all sessions.
func (s *Service) ListSessions() ([]*Session, error) {
	sessions, err := s.db.ListSessions()
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	return sessions, nil
}

// GetSessionFile retrieves the uploaded document for a session.
func (s *Service) GetSessionFile(id string) ([]byte, string, error) {
	session, err := s.db.GetSession(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting session: %w", err)
	}

	data, err := s.storage.Get(session.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("getting session file: %w", err)
	}

	return data, session.ContentType, nil
}

// DeleteSession removes a session, its file and its stored result.
func (s *Service) DeleteSession(id string) error {
	session, err := s.db.GetSession(id)
	if err != nil {
		return fmt.Errorf("getting session for deletion: %w", err)
	}

	if err := s.storage.Delete(session.Filename); err != nil {
		// Log error but continue with database deletion
		slog.Warn("Failed to delete file", "filename", session.Filename, "error", err)
	}

	if err := s.db.DeleteResult(id); err != nil {
		slog.Warn("Failed to delete result", "session_id", id, "error", err)
	}

	if err := s.db.DeleteSession(id); err != nil {
		return fmt.Errorf("deleting session from database: %w", err)
	}

	s.mu.Lock()
	delete(s.runs, id)
	delete(s.generations, id)
	s.mu.Unlock()

	return nil
}

// ToggleSelection adds or removes one page from the session's selection.
func (s *Service) ToggleSelection(id string, page int) (*Session, error) {
	return s.updateSelection(id, func(session *Session) {
		session.Selection.Toggle(page)
	})
}

// SelectAllPages fills the selection with every page of the document.
func (s *Service) SelectAllPages(id string) (*Session, error) {
	return s.updateSelection(id, func(session *Session) {
		session.Selection.SelectAll(session.PageCount)
	})
}

// ClearSelection empties the selection, which switches the next run to the
// all-saved-pages mode.
func (s *Service) ClearSelection(id string) (*Session, error) {
	return s.updateSelection(id, func(session *Session) {
		session.Selection.Clear()
	})
}

func (s *Service) updateSelection(id string, mutate func(*Session)) (*Session, error) {
	session, err := s.db.GetSession(id)
	if err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}

	if session.Selection == nil {
		session.Selection = NewPageSelection()
	}
	mutate(session)
	session.UpdatedAt = s.timeSource.Now()

	if err := s.db.SaveSession(session); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}
	return session, nil
}

// SubmitRegions stores one batch of region definitions for the session.
// The batch fully replaces any previously submitted definitions. The
// workflow only advances to the extraction-ready step when the save
// succeeds; a failed submission leaves the session where it was, and retry
// is the caller's decision.
func (s *Service) SubmitRegions(id string, regions map[int]extraction.PageRegions, amountType extraction.AmountType) (*Session, error) {
	session, err := s.db.GetSession(id)
	if err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}

	if !amountType.Valid() {
		return nil, fmt.Errorf("invalid amount type %q", amountType)
	}
	if len(regions) == 0 {
		return nil, fmt.Errorf("at least one page of regions is required")
	}
	for page, pageRegions := range regions {
		if page < 1 || page > session.PageCount {
			return nil, fmt.Errorf("page %d out of range, document has %d pages", page, session.PageCount)
		}
		if err := pageRegions.Validate(amountType); err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
	}

	session.Regions = regions
	session.AmountType = amountType
	if session.Step == StepFileChosen {
		session.Step = StepRegionsDefined
	}
	session.UpdatedAt = s.timeSource.Now()

	if err := s.db.SaveSession(session); err != nil {
		return nil, fmt.Errorf("saving regions: %w", err)
	}

	return session, nil
}

// RunExtraction executes one extraction run for the session and persists
// the aggregated result. Starting a run while one is in flight supersedes
// the older run: its progress stops being visible and its result is
// discarded at commit time.
func (s *Service) RunExtraction(ctx context.Context, id string) (*AggregatedResult, error) {
	session, err := s.db.GetSession(id)
	if err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}
	if session.Step == StepFileChosen {
		return nil, fmt.Errorf("%w for session %s", ErrRegionsNotSubmitted, id)
	}
	if session.Selection == nil {
		session.Selection = NewPageSelection()
	}

	file, err := s.storage.Get(session.Filename)
	if err != nil {
		return nil, fmt.Errorf("getting session file: %w", err)
	}

	s.mu.Lock()
	s.generations[id]++
	generation := s.generations[id]
	progress := NewProgressTracker()
	s.runs[id] = &activeRun{generation: generation, progress: progress}
	s.mu.Unlock()

	req := extraction.Request{
		SessionID:   session.ID,
		File:        file,
		ContentType: session.ContentType,
		Regions:     session.Regions,
		AmountType:  session.AmountType,
	}

	orchestrator := NewOrchestrator(s.extractor, progress)
	result, err := orchestrator.Run(ctx, req, session.Selection)
	if err != nil {
		s.abortRun(id, generation)
		return nil, err
	}

	return s.commitRun(id, generation, result)
}

// abortRun removes the run's live state if it is still the current run, so
// a run that produced nothing doesn't linger in the progress endpoint.
func (s *Service) abortRun(id string, generation int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run, ok := s.runs[id]; ok && run.generation == generation {
		delete(s.runs, id)
	}
}

// commitRun persists the result and advances the session step. The
// generation re-check and the writes share one critical section: a stale
// run cannot slip its commit between a newer run's check and writes. The
// session is re-fetched here because selection or region edits made while
// the run was in flight must survive the commit.
func (s *Service) commitRun(id string, generation int, result *AggregatedResult) (*AggregatedResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generations[id] != generation {
		return nil, ErrRunSuperseded
	}

	session, err := s.db.GetSession(id)
	if err != nil {
		return nil, fmt.Errorf("getting session for commit: %w", err)
	}

	if err := s.db.SaveResult(id, result); err != nil {
		return nil, fmt.Errorf("saving extraction result: %w", err)
	}

	session.Step = StepExtracted
	session.UpdatedAt = s.timeSource.Now()
	if err := s.db.SaveSession(session); err != nil {
		return nil, fmt.Errorf("updating session: %w", err)
	}

	return result, nil
}

// Progress returns a snapshot of the current run's per-page status map,
// and whether a run has been started for the session.
func (s *Service) Progress(id string) (map[int]PageStatus, bool) {
	s.mu.Lock()
	run, ok := s.runs[id]
	s.mu.Unlock()
	if !ok {
		return nil, false
	}
	return run.progress.Snapshot(), true
}

// LastResult returns the most recently persisted run for the session.
func (s *Service) LastResult(id string) (*AggregatedResult, error) {
	result, err := s.db.GetResult(id)
	if err != nil {
		return nil, fmt.Errorf("getting result: %w", err)
	}
	return result, nil
}
