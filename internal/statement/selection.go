package statement

import (
	"encoding/json"
	"sort"
)

// PageSelection is the set of page numbers the user wants processed. An
// empty selection means "process all saved pages", not "process nothing".
// The set itself is unordered; Sorted gives the processing order.
type PageSelection struct {
	pages map[int]struct{}
}

// NewPageSelection creates a selection containing the given pages.
func NewPageSelection(pages ...int) *PageSelection {
	s := &PageSelection{pages: make(map[int]struct{}, len(pages))}
	for _, p := range pages {
		s.pages[p] = struct{}{}
	}
	return s
}

// Toggle removes the page if present, adds it otherwise. No bounds check:
// the caller renders only valid page buttons.
func (s *PageSelection) Toggle(page int) {
	if s.pages == nil {
		s.pages = make(map[int]struct{})
	}
	if _, ok := s.pages[page]; ok {
		delete(s.pages, page)
		return
	}
	s.pages[page] = struct{}{}
}

// SelectAll replaces the contents with pages 1..pageCount.
func (s *PageSelection) SelectAll(pageCount int) {
	s.pages = make(map[int]struct{}, pageCount)
	for p := 1; p <= pageCount; p++ {
		s.pages[p] = struct{}{}
	}
}

// Clear empties the selection.
func (s *PageSelection) Clear() {
	s.pages = make(map[int]struct{})
}

// IsEmpty reports whether no pages are selected.
func (s *PageSelection) IsEmpty() bool {
	return len(s.pages) == 0
}

// Contains reports whether a page is selected.
func (s *PageSelection) Contains(page int) bool {
	_, ok := s.pages[page]
	return ok
}

// Len returns the number of selected pages.
func (s *PageSelection) Len() int {
	return len(s.pages)
}

// Sorted returns the selected pages in ascending order. This is the
// deterministic processing order for an extraction run, regardless of the
// order pages were toggled in.
func (s *PageSelection) Sorted() []int {
	pages := make([]int, 0, len(s.pages))
	for p := range s.pages {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return pages
}

// MarshalJSON writes the selection as a sorted array of page numbers.
func (s *PageSelection) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON reads the selection from an array of page numbers.
func (s *PageSelection) UnmarshalJSON(data []byte) error {
	var pages []int
	if err := json.Unmarshal(data, &pages); err != nil {
		return err
	}
	s.pages = make(map[int]struct{}, len(pages))
	for _, p := range pages {
		s.pages[p] = struct{}{}
	}
	return nil
}
