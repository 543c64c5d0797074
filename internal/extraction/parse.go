package extraction

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Amount preserves the backend's value as-is: a number when the backend
// produced one, the raw text when it could not decide. The ambiguity is
// resolved downstream, not here.
type Amount struct {
	Value   float64
	Raw     string
	Numeric bool
}

// UnmarshalJSON accepts either a JSON number or a string.
func (a *Amount) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		a.Value = f
		a.Numeric = true
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		a.Raw = s
		return nil
	}
	return fmt.Errorf("amount is neither number nor string: %s", string(data))
}

// MarshalJSON writes the amount back in the shape it arrived in.
func (a Amount) MarshalJSON() ([]byte, error) {
	if a.Numeric {
		return json.Marshal(a.Value)
	}
	return json.Marshal(a.Raw)
}

// CombinedExtraction is the payload of an all-pages call. Backends return
// one of two shapes: a map keyed by page number, or a single flat
// rows/warnings object. The shape is detected once here and tagged, so
// nothing downstream has to guess.
type CombinedExtraction struct {
	PageKeyed bool
	Pages     map[int]PageExtraction
	Rows      []Row
	Warnings  []string
}

// UnmarshalJSON detects the payload shape: page-keyed when every top-level
// key parses as a page number, flat rows/warnings otherwise.
func (c *CombinedExtraction) UnmarshalJSON(data []byte) error {
	var keyed map[string]json.RawMessage
	if err := json.Unmarshal(data, &keyed); err != nil {
		return fmt.Errorf("unmarshaling combined payload: %w", err)
	}

	pageKeyed := len(keyed) > 0
	for k := range keyed {
		if _, err := strconv.Atoi(k); err != nil {
			pageKeyed = false
			break
		}
	}

	if pageKeyed {
		pages := make(map[int]PageExtraction, len(keyed))
		for k, raw := range keyed {
			page, _ := strconv.Atoi(k)
			var pe PageExtraction
			if err := json.Unmarshal(raw, &pe); err != nil {
				return fmt.Errorf("unmarshaling page %d payload: %w", page, err)
			}
			pages[page] = pe
		}
		c.PageKeyed = true
		c.Pages = pages
		return nil
	}

	var flat PageExtraction
	if err := json.Unmarshal(data, &flat); err != nil {
		return fmt.Errorf("unmarshaling flat payload: %w", err)
	}
	c.PageKeyed = false
	c.Rows = flat.Rows
	c.Warnings = flat.Warnings
	return nil
}

// MarshalJSON writes the payload back in its original shape.
func (c CombinedExtraction) MarshalJSON() ([]byte, error) {
	if c.PageKeyed {
		return json.Marshal(c.Pages)
	}
	return json.Marshal(PageExtraction{Rows: c.Rows, Warnings: c.Warnings})
}

// extractJSONObject strips markdown code fences and surrounding prose,
// returning just the outermost JSON object.
func extractJSONObject(text string) (string, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return "", fmt.Errorf("no JSON object found in response")
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return "", fmt.Errorf("invalid JSON object in response")
	}
	return text[startIdx : endIdx+1], nil
}

// parsePageJSON parses a single-page response from the model.
func parsePageJSON(text string) (*PageExtraction, error) {
	obj, err := extractJSONObject(text)
	if err != nil {
		return nil, err
	}

	var pe PageExtraction
	if err := json.Unmarshal([]byte(obj), &pe); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	if pe.Rows == nil {
		pe.Rows = []Row{}
	}
	if pe.Warnings == nil {
		pe.Warnings = []string{}
	}
	return &pe, nil
}

// parseCombinedJSON parses an all-pages response from the model.
func parseCombinedJSON(text string) (*CombinedExtraction, error) {
	obj, err := extractJSONObject(text)
	if err != nil {
		return nil, err
	}

	var ce CombinedExtraction
	if err := json.Unmarshal([]byte(obj), &ce); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}
	return &ce, nil
}

// regionPages returns the pages that have saved regions, ascending.
func regionPages(regions map[int]PageRegions) []int {
	pages := make([]int, 0, len(regions))
	for p := range regions {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return pages
}

const promptPreamble = `You are analyzing a page from a scanned bank or credit card statement. The user has marked rectangular regions on the page image that tell you where the transaction table columns are. Coordinates are relative to the page image shown, with the origin at the top left.`

const promptRules = `Important:
- Dates must be in YYYY-MM-DD format when readable; otherwise copy the text as written and add an issue
- Amounts must be numbers when clearly numeric; if the text is ambiguous, return it as a string exactly as printed
- Every row on the page belongs in the output, even rows you are unsure about; flag doubts in that row's "issues"
- Do not include any text before or after the JSON
- Do not use markdown code blocks`

// describeRegions renders the marked rectangles for the prompt.
func describeRegions(regions PageRegions, amountType AmountType) string {
	var b strings.Builder
	fields := make([]string, 0, len(regions))
	for field := range regions {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		r := regions[field]
		fmt.Fprintf(&b, "- %s: x=%.1f y=%.1f w=%.1f h=%.1f\n", field, r.X, r.Y, r.W, r.H)
	}
	if amountType == AmountSplit {
		b.WriteString("The amount is split into separate debit and credit columns. Report debits as negative numbers and credits as positive.\n")
	} else {
		b.WriteString("There is a single amount column.\n")
	}
	return b.String()
}

// pagePrompt builds the instruction for a one-page extraction call.
func pagePrompt(regions PageRegions, amountType AmountType) string {
	var b strings.Builder
	b.WriteString(promptPreamble)
	b.WriteString("\n\nMarked regions:\n")
	b.WriteString(describeRegions(regions, amountType))
	b.WriteString(`
Read every transaction row that intersects the marked regions and return ONLY valid JSON in this exact format:
{
  "rows": [{"date": "YYYY-MM-DD", "description": "...", "amount": 0.00, "issues": []}],
  "warnings": []
}

`)
	b.WriteString(promptRules)
	return b.String()
}

// combinedPrompt builds the instruction for an all-pages extraction call.
// The page images are attached in the same order as pages.
func combinedPrompt(req Request, pages []int) string {
	var b strings.Builder
	b.WriteString(promptPreamble)
	b.WriteString("\n\nYou are given several page images. In order, they are pages: ")
	for i, p := range pages {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.Itoa(p))
	}
	b.WriteString(".\n")
	for _, p := range pages {
		if regions, ok := req.Regions[p]; ok {
			fmt.Fprintf(&b, "\nMarked regions on page %d:\n", p)
			b.WriteString(describeRegions(regions, req.AmountType))
		}
	}
	b.WriteString(`
Read every transaction row on every page and return ONLY valid JSON keyed by page number, in this exact format:
{
  "1": {"rows": [{"date": "YYYY-MM-DD", "description": "...", "amount": 0.00, "issues": []}], "warnings": []}
}

`)
	b.WriteString(promptRules)
	return b.String()
}
