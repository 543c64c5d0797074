package statement

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/statement-lens/internal/extraction"
)

var _ = Describe("Orchestrator", func() {
	var (
		extractor    *mockExtractor
		progress     *ProgressTracker
		orchestrator *Orchestrator
		selection    *PageSelection
		req          extraction.Request
		result       *AggregatedResult
		err          error
	)

	BeforeEach(func() {
		extractor = newMockExtractor()
		progress = NewProgressTracker()
		orchestrator = NewOrchestrator(extractor, progress)
		selection = NewPageSelection()
		req = extraction.Request{
			SessionID:   "session-id-123",
			File:        []byte("fake pdf data"),
			ContentType: "application/pdf",
			Regions:     map[int]extraction.PageRegions{1: singleAmountRegions()},
			AmountType:  extraction.AmountSingle,
		}
	})

	JustBeforeEach(func() {
		result, err = orchestrator.Run(context.Background(), req, selection)
	})

	Describe("all-pages mode (empty selection)", func() {
		When("the single call succeeds", func() {
			BeforeEach(func() {
				extractor.combined = &extraction.CombinedExtraction{
					Rows: []extraction.Row{
						{Date: "2024-01-02", Description: "COFFEE SHOP", Amount: &extraction.Amount{Value: -4.5, Numeric: true}},
						{Date: "2024-01-03", Description: "PAYROLL", Amount: &extraction.Amount{Value: 2100, Numeric: true}},
						{Date: "2024-01-04", Description: "GROCERIES", Amount: &extraction.Amount{Value: -62.13, Numeric: true}},
					},
					Warnings: []string{},
				}
			})

			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("issues exactly one call", func() {
				Expect(extractor.allCalls).To(Equal(1))
				Expect(extractor.pageCalls).To(BeEmpty())
			})

			It("uses the payload verbatim as the whole result", func() {
				Expect(result.Mode).To(Equal(ModeAllPages))
				Expect(result.Combined).To(BeIdenticalTo(extractor.combined))
				Expect(result.Pages).To(BeNil())
			})

			It("tracks no per-page progress", func() {
				Expect(progress.Snapshot()).To(BeEmpty())
			})
		})

		When("the single call fails", func() {
			BeforeEach(func() {
				extractor.combinedErr = errors.New("backend unavailable")
			})

			It("surfaces the error", func() {
				Expect(err).To(MatchError(ContainSubstring("backend unavailable")))
			})

			It("produces no partial result", func() {
				Expect(result).To(BeNil())
			})
		})
	})

	Describe("selected-pages mode", func() {
		When("pages were toggled out of order", func() {
			BeforeEach(func() {
				selection.Toggle(1)
				selection.Toggle(3)
				selection.Toggle(2)
			})

			It("attempts them in ascending order", func() {
				Expect(extractor.pageCalls).To(Equal([]int{1, 2, 3}))
			})

			It("produces one entry per selected page", func() {
				Expect(result.Pages).To(HaveLen(3))
				Expect(result.Pages).To(HaveKey(1))
				Expect(result.Pages).To(HaveKey(2))
				Expect(result.Pages).To(HaveKey(3))
			})

			It("marks every page done", func() {
				Expect(progress.Snapshot()).To(Equal(map[int]PageStatus{
					1: StatusDone,
					2: StatusDone,
					3: StatusDone,
				}))
			})
		})

		When("one page's call rejects", func() {
			BeforeEach(func() {
				selection.Toggle(1)
				selection.Toggle(2)
				extractor.pageResults[1] = &extraction.PageExtraction{
					Rows:     []extraction.Row{{Date: "2024-01-02", Description: "COFFEE SHOP"}},
					Warnings: []string{"low contrast scan"},
				}
				extractor.pageErrs[2] = errors.New("timeout")
			})

			It("does not fail the run", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("keeps the successful page's payload", func() {
				Expect(result.Pages[1].Rows).To(HaveLen(1))
				Expect(result.Pages[1].Warnings).To(ConsistOf("low contrast scan"))
				Expect(result.Pages[1].Failed()).To(BeFalse())
			})

			It("captures the failure as that page's entry", func() {
				Expect(result.Pages[2].Error).To(Equal("timeout"))
				Expect(result.Pages[2].Failed()).To(BeTrue())
			})

			It("records the matching progress statuses", func() {
				Expect(progress.Snapshot()).To(Equal(map[int]PageStatus{
					1: StatusDone,
					2: StatusFailed,
				}))
			})
		})

		When("a failure happens mid-run", func() {
			BeforeEach(func() {
				selection.Toggle(1)
				selection.Toggle(2)
				selection.Toggle(3)
				extractor.pageErrs[2] = errors.New("boom")
			})

			It("still attempts the pages after the failure", func() {
				Expect(extractor.pageCalls).To(Equal([]int{1, 2, 3}))
			})

			It("brings every page to a terminal status", func() {
				for _, page := range []int{1, 2, 3} {
					status, ok := progress.Get(page)
					Expect(ok).To(BeTrue(), "page %d has no status", page)
					Expect(status.Terminal()).To(BeTrue(), "page %d is not terminal", page)
				}
			})
		})

		When("every page fails", func() {
			BeforeEach(func() {
				selection.Toggle(1)
				selection.Toggle(2)
				extractor.pageErrs[1] = errors.New("bad scan")
				extractor.pageErrs[2] = errors.New("bad scan")
			})

			It("still covers the whole selection", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(result.Pages).To(HaveLen(2))
				Expect(result.Pages[1].Failed()).To(BeTrue())
				Expect(result.Pages[2].Failed()).To(BeTrue())
			})
		})
	})
})
