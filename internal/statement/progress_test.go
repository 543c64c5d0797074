package statement

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ProgressTracker", func() {
	var tracker *ProgressTracker

	BeforeEach(func() {
		tracker = NewProgressTracker()
	})

	Describe("Begin", func() {
		It("creates a pending entry", func() {
			tracker.Begin(1)
			status, ok := tracker.Get(1)
			Expect(ok).To(BeTrue())
			Expect(status).To(Equal(StatusPending))
		})

		It("does not reopen a settled page", func() {
			tracker.Begin(1)
			tracker.Finish(1, StatusDone)
			tracker.Begin(1)
			status, _ := tracker.Get(1)
			Expect(status).To(Equal(StatusDone))
		})
	})

	Describe("Finish", func() {
		BeforeEach(func() {
			tracker.Begin(1)
		})

		It("moves a pending page to done", func() {
			tracker.Finish(1, StatusDone)
			status, _ := tracker.Get(1)
			Expect(status).To(Equal(StatusDone))
		})

		It("moves a pending page to failed", func() {
			tracker.Finish(1, StatusFailed)
			status, _ := tracker.Get(1)
			Expect(status).To(Equal(StatusFailed))
		})

		It("ignores a second terminal transition", func() {
			tracker.Finish(1, StatusFailed)
			tracker.Finish(1, StatusDone)
			status, _ := tracker.Get(1)
			Expect(status).To(Equal(StatusFailed))
		})

		It("refuses a non-terminal status", func() {
			tracker.Finish(1, StatusPending)
			status, _ := tracker.Get(1)
			Expect(status).To(Equal(StatusPending))
		})
	})

	Describe("Snapshot", func() {
		It("returns an independent copy", func() {
			tracker.Begin(1)
			snapshot := tracker.Snapshot()
			tracker.Finish(1, StatusDone)
			Expect(snapshot[1]).To(Equal(StatusPending))
		})

		It("covers every page touched so far", func() {
			tracker.Begin(1)
			tracker.Finish(1, StatusDone)
			tracker.Begin(2)
			Expect(tracker.Snapshot()).To(Equal(map[int]PageStatus{
				1: StatusDone,
				2: StatusPending,
			}))
		})
	})
})
