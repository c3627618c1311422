package vm

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ossim/sim"
)

var _ = Describe("ProcessTable", func() {
	var table *ProcessTable

	BeforeEach(func() {
		table = NewProcessTable(2, 32, false)
	})

	It("should allocate the first unused slot", func() {
		now := sim.Time{Seconds: 3}

		slot, err := table.Allocate(10, now)

		Expect(err).NotTo(HaveOccurred())
		Expect(slot).To(Equal(0))

		p := table.Process(0)
		Expect(p.State).To(Equal(ProcessRunning))
		Expect(p.PID).To(Equal(PID(10)))
		Expect(p.Start).To(Equal(now))
		Expect(table.NumRunning()).To(Equal(1))
	})

	It("should fail with no capacity", func() {
		_, _ = table.Allocate(1, sim.Time{})
		_, _ = table.Allocate(2, sim.Time{})

		_, err := table.Allocate(3, sim.Time{})

		Expect(errors.Is(err, ErrNoCapacity)).To(BeTrue())
	})

	It("should find running processes by PID", func() {
		_, _ = table.Allocate(1, sim.Time{})
		_, _ = table.Allocate(2, sim.Time{})

		slot, found := table.FindRunning(2)
		Expect(found).To(BeTrue())
		Expect(slot).To(Equal(1))

		_, found = table.FindRunning(3)
		Expect(found).To(BeFalse())
	})

	It("should count accesses and faults", func() {
		slot, _ := table.Allocate(1, sim.Time{})

		table.RecordAccess(slot, true)
		table.RecordAccess(slot, false)
		table.RecordAccess(slot, false)

		p := table.Process(slot)
		Expect(p.Accesses).To(Equal(uint64(3)))
		Expect(p.Faults).To(Equal(uint64(1)))
	})

	It("should finalize a process", func() {
		slot, _ := table.Allocate(1, sim.Time{Seconds: 1})
		table.RecordAccess(slot, true)
		table.RecordAccess(slot, false)
		table.PageTable(slot).Map(0, 4)

		stats, err := table.Finalize(slot, sim.Time{Seconds: 2})

		Expect(err).NotTo(HaveOccurred())
		Expect(stats).To(Equal(ProcessStats{
			Slot:      0,
			PID:       1,
			Accesses:  2,
			Faults:    1,
			FaultRate: 0.5,
			Start:     sim.Time{Seconds: 1},
			End:       sim.Time{Seconds: 2},
		}))
		Expect(table.Process(slot).State).To(Equal(ProcessTerminated))
		Expect(table.PageTable(slot).NumResident()).To(Equal(0))
		Expect(table.NumRunning()).To(Equal(0))
	})

	It("should report a zero fault rate without accesses", func() {
		slot, _ := table.Allocate(1, sim.Time{})

		stats, _ := table.Finalize(slot, sim.Time{})

		Expect(stats.FaultRate).To(Equal(0.0))
	})

	It("should not finalize twice", func() {
		slot, _ := table.Allocate(1, sim.Time{})
		_, _ = table.Finalize(slot, sim.Time{})

		_, err := table.Finalize(slot, sim.Time{})

		Expect(errors.Is(err, ErrNotRunning)).To(BeTrue())
	})

	It("should not reuse terminated slots by default", func() {
		slot, _ := table.Allocate(1, sim.Time{})
		_, _ = table.Allocate(2, sim.Time{})
		_, _ = table.Finalize(slot, sim.Time{})

		_, err := table.Allocate(3, sim.Time{})

		Expect(errors.Is(err, ErrNoCapacity)).To(BeTrue())
	})

	It("should reuse terminated slots when recycling", func() {
		table = NewProcessTable(1, 32, true)
		slot, _ := table.Allocate(1, sim.Time{})
		table.RecordAccess(slot, true)
		_, _ = table.Finalize(slot, sim.Time{})

		slot, err := table.Allocate(2, sim.Time{Seconds: 4})

		Expect(err).NotTo(HaveOccurred())
		Expect(slot).To(Equal(0))
		p := table.Process(slot)
		Expect(p.PID).To(Equal(PID(2)))
		Expect(p.Accesses).To(BeZero())
		Expect(p.Faults).To(BeZero())
	})

	It("should revert an allocation", func() {
		slot, _ := table.Allocate(1, sim.Time{})

		table.Revert(slot)

		Expect(table.Process(slot).State).To(Equal(ProcessUnused))
		Expect(table.Process(slot).PID).To(Equal(NoPID))

		again, err := table.Allocate(2, sim.Time{})
		Expect(err).NotTo(HaveOccurred())
		Expect(again).To(Equal(slot))
	})

	It("should return deep copies", func() {
		slot, _ := table.Allocate(1, sim.Time{})
		table.PageTable(slot).Map(1, 1)

		procs := table.Processes()
		procs[slot].PageTable.Unmap(1)

		_, found := table.PageTable(slot).Lookup(1)
		Expect(found).To(BeTrue())
	})

	It("should print states", func() {
		Expect(ProcessRunning.String()).To(Equal("Running"))
		Expect(ProcessState(9).String()).To(Equal("ProcessState(9)"))
	})
})
