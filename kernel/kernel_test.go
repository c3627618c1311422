package kernel

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/ossim/comm"
	"github.com/sarchlab/ossim/mem/vm"
	"github.com/sarchlab/ossim/mem/vm/mmu"
	"github.com/sarchlab/ossim/sim"
)

func smallConfig() Config {
	c := DefaultConfig()
	c.TotalProcesses = 3
	c.MaxConcurrent = 2
	c.MaxProcesses = 2
	c.NumFrames = 4
	c.LaunchInterval = 1000
	c.ChannelCapacity = 8

	return c
}

var _ = Describe("Kernel", func() {
	var (
		ctx      context.Context
		mockCtrl *gomock.Controller
		spawner  *MockSpawner
		channel  *comm.Channel
		k        *Kernel
		eps      map[vm.PID]*comm.Endpoint
		events   []sim.HookCtx
	)

	build := func(config Config) {
		channel = comm.NewChannel(config.ChannelCapacity)
		k = MakeBuilder().
			WithConfig(config).
			WithSpawner(spawner).
			WithChannel(channel).
			WithLogger(discardLogger).
			Build("Kernel")
		k.AcceptHook(sim.HookFunc(func(ctx sim.HookCtx) {
			events = append(events, ctx)
		}))
	}

	expectSpawn := func(slot int, pid vm.PID) {
		spawner.EXPECT().
			Spawn(gomock.Any(), slot, pid, gomock.Any()).
			DoAndReturn(func(
				_ context.Context, _ int, pid vm.PID, ep *comm.Endpoint,
			) error {
				eps[pid] = ep
				return nil
			})
	}

	positions := func() []*sim.HookPos {
		var pos []*sim.HookPos
		for _, e := range events {
			pos = append(pos, e.Pos)
		}
		return pos
	}

	BeforeEach(func() {
		ctx = context.Background()
		mockCtrl = gomock.NewController(GinkgoT())
		spawner = NewMockSpawner(mockCtrl)
		eps = make(map[vm.PID]*comm.Endpoint)
		events = nil
		build(smallConfig())
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should panic without a spawner", func() {
		Expect(func() { MakeBuilder().Build("Kernel") }).To(Panic())
	})

	It("should panic with an invalid config", func() {
		c := smallConfig()
		c.NumFrames = 0

		Expect(func() {
			MakeBuilder().WithConfig(c).WithSpawner(spawner).Build("Kernel")
		}).To(Panic())
	})

	It("should build the MMU", func() {
		Expect(k.MMU().Name()).To(Equal("Kernel.MMU"))
		Expect(k.MMU().PageSize()).To(Equal(uint32(mmu.DefaultPageSize)))
		Expect(k.Name()).To(Equal("Kernel"))
		Expect(k.Config().TotalProcesses).To(Equal(3))
	})

	Context("admission", func() {
		It("should admit the first process at once", func() {
			expectSpawn(0, 1)

			k.admit(ctx)

			Expect(k.launched).To(Equal(1))
			Expect(k.active).To(Equal(1))
			Expect(k.procs.Process(0).State).To(Equal(vm.ProcessRunning))
			Expect(channel.NumAttached()).To(Equal(1))
			Expect(positions()).To(Equal([]*sim.HookPos{HookPosProcessAdmitted}))
			Expect(events[0].Item).To(Equal(AdmissionEvent{Slot: 0, PID: 1}))
		})

		It("should pace the admissions", func() {
			expectSpawn(0, 1)
			k.admit(ctx)

			k.admit(ctx)
			k.clock.Advance(999)
			k.admit(ctx)
			Expect(k.launched).To(Equal(1))

			expectSpawn(1, 2)
			k.clock.Advance(1)
			k.admit(ctx)
			Expect(k.launched).To(Equal(2))
		})

		It("should pace the admissions across a second boundary", func() {
			c := smallConfig()
			c.LaunchInterval = 300_000_000
			build(c)

			k.clock.Advance(900_000_000)
			expectSpawn(0, 1)
			k.admit(ctx)

			k.clock.Advance(200_000_000)
			k.admit(ctx)
			Expect(k.launched).To(Equal(1))

			expectSpawn(1, 2)
			k.clock.Advance(100_000_000)
			k.admit(ctx)
			Expect(k.launched).To(Equal(2))
		})

		It("should respect the concurrency limit", func() {
			c := smallConfig()
			c.MaxConcurrent = 1
			build(c)

			expectSpawn(0, 1)
			k.admit(ctx)
			k.clock.Advance(10_000)
			k.admit(ctx)

			Expect(k.active).To(Equal(1))
		})

		It("should stop admitting after the total", func() {
			c := smallConfig()
			c.TotalProcesses = 1
			build(c)

			expectSpawn(0, 1)
			k.admit(ctx)
			k.clock.Advance(10_000)
			k.admit(ctx)

			Expect(k.launched).To(Equal(1))
		})

		It("should revert the slot if the spawn fails", func() {
			spawner.EXPECT().
				Spawn(gomock.Any(), 0, vm.PID(1), gomock.Any()).
				Return(errors.New("no worker"))

			k.admit(ctx)

			Expect(k.launched).To(BeZero())
			Expect(k.active).To(BeZero())
			Expect(k.procs.Process(0).State).To(Equal(vm.ProcessUnused))
			Expect(channel.NumAttached()).To(BeZero())
			Expect(events).To(BeEmpty())

			expectSpawn(0, 1)
			k.admit(ctx)
			Expect(k.launched).To(Equal(1))
		})

		It("should not reuse slots of terminated processes", func() {
			c := smallConfig()
			c.MaxProcesses = 1
			c.MaxConcurrent = 1
			build(c)

			expectSpawn(0, 1)
			k.admit(ctx)
			Expect(eps[1].Terminate(ctx)).To(Succeed())
			k.drain()
			k.clock.Advance(10_000)

			k.admit(ctx)

			Expect(k.launched).To(Equal(1))
			Expect(k.active).To(BeZero())
		})

		It("should reuse slots when recycling", func() {
			c := smallConfig()
			c.MaxProcesses = 1
			c.MaxConcurrent = 1
			c.RecycleSlots = true
			build(c)

			expectSpawn(0, 1)
			k.admit(ctx)
			Expect(eps[1].Terminate(ctx)).To(Succeed())
			k.drain()
			k.clock.Advance(10_000)

			expectSpawn(0, 2)
			k.admit(ctx)

			Expect(k.launched).To(Equal(2))
			Expect(k.procs.Process(0).PID).To(Equal(vm.PID(2)))
		})
	})

	Context("with a running process", func() {
		BeforeEach(func() {
			expectSpawn(0, 1)
			k.admit(ctx)
			events = nil
		})

		It("should do nothing without a request", func() {
			k.drain()

			Expect(events).To(BeEmpty())
		})

		It("should service a memory request", func() {
			Expect(eps[1].Send(ctx, 2*1024+5, true)).To(Succeed())

			k.drain()

			resp, err := eps[1].Recv(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp).To(Equal(comm.Response{
				PID: 1, Address: 2*1024 + 5, IsWrite: true, Frame: 0,
			}))

			f := k.frames.Frame(0)
			Expect(f.Owner).To(Equal(vm.PID(1)))
			Expect(f.Page).To(Equal(2))
			Expect(f.Dirty).To(BeTrue())

			Expect(positions()).To(Equal([]*sim.HookPos{HookPosMemoryAccess}))
			e := events[0].Item.(AccessEvent)
			Expect(e.Translation.Hit).To(BeFalse())
			Expect(e.Time).To(Equal(sim.Time{}))
		})

		It("should answer a bad request with an error", func() {
			Expect(eps[1].Send(ctx, 32*1024, false)).To(Succeed())

			k.drain()

			resp, err := eps[1].Recv(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(errors.Is(resp.Err, mmu.ErrAddressOutOfRange)).To(BeTrue())
			Expect(k.clock.CurrentTime()).To(Equal(sim.Time{}))
		})

		It("should drop messages from unknown processes", func() {
			stranger, err := channel.Attach(99)
			Expect(err).NotTo(HaveOccurred())
			Expect(stranger.Send(ctx, 0, false)).To(Succeed())

			k.drain()

			Expect(k.dropped).To(Equal(uint64(1)))
			Expect(positions()).To(Equal([]*sim.HookPos{HookPosMessageDropped}))
			Expect(events[0].Item.(comm.Request).PID).To(Equal(vm.PID(99)))
			Expect(k.frames.NumOccupied()).To(BeZero())
		})

		It("should terminate a process", func() {
			Expect(eps[1].Send(ctx, 0, false)).To(Succeed())
			k.drain()
			_, _ = eps[1].Recv(ctx)
			Expect(k.frames.NumOccupied()).To(Equal(1))

			Expect(eps[1].Terminate(ctx)).To(Succeed())
			k.drain()

			Expect(k.active).To(BeZero())
			Expect(k.frames.NumOccupied()).To(BeZero())
			Expect(channel.NumAttached()).To(BeZero())
			Expect(k.finishedAccesses).To(Equal(uint64(1)))

			last := events[len(events)-1]
			Expect(last.Pos).To(Equal(HookPosProcessTerminated))
			stats := last.Item.(vm.ProcessStats)
			Expect(stats.PID).To(Equal(vm.PID(1)))
			Expect(stats.Accesses).To(Equal(uint64(1)))
			Expect(stats.Faults).To(Equal(uint64(1)))
			Expect(stats.FaultRate).To(Equal(1.0))
		})
	})

	Context("snapshots", func() {
		It("should take one snapshot per simulated second", func() {
			k.snapshotIfNewSecond()
			Expect(events).To(BeEmpty())

			k.clock.Advance(1_000_000_000)
			k.snapshotIfNewSecond()
			k.clock.Advance(500_000_000)
			k.snapshotIfNewSecond()

			Expect(positions()).To(Equal([]*sim.HookPos{HookPosSnapshot}))

			k.clock.Advance(500_000_000)
			k.snapshotIfNewSecond()

			Expect(positions()).To(HaveLen(2))
			s := events[1].Item.(Snapshot)
			Expect(s.Time).To(Equal(sim.Time{Seconds: 2}))
			Expect(s.Frames).To(HaveLen(4))
			Expect(s.Processes).To(HaveLen(2))
			Expect(s.Total).To(Equal(3))
		})

		It("should give a copy of the state", func() {
			expectSpawn(0, 1)
			k.admit(ctx)

			s := k.Snapshot()

			Expect(s.Launched).To(Equal(1))
			Expect(s.Active).To(Equal(1))
			Expect(s.Processes[0].PID).To(Equal(vm.PID(1)))
			Expect(s.Paused).To(BeFalse())
		})
	})

	It("should pause and continue", func() {
		Expect(k.IsPaused()).To(BeFalse())

		k.Pause()
		k.Pause()
		Expect(k.IsPaused()).To(BeTrue())

		k.Continue()
		k.Continue()
		Expect(k.IsPaused()).To(BeFalse())
	})

	It("should hold the state between iterations for a reader", func() {
		called := false

		k.WithStateLocked(func() {
			called = true
			Expect(k.stateLock.TryLock()).To(BeFalse())
			Expect(k.pauseLock.TryLock()).To(BeFalse())
		})

		Expect(called).To(BeTrue())
		Expect(k.stateLock.TryLock()).To(BeTrue())
		k.stateLock.Unlock()
	})
})
