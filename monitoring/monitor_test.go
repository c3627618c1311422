package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/ossim/kernel"
	"github.com/sarchlab/ossim/mem/vm"
	"github.com/sarchlab/ossim/sim"
)

type sampleComponent struct {
	name    string
	Counter int
}

func (c *sampleComponent) Name() string {
	return c.name
}

func sampleSnapshot() kernel.Snapshot {
	pt := vm.NewPageTable(2)
	pt.Map(0, 1)

	return kernel.Snapshot{
		Time: sim.Time{Seconds: 2, Nanoseconds: 5},
		Frames: []vm.Frame{
			{Owner: vm.NoPID, Page: vm.NoPage},
			{Occupied: true, Owner: 1, Page: 0, Dirty: true},
		},
		Processes: []vm.Process{
			{Slot: 0, PID: 1, State: vm.ProcessRunning, PageTable: pt},
			{Slot: 1, PID: 2, State: vm.ProcessTerminated,
				PageTable: vm.NewPageTable(2)},
		},
		Launched: 2,
		Active:   1,
		Total:    10,
		Paused:   true,
	}
}

var _ = Describe("Monitor", func() {
	var (
		mockCtrl  *gomock.Controller
		simulator *MockSimulator
		m         *Monitor
		router    http.Handler
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		simulator = NewMockSimulator(mockCtrl)
		simulator.EXPECT().Name().Return("Kernel").AnyTimes()

		m = NewMonitor().WithLogger(discardLogger)
		m.RegisterSimulator(simulator)
		router = m.Router()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		return rec
	}

	It("should replace privileged ports with a random port", func() {
		Expect(m.WithPortNumber(80).portNumber).To(Equal(0))
		Expect(m.WithPortNumber(8080).portNumber).To(Equal(8080))
	})

	It("should pause and continue", func() {
		simulator.EXPECT().Pause()
		simulator.EXPECT().Continue()

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec,
			httptest.NewRequest(http.MethodPost, "/api/pause", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec,
			httptest.NewRequest(http.MethodPost, "/api/continue", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))
	})

	It("should not pause or continue on GET", func() {
		rec := get("/api/pause")
		Expect(rec.Code).To(Equal(http.StatusMethodNotAllowed))
		Expect(rec.Header().Get("Allow")).To(Equal(http.MethodPost))

		rec = get("/api/continue")
		Expect(rec.Code).To(Equal(http.StatusMethodNotAllowed))
	})

	It("should report the current time", func() {
		simulator.EXPECT().CurrentTime().
			Return(sim.Time{Seconds: 1, Nanoseconds: 500_000_000})

		rec := get("/api/now")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(MatchJSON(`{"now":1.5,"time":"1:500000000"}`))
	})

	It("should report the status", func() {
		simulator.EXPECT().Snapshot().Return(sampleSnapshot())

		rec := get("/api/status")

		Expect(rec.Body.String()).To(MatchJSON(`{
			"name": "Kernel",
			"time": "2:5",
			"paused": true,
			"launched": 2,
			"active": 1,
			"total": 10
		}`))
	})

	It("should list the frames", func() {
		simulator.EXPECT().Snapshot().Return(sampleSnapshot())

		rec := get("/api/frames")

		var frames []vm.Frame
		Expect(json.Unmarshal(rec.Body.Bytes(), &frames)).To(Succeed())
		Expect(frames).To(HaveLen(2))
		Expect(frames[1].Occupied).To(BeTrue())
		Expect(frames[1].Dirty).To(BeTrue())
	})

	It("should list the running processes", func() {
		simulator.EXPECT().Snapshot().Return(sampleSnapshot())

		rec := get("/api/processes")

		var procs []map[string]any
		Expect(json.Unmarshal(rec.Body.Bytes(), &procs)).To(Succeed())
		Expect(procs).To(HaveLen(1))
		Expect(procs[0]["PID"]).To(BeEquivalentTo(1))
		Expect(procs[0]["PageTable"]).To(Equal([]any{1.0, -1.0}))
	})

	It("should list all the processes", func() {
		simulator.EXPECT().Snapshot().Return(sampleSnapshot())

		rec := get("/api/processes?all=true")

		var procs []map[string]any
		Expect(json.Unmarshal(rec.Body.Bytes(), &procs)).To(Succeed())
		Expect(procs).To(HaveLen(2))
	})

	It("should list components", func() {
		m.RegisterComponent(&sampleComponent{name: "Comp"})

		rec := get("/api/list_components")

		Expect(rec.Body.String()).To(MatchJSON(`["Kernel","Comp"]`))
	})

	It("should serialize a component while the simulator is locked", func() {
		locked := false
		simulator.EXPECT().WithStateLocked(gomock.Any()).
			Do(func(f func()) {
				locked = true
				f()
			})
		m.RegisterComponent(&sampleComponent{name: "Comp", Counter: 3})

		rec := get("/api/component/Comp")

		Expect(locked).To(BeTrue())
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring(`"v":3`))
	})

	It("should not serialize a component outside the simulator lock", func() {
		simulator.EXPECT().WithStateLocked(gomock.Any())
		m.RegisterComponent(&sampleComponent{name: "Comp", Counter: 3})

		rec := get("/api/component/Comp")

		Expect(rec.Body.String()).NotTo(ContainSubstring("Counter"))
	})

	It("should serialize a field of a component", func() {
		simulator.EXPECT().WithStateLocked(gomock.Any()).
			Do(func(f func()) { f() })
		m.RegisterComponent(&sampleComponent{name: "Comp", Counter: 7})

		req := url.PathEscape(`{"comp_name":"Comp","field_name":"Counter"}`)
		rec := get("/api/field/" + req)

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring(`"v":7`))
	})

	It("should return 404 for unknown components", func() {
		rec := get("/api/component/Nobody")

		Expect(rec.Code).To(Equal(http.StatusNotFound))
	})

	It("should reject malformed field requests", func() {
		rec := get("/api/field/" + url.PathEscape("{not json"))

		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("should list progress bars", func() {
		bar := m.CreateProgressBar("Processes", 10)
		bar.IncrementInProgress(3)
		bar.MoveInProgressToFinished(1)

		rec := get("/api/progress")

		var bars []map[string]any
		Expect(json.Unmarshal(rec.Body.Bytes(), &bars)).To(Succeed())
		Expect(bars).To(HaveLen(1))
		Expect(bars[0]["name"]).To(Equal("Processes"))
		Expect(bars[0]["total"]).To(BeEquivalentTo(10))
		Expect(bars[0]["finished"]).To(BeEquivalentTo(1))
		Expect(bars[0]["in_progress"]).To(BeEquivalentTo(2))

		m.CompleteProgressBar(bar)

		rec = get("/api/progress")
		Expect(rec.Body.String()).To(MatchJSON(`[]`))
	})

	It("should report resource usage", func() {
		rec := get("/api/resource")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("memory_size"))
	})

	It("should serve the web page", func() {
		rec := get("/")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(HavePrefix("<!DOCTYPE html>"))
	})

	It("should start and stop the server", func() {
		addr, err := m.StartServer()
		Expect(err).NotTo(HaveOccurred())
		Expect(addr).To(HavePrefix("http://localhost:"))

		Expect(m.StopServer(context.Background())).To(Succeed())
	})

	It("should refuse to start without a simulator", func() {
		_, err := NewMonitor().StartServer()

		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("ProcessProgress", func() {
	It("should follow admissions and terminations", func() {
		bar := &ProgressBar{Total: 3}
		hook := NewProcessProgress(bar)

		hook.Func(sim.HookCtx{Pos: kernel.HookPosProcessAdmitted})
		hook.Func(sim.HookCtx{Pos: kernel.HookPosProcessAdmitted})
		hook.Func(sim.HookCtx{Pos: kernel.HookPosProcessTerminated})
		hook.Func(sim.HookCtx{Pos: kernel.HookPosSnapshot})

		Expect(bar.InProgress).To(Equal(uint64(1)))
		Expect(bar.Finished).To(Equal(uint64(1)))
	})
})
