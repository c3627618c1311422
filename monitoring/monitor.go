// Package monitoring turns a running simulation into a web server that can be
// inspected and controlled from a browser.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/sarchlab/ossim/kernel"
	"github.com/sarchlab/ossim/mem/vm"
	"github.com/sarchlab/ossim/monitoring/web"
	"github.com/sarchlab/ossim/sim"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"
)

// Simulator is what the monitor observes and controls.
type Simulator interface {
	sim.Named
	CurrentTime() sim.Time
	Pause()
	Continue()
	IsPaused() bool
	Snapshot() kernel.Snapshot

	// WithStateLocked runs f while the simulator state does not change.
	WithStateLocked(f func())
}

// Monitor can turn a simulation into a server and allows external monitoring
// and controlling of the simulation.
type Monitor struct {
	simulator   Simulator
	components  []sim.Named
	portNumber  int
	profileTime time.Duration
	logger      *slog.Logger

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar

	server *http.Server
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{
		profileTime: time.Second,
		logger:      slog.Default(),
	}
}

// WithPortNumber sets the port number of the monitor. Privileged ports are
// replaced by a random port.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		m.logger.Warn("monitoring port not allowed, using a random port",
			"port", portNumber)

		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithLogger sets the logger that reports the server address and errors.
func (m *Monitor) WithLogger(logger *slog.Logger) *Monitor {
	m.logger = logger
	return m
}

// RegisterSimulator registers the simulator that the monitor controls.
func (m *Monitor) RegisterSimulator(s Simulator) {
	m.simulator = s
	m.RegisterComponent(s)
}

// RegisterComponent registers a component that can be inspected.
func (m *Monitor) RegisterComponent(c sim.Named) {
	m.components = append(m.components, c)
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        sim.GetIDGenerator().Generate(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Router returns the handler that serves the API and the web pages.
func (m *Monitor) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/pause", m.pause).Methods(http.MethodPost)
	r.HandleFunc("/api/continue", m.resume).Methods(http.MethodPost)
	r.HandleFunc("/api/{action:pause|continue}", postOnly)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/status", m.status)
	r.HandleFunc("/api/frames", m.frames)
	r.HandleFunc("/api/processes", m.processes)
	r.HandleFunc("/api/snapshot", m.snapshot)
	r.HandleFunc("/api/list_components", m.listComponents)
	r.HandleFunc("/api/component/{name}", m.listComponentDetails)
	r.HandleFunc("/api/field/{json}", m.listFieldValue)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts the monitor as a web server and returns the URL that it
// listens on.
func (m *Monitor) StartServer() (string, error) {
	if m.simulator == nil {
		return "", errors.New("monitor: no simulator registered")
	}

	listener, err := net.Listen("tcp", ":"+strconv.Itoa(m.portNumber))
	if err != nil {
		return "", fmt.Errorf("monitor: %w", err)
	}

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)

	m.server = &http.Server{
		Handler:           m.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		err := m.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("monitoring server stopped", "error", err)
		}
	}()

	m.logger.Info("monitoring simulation", "url", url)

	return url, nil
}

// StopServer shuts the server down.
func (m *Monitor) StopServer(ctx context.Context) error {
	if m.server == nil {
		return nil
	}

	return m.server.Shutdown(ctx)
}

func postOnly(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Allow", http.MethodPost)
	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
}

func (m *Monitor) pause(w http.ResponseWriter, _ *http.Request) {
	m.simulator.Pause()
	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) resume(w http.ResponseWriter, _ *http.Request) {
	m.simulator.Continue()
	w.WriteHeader(http.StatusOK)
}

type nowRsp struct {
	Now  float64 `json:"now"`
	Time string  `json:"time"`
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	now := m.simulator.CurrentTime()

	m.writeJSON(w, nowRsp{Now: now.InSec(), Time: now.String()})
}

type statusRsp struct {
	Name     string `json:"name"`
	Time     string `json:"time"`
	Paused   bool   `json:"paused"`
	Launched int    `json:"launched"`
	Active   int    `json:"active"`
	Total    int    `json:"total"`
}

func (m *Monitor) status(w http.ResponseWriter, _ *http.Request) {
	s := m.simulator.Snapshot()

	m.writeJSON(w, statusRsp{
		Name:     m.simulator.Name(),
		Time:     s.Time.String(),
		Paused:   s.Paused,
		Launched: s.Launched,
		Active:   s.Active,
		Total:    s.Total,
	})
}

func (m *Monitor) frames(w http.ResponseWriter, _ *http.Request) {
	m.writeJSON(w, m.simulator.Snapshot().Frames)
}

func (m *Monitor) processes(w http.ResponseWriter, r *http.Request) {
	procs := m.simulator.Snapshot().Processes

	if r.URL.Query().Get("all") != "true" {
		running := procs[:0]
		for _, p := range procs {
			if p.State == vm.ProcessRunning {
				running = append(running, p)
			}
		}

		procs = running
	}

	m.writeJSON(w, procs)
}

func (m *Monitor) snapshot(w http.ResponseWriter, _ *http.Request) {
	m.writeJSON(w, m.simulator.Snapshot())
}

func (m *Monitor) listComponents(w http.ResponseWriter, _ *http.Request) {
	names := make([]string, 0, len(m.components))
	for _, c := range m.components {
		names = append(names, c.Name())
	}

	m.writeJSON(w, names)
}

func (m *Monitor) listComponentDetails(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	component := m.findComponentOr404(w, name)
	if component == nil {
		return
	}

	m.serialize(w, component, nil)
}

type fieldReq struct {
	CompName  string `json:"comp_name,omitempty"`
	FieldName string `json:"field_name,omitempty"`
}

func (m *Monitor) listFieldValue(w http.ResponseWriter, r *http.Request) {
	req := fieldReq{}

	err := json.Unmarshal([]byte(mux.Vars(r)["json"]), &req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	component := m.findComponentOr404(w, req.CompName)
	if component == nil {
		return
	}

	m.serialize(w, component, strings.Split(req.FieldName, "."))
}

// serialize writes the component as it is between two iterations of the
// simulator.
func (m *Monitor) serialize(
	w http.ResponseWriter,
	component sim.Named,
	entryPoint []string,
) {
	buf := bytes.NewBuffer(nil)

	var entryErr, err error

	m.simulator.WithStateLocked(func() {
		serializer := goseth.NewSerializer()
		serializer.SetRoot(component)
		serializer.SetMaxDepth(1)

		if entryPoint != nil {
			entryErr = serializer.SetEntryPoint(entryPoint)
			if entryErr != nil {
				return
			}
		}

		err = serializer.Serialize(buf)
	})

	if entryErr != nil {
		http.Error(w, entryErr.Error(), http.StatusBadRequest)
		return
	}

	if err != nil {
		m.logger.Warn("failed to serialize component",
			"component", component.Name(), "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "application/json")

	_, err = w.Write(buf.Bytes())
	if err != nil {
		m.logger.Debug("failed to write response", "error", err)
	}
}

func (m *Monitor) findComponentOr404(
	w http.ResponseWriter,
	name string,
) sim.Named {
	for _, c := range m.components {
		if c.Name() == name {
			return c
		}
	}

	http.Error(w, "Component not found", http.StatusNotFound)

	return nil
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bars := make([]progressBarRsp, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.status())
	}
	m.progressBarsLock.Unlock()

	m.writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	memoryInfo, err := proc.MemoryInfo()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	m.writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memoryInfo.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(m.profileTime)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	m.writeJSON(w, prof)
}

func (m *Monitor) writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	_, err = w.Write(data)
	if err != nil {
		m.logger.Debug("failed to write response", "error", err)
	}
}
