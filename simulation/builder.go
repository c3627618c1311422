package simulation

import (
	"io"
	"log/slog"

	"github.com/rs/xid"
	"github.com/sarchlab/ossim/comm"
	"github.com/sarchlab/ossim/datarecording"
	"github.com/sarchlab/ossim/kernel"
	"github.com/sarchlab/ossim/mem/vm/mmu"
	"github.com/sarchlab/ossim/monitoring"
	"github.com/sarchlab/ossim/tracing"
	"github.com/sarchlab/ossim/workload"
)

// Builder can be used to build a simulation.
type Builder struct {
	config         kernel.Config
	seed           int64
	factory        workload.GeneratorFactory
	logger         *slog.Logger
	memoryMap      io.Writer
	monitorOn      bool
	monitorPort    int
	recordingOn    bool
	tracingOn      bool
	outputFileName string
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{
		config:      kernel.DefaultConfig(),
		seed:        1,
		monitorOn:   true,
		recordingOn: true,
	}
}

// WithConfig sets the configuration of the kernel.
func (b Builder) WithConfig(config kernel.Config) Builder {
	b.config = config
	return b
}

// WithSeed sets the seed of the random workload.
func (b Builder) WithSeed(seed int64) Builder {
	b.seed = seed
	return b
}

// WithGeneratorFactory replaces the random workload.
func (b Builder) WithGeneratorFactory(f workload.GeneratorFactory) Builder {
	b.factory = f
	return b
}

// WithLogger sets the logger used by all the parts of the simulation.
func (b Builder) WithLogger(logger *slog.Logger) Builder {
	b.logger = logger
	return b
}

// WithMemoryMap prints the memory map into w once every simulated second.
func (b Builder) WithMemoryMap(w io.Writer) Builder {
	b.memoryMap = w
	return b
}

// WithoutMonitoring sets the simulation to not use monitoring.
func (b Builder) WithoutMonitoring() Builder {
	b.monitorOn = false
	return b
}

// WithMonitorPort sets the port number for the monitoring server.
func (b Builder) WithMonitorPort(port int) Builder {
	b.monitorPort = port
	return b
}

// WithoutRecording disables the statistics database.
func (b Builder) WithoutRecording() Builder {
	b.recordingOn = false
	return b
}

// WithTracing records every address translation into the database.
func (b Builder) WithTracing() Builder {
	b.tracingOn = true
	return b
}

// WithOutputFileName sets the custom output file name for the data recorder.
func (b Builder) WithOutputFileName(filename string) Builder {
	b.outputFileName = filename
	return b
}

func (b Builder) parametersMustBeValid() {
	if !b.monitorOn && b.monitorPort != 0 {
		panic("monitor port cannot be set when monitoring is disabled")
	}

	if !b.recordingOn && (b.tracingOn || b.outputFileName != "") {
		panic("tracing and output file require recording")
	}
}

// Build builds the simulation.
func (b Builder) Build() *Simulation {
	b.parametersMustBeValid()

	s := &Simulation{
		id:     xid.New().String(),
		logger: b.logger,
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	factory := b.factory
	if factory == nil {
		factory = workload.RandomGeneratorFactory(
			b.seed, b.config.PagesPerProcess, b.config.PageSize)
	}

	s.spawner = workload.NewGoroutineSpawner(factory, s.logger)
	s.channel = comm.NewChannel(b.config.ChannelCapacity)
	s.kernel = kernel.MakeBuilder().
		WithConfig(b.config).
		WithSpawner(s.spawner).
		WithChannel(s.channel).
		WithLogger(s.logger).
		Build("Kernel")

	s.kernel.AcceptHook(kernel.NewEventLogger(s.logger))

	s.serviceTime = tracing.NewTotalTimeTracer(
		s.kernel, tracing.KindIs(mmu.TaskKind))
	s.busyTime = tracing.NewBusyTimeTracer(
		s.kernel, tracing.KindIs(mmu.TaskKind))
	s.steps = tracing.NewStepCountTracer(tracing.KindIs(mmu.TaskKind))
	tracing.CollectTrace(s.kernel.MMU(), s.serviceTime)
	tracing.CollectTrace(s.kernel.MMU(), s.busyTime)
	tracing.CollectTrace(s.kernel.MMU(), s.steps)

	if b.memoryMap != nil {
		s.kernel.AcceptHook(kernel.NewMemoryMapPrinter(b.memoryMap, s.logger))
	}

	if b.recordingOn {
		b.buildRecording(s)
	}

	if b.monitorOn {
		b.buildMonitor(s)
	}

	return s
}

func (b Builder) buildRecording(s *Simulation) {
	outputPath := b.outputFileName
	if outputPath == "" {
		outputPath = "ossim_" + s.id
	}

	s.dataRecorder = datarecording.New(outputPath)
	s.outputPath = outputPath + ".sqlite3"
	s.execRecorder = datarecording.NewExecRecorder(s.dataRecorder)
	s.kernel.AcceptHook(kernel.NewStatsRecorder(s.dataRecorder, s.id))

	if b.tracingOn {
		s.tracer = tracing.NewDBTracer(s.kernel, s.dataRecorder, nil)
		tracing.CollectTrace(s.kernel.MMU(), s.tracer)
	}
}

func (b Builder) buildMonitor(s *Simulation) {
	s.monitor = monitoring.NewMonitor().
		WithPortNumber(b.monitorPort).
		WithLogger(s.logger)
	s.monitor.RegisterSimulator(s.kernel)
	s.monitor.RegisterComponent(s.kernel.MMU())

	s.progressBar = s.monitor.CreateProgressBar(
		"Processes", uint64(b.config.TotalProcesses))
	s.kernel.AcceptHook(monitoring.NewProcessProgress(s.progressBar))
}
