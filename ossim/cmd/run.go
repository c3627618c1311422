package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/browser"
	"github.com/sarchlab/ossim/kernel"
	"github.com/sarchlab/ossim/simulation"
	"github.com/spf13/cobra"
)

type runOptions struct {
	total       int
	simul       int
	intervalMS  int
	logFile     string
	frames      int
	pages       int
	pageSize    uint32
	timeout     time.Duration
	seed        int64
	recycle     bool
	record      string
	trace       bool
	monitor     bool
	monitorPort int
	openBrowser bool
	logLevel    string
	memoryMap   bool
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	defaults := kernel.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd)
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&opts.total, "total", "n", defaults.TotalProcesses,
		"total number of processes to launch")
	flags.IntVarP(&opts.simul, "simul", "s", defaults.MaxConcurrent,
		"maximum number of processes running at the same time")
	flags.IntVarP(&opts.intervalMS, "interval", "i",
		int(defaults.LaunchInterval/1_000_000),
		"simulated milliseconds between two launches")
	flags.StringVarP(&opts.logFile, "logfile", "f", "oss.log",
		"file that receives a copy of the log")
	flags.IntVar(&opts.frames, "frames", defaults.NumFrames,
		"number of physical frames")
	flags.IntVar(&opts.pages, "pages", defaults.PagesPerProcess,
		"number of pages of each process")
	flags.Uint32Var(&opts.pageSize, "page-size", defaults.PageSize,
		"page size in bytes")
	flags.DurationVar(&opts.timeout, "timeout", defaults.WallClockLimit,
		"real time after which the simulation stops, 0 for no limit")
	flags.Int64Var(&opts.seed, "seed", 1,
		"seed of the random workload")
	flags.BoolVar(&opts.recycle, "recycle-slots", false,
		"reuse the process table slots of terminated processes")
	flags.StringVar(&opts.record, "record", "",
		"record statistics into NAME.sqlite3")
	flags.BoolVar(&opts.trace, "trace", false,
		"record every address translation, requires --record")
	flags.BoolVar(&opts.monitor, "monitor", false,
		"serve the monitoring web page")
	flags.IntVar(&opts.monitorPort, "monitor-port", 0,
		"port of the monitoring server, 0 for a random port")
	flags.BoolVar(&opts.openBrowser, "open-browser", false,
		"open the monitoring web page in a browser")
	flags.StringVar(&opts.logLevel, "log-level", "info",
		"one of debug, info, warn, and error")
	flags.BoolVar(&opts.memoryMap, "memory-map", false,
		"print the memory map every simulated second")

	return cmd
}

func (o *runOptions) config() (kernel.Config, error) {
	if o.intervalMS <= 0 {
		return kernel.Config{}, fmt.Errorf(
			"%w: interval must be positive", kernel.ErrInvalidConfig)
	}

	config := kernel.DefaultConfig()
	config.TotalProcesses = o.total
	config.MaxConcurrent = o.simul
	config.LaunchInterval = uint64(o.intervalMS) * 1_000_000
	config.NumFrames = o.frames
	config.PagesPerProcess = o.pages
	config.PageSize = o.pageSize
	config.WallClockLimit = o.timeout
	config.RecycleSlots = o.recycle

	return config, config.Validate()
}

func (o *runOptions) validate() error {
	if o.trace && o.record == "" {
		return errors.New("--trace requires --record")
	}

	if o.monitorPort != 0 && !o.monitor {
		return errors.New("--monitor-port requires --monitor")
	}

	if o.openBrowser && !o.monitor {
		return errors.New("--open-browser requires --monitor")
	}

	return nil
}

func (o *runOptions) logger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level

	err := level.UnmarshalText([]byte(o.logLevel))
	if err != nil {
		return nil, fmt.Errorf("--log-level: %w", err)
	}

	return slog.New(slog.NewTextHandler(w,
		&slog.HandlerOptions{Level: level})), nil
}

func (o *runOptions) run(cmd *cobra.Command) error {
	config, err := o.config()
	if err != nil {
		return err
	}

	err = o.validate()
	if err != nil {
		return err
	}

	logFile, err := os.Create(o.logFile)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	out := &syncWriter{w: io.MultiWriter(cmd.OutOrStdout(), logFile)}

	logger, err := o.logger(out)
	if err != nil {
		return err
	}

	s := o.buildSimulation(config, logger, out)

	url, err := s.StartMonitor()
	if err != nil {
		return err
	}

	if url != "" && o.openBrowser {
		err = browser.OpenURL(url)
		if err != nil {
			logger.Warn("failed to open browser", "url", url, "error", err)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, err = s.Run(ctx)

	termErr := s.Terminate()
	if err != nil {
		return err
	}

	if termErr != nil {
		return termErr
	}

	if s.OutputPath() != "" {
		logger.Info("statistics recorded", "file", s.OutputPath())
	}

	return nil
}

func (o *runOptions) buildSimulation(
	config kernel.Config,
	logger *slog.Logger,
	out io.Writer,
) *simulation.Simulation {
	b := simulation.MakeBuilder().
		WithConfig(config).
		WithSeed(o.seed).
		WithLogger(logger)

	if o.memoryMap {
		b = b.WithMemoryMap(out)
	}

	if o.monitor {
		b = b.WithMonitorPort(o.monitorPort)
	} else {
		b = b.WithoutMonitoring()
	}

	if o.record == "" {
		b = b.WithoutRecording()
	} else {
		b = b.WithOutputFileName(o.record)
		if o.trace {
			b = b.WithTracing()
		}
	}

	return b.Build()
}

// syncWriter serializes the writes of the log handler and the memory map
// printer, so that a log record never lands inside a memory map.
type syncWriter struct {
	lock sync.Mutex
	w    io.Writer
}

func (w *syncWriter) Write(p []byte) (int, error) {
	w.lock.Lock()
	defer w.lock.Unlock()

	return w.w.Write(p)
}
