package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"riptide/engine"
	"riptide/internal/config"
	"riptide/internal/logging"
	"riptide/internal/observ"
	"riptide/internal/prof"
	"riptide/internal/trace"
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Benchmark task spawn/suspend/resume throughput",
	RunE:  runBench,
}

func init() {
	benchCmd.Flags().Int("tasks", 10000, "number of tasks to spawn")
	benchCmd.Flags().Int("yields", 10, "suspension points per task")
	benchCmd.Flags().Int("workers", 0, "worker threads (0 = NumCPU)")
	benchCmd.Flags().String("config", "", "processor config manifest (TOML)")
	benchCmd.Flags().String("cpuprofile", "", "write a CPU profile to this file")
	benchCmd.Flags().String("trace-level", "off", "trace level (off|processor|task|debug)")
	benchCmd.Flags().String("trace-output", "-", "trace output path")
	benchCmd.Flags().String("trace-format", "text", "trace format (text|ndjson|msgpack)")
	benchCmd.Flags().String("log-level", "warning", "log level (trace|debug|info|warning|error)")
}

func runBench(cmd *cobra.Command, args []string) error {
	configureColor(cmd)
	quiet, _ := cmd.Flags().GetBool("quiet")

	cfg, tracer, logger, err := benchSetup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = tracer.Close() }()

	if path, _ := cmd.Flags().GetString("cpuprofile"); path != "" {
		if err := prof.StartCPU(path); err != nil {
			return err
		}
		defer prof.StopCPU()
	}

	tasks, _ := cmd.Flags().GetInt("tasks")
	yields, _ := cmd.Flags().GetInt("yields")

	cfg.Tracer = tracer
	cfg.Logger = logger
	proc, err := engine.NewTaskProcessor(cfg)
	if err != nil {
		return err
	}
	defer proc.Stop()

	timer := observ.NewTimer()

	spawnPhase := timer.Begin("spawn")
	handles := make([]*engine.Task, 0, tasks)
	for i := 0; i < tasks; i++ {
		task, err := engine.SpawnCritical(proc, func() error {
			for j := 0; j < yields; j++ {
				if err := engine.Yield(); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		handles = append(handles, task)
	}
	timer.End(spawnPhase, fmt.Sprintf("%d tasks", tasks))

	runPhase := timer.Begin("run")
	for _, task := range handles {
		task.WaitBlocking()
	}
	timer.End(runPhase, fmt.Sprintf("%d context switches", tasks*yields))

	if !quiet {
		fmt.Print(timer.Summary())
		printCounters(proc)
	}
	return nil
}

func benchSetup(cmd *cobra.Command) (engine.ProcessorConfig, trace.Tracer, logging.Logger, error) {
	var cfg engine.ProcessorConfig
	spec := config.TraceSpec{}

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		file, err := config.Load(path)
		if err != nil {
			return cfg, nil, nil, err
		}
		cfg = file.Processor
		spec = file.TraceSpec
	}
	if workers, _ := cmd.Flags().GetInt("workers"); workers > 0 {
		cfg.WorkerThreads = workers
	}

	if spec.Level == "" {
		spec.Level, _ = cmd.Flags().GetString("trace-level")
		spec.Output, _ = cmd.Flags().GetString("trace-output")
		spec.Format, _ = cmd.Flags().GetString("trace-format")
	}
	tracer, err := buildTracer(spec)
	if err != nil {
		return cfg, nil, nil, err
	}

	levelName, _ := cmd.Flags().GetString("log-level")
	level, ok := logging.ParseLevel(levelName)
	if !ok {
		return cfg, nil, nil, fmt.Errorf("invalid log level: %q", levelName)
	}
	logger := logging.New(os.Stderr, level)

	return cfg, tracer, logger, nil
}

func buildTracer(spec config.TraceSpec) (trace.Tracer, error) {
	level, err := trace.ParseLevel(spec.Level)
	if err != nil {
		return nil, err
	}
	if level == trace.LevelOff {
		return trace.Nop, nil
	}
	format := trace.FormatText
	if spec.Format != "" {
		if format, err = trace.ParseFormat(spec.Format); err != nil {
			return nil, err
		}
	}
	mode := trace.ModeStream
	if spec.Mode != "" {
		if mode, err = trace.ParseMode(spec.Mode); err != nil {
			return nil, err
		}
	}
	return trace.New(trace.Config{
		Level:      level,
		Mode:       mode,
		Format:     format,
		OutputPath: spec.Output,
		Heartbeat:  time.Second,
	})
}

func printCounters(proc *engine.TaskProcessor) {
	snap := proc.Counter().Snapshot()
	header := color.New(color.Bold)
	header.Println("counters:")
	fmt.Printf("  %-20s %d\n", "created", snap.Created)
	fmt.Printf("  %-20s %d\n", "completed", snap.Completed)
	fmt.Printf("  %-20s %d\n", "cancelled", snap.Cancelled)
	fmt.Printf("  %-20s %d\n", "overloads", snap.Overloads)
	fmt.Printf("  %-20s %d\n", "context switches", snap.ContextSwitches)
	fmt.Printf("  %-20s %s\n", "execution time", snap.ExecTotal)
}
