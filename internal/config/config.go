// Package config loads task processor configuration from a TOML
// manifest.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"fortio.org/safecast"
	"github.com/BurntSushi/toml"

	"riptide/engine"
)

// ErrProcessorSectionMissing indicates that [processor] is missing in a
// manifest.
var ErrProcessorSectionMissing = errors.New("missing [processor]")

// manifest mirrors the on-disk TOML shape. Durations are strings in
// time.ParseDuration syntax.
type manifest struct {
	Processor *processorSection `toml:"processor"`
	Trace     *traceSection     `toml:"trace"`
	Logging   *loggingSection   `toml:"logging"`
}

type processorSection struct {
	Name              string `toml:"name"`
	WorkerThreads     int64  `toml:"worker_threads"`
	CoroPoolCapacity  int64  `toml:"coro_pool_capacity"`
	QueueCapacity     int64  `toml:"queue_capacity"`
	OverloadQueueSize int64  `toml:"overload_queue_size"`
	ProfilerThreshold string `toml:"profiler_threshold"`
	TaskTraceMaxCSW   int64  `toml:"task_trace_max_csw"`
	HeartbeatInterval string `toml:"heartbeat_interval"`
}

type traceSection struct {
	Level  string `toml:"level"`
	Mode   string `toml:"mode"`
	Format string `toml:"format"`
	Output string `toml:"output"`
}

type loggingSection struct {
	Level string `toml:"level"`
}

// File is the parsed configuration.
type File struct {
	Processor engine.ProcessorConfig
	TraceSpec TraceSpec
	LogLevel  string
}

// TraceSpec carries the raw tracer settings; the caller builds the
// tracer so it controls output lifetime.
type TraceSpec struct {
	Level  string
	Mode   string
	Format string
	Output string
}

// Load reads and validates a manifest file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(string(data))
}

// Parse validates a manifest from memory.
func Parse(data string) (*File, error) {
	var m manifest
	meta, err := toml.Decode(data, &m)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config: unknown key %q", undecoded[0].String())
	}
	if m.Processor == nil {
		return nil, ErrProcessorSectionMissing
	}

	cfg := engine.ProcessorConfig{Name: m.Processor.Name}
	if cfg.WorkerThreads, err = intField("worker_threads", m.Processor.WorkerThreads); err != nil {
		return nil, err
	}
	if cfg.CoroPoolCapacity, err = intField("coro_pool_capacity", m.Processor.CoroPoolCapacity); err != nil {
		return nil, err
	}
	if cfg.QueueCapacity, err = intField("queue_capacity", m.Processor.QueueCapacity); err != nil {
		return nil, err
	}
	if cfg.OverloadQueueSize, err = intField("overload_queue_size", m.Processor.OverloadQueueSize); err != nil {
		return nil, err
	}
	if cfg.TaskTraceMaxCSW, err = intField("task_trace_max_csw", m.Processor.TaskTraceMaxCSW); err != nil {
		return nil, err
	}
	if cfg.ProfilerThreshold, err = durationField("profiler_threshold", m.Processor.ProfilerThreshold); err != nil {
		return nil, err
	}
	if cfg.HeartbeatInterval, err = durationField("heartbeat_interval", m.Processor.HeartbeatInterval); err != nil {
		return nil, err
	}

	f := &File{Processor: cfg}
	if m.Trace != nil {
		f.TraceSpec = TraceSpec{
			Level:  m.Trace.Level,
			Mode:   m.Trace.Mode,
			Format: m.Trace.Format,
			Output: m.Trace.Output,
		}
	}
	if m.Logging != nil {
		f.LogLevel = m.Logging.Level
	}
	return f, nil
}

func intField(name string, v int64) (int, error) {
	if v < 0 {
		return 0, fmt.Errorf("config: negative %s", name)
	}
	n, err := safecast.Conv[int](v)
	if err != nil {
		return 0, fmt.Errorf("config: %s out of range: %w", name, err)
	}
	return n, nil
}

func durationField(name, v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s: %w", name, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("config: negative %s", name)
	}
	return d, nil
}
