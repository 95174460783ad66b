package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/kudos/internal/loadtest"
	"github.com/okian/kudos/pkg/logger"
)

// Default configuration constants.
const (
	defaultProfiles      = 200
	defaultEvents        = 500
	defaultTasksPerEvent = 4
	defaultTopN          = 10
	defaultWorkers       = 2 // multiplier for runtime.NumCPU()
	defaultTimeout       = 30 * time.Second
	defaultRunTimeout    = 10 * time.Minute
)

func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:9080", "Base URL of the service")
		profiles = flag.Int("profiles", defaultProfiles, "Number of profiles to create")
		events   = flag.Int("events", defaultEvents, "Number of events to run end to end")
		tasks    = flag.Int("tasks", defaultTasksPerEvent, "Tasks per event")
		workers  = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout  = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		seed     = flag.Uint64("seed", 0, "Workload seed (0 picks one from the clock)")
		topN     = flag.Int("top", defaultTopN, "Leaderboard rows to print")
		format   = flag.String("log-format", "text", "Log format: text or json")
		verbose  = flag.Bool("verbose", false, "Log every failed request")
	)
	flag.Parse()

	if err := logger.Init(logger.WithFormat(*format), logger.WithOutput(os.Stderr)); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultRunTimeout)
	defer cancel()

	report, err := loadtest.Run(ctx, &loadtest.Config{
		BaseURL:       *baseURL,
		Profiles:      *profiles,
		Events:        *events,
		TasksPerEvent: *tasks,
		Workers:       *workers,
		Timeout:       *timeout,
		Seed:          *seed,
		TopN:          *topN,
		Verbose:       *verbose,
	})
	if err != nil {
		logger.Get().Error(ctx, "load run failed", logger.Error(err))
		os.Exit(1)
	}
	if err := report.Render(os.Stdout); err != nil {
		logger.Get().Error(ctx, "failed to write report", logger.Error(err))
	}
	if !report.Passed() {
		os.Exit(1)
	}
}
