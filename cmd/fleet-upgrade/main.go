// Package main provides the entry point for the fleet upgrade/rollback CLI.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/erayguner/wbi-fleet-upgrade/internal/clock"
	"github.com/erayguner/wbi-fleet-upgrade/internal/domain/entity"
	"github.com/erayguner/wbi-fleet-upgrade/internal/engine"
	"github.com/erayguner/wbi-fleet-upgrade/internal/infrastructure/config"
	"github.com/erayguner/wbi-fleet-upgrade/internal/infrastructure/console"
	"github.com/erayguner/wbi-fleet-upgrade/internal/infrastructure/logger"
	"github.com/erayguner/wbi-fleet-upgrade/internal/infrastructure/ratelimit"
	"github.com/erayguner/wbi-fleet-upgrade/internal/infrastructure/runid"
	"github.com/erayguner/wbi-fleet-upgrade/internal/instanceservice"
	"github.com/erayguner/wbi-fleet-upgrade/internal/report"
	"github.com/erayguner/wbi-fleet-upgrade/internal/version"
)

func main() {
	if handleSpecialCommands() {
		return
	}
	runFleetOperation()
}

// handleSpecialCommands processes -version/-help. Returns true if a special
// command was handled and the program should exit without running anything.
func handleSpecialCommands() bool {
	if len(os.Args) < 2 {
		return false
	}
	switch os.Args[1] {
	case "-version", "--version":
		console.Println(version.GetFullVersion())
		return true
	case "-help", "--help":
		printHelp()
		return true
	}
	return false
}

func printHelp() {
	console.Println("fleet-upgrade - orchestrate upgrade/rollback across a fleet of notebook instances")
	console.Println()
	console.Println("Usage: fleet-upgrade -operation=UPGRADE|ROLLBACK -project=P -locations=a,b [flags]")
	flag.PrintDefaults()
}

// cliFlags holds the run configuration as parsed from flags, before
// RunConfig.Validate normalises and range-checks it.
type cliFlags struct {
	operation          string
	project            string
	locations          string
	instance           string
	dryRun             bool
	maxParallel        int
	operationTimeout   time.Duration
	pollInterval       time.Duration
	healthCheckTimeout time.Duration
	staggerDelay       time.Duration
	rollbackOnFailure  bool
	outDir             string
}

func parseFlags() cliFlags {
	var f cliFlags
	flag.StringVar(&f.operation, "operation", "", "UPGRADE or ROLLBACK")
	flag.StringVar(&f.project, "project", "", "provider project identifier")
	flag.StringVar(&f.locations, "locations", "", "comma-separated list of locations to scan")
	flag.StringVar(&f.instance, "instance", "", "restrict the run to one instance short name")
	flag.BoolVar(&f.dryRun, "dry-run", false, "evaluate without mutating any instance")
	flag.IntVar(&f.maxParallel, "max-parallel", 10, "maximum concurrent per-instance executors")
	flag.DurationVar(&f.operationTimeout, "operation-timeout", 2*time.Hour, "wall-clock budget for one instance's operation")
	flag.DurationVar(&f.pollInterval, "poll-interval", 20*time.Second, "base interval between operation/health polls")
	flag.DurationVar(&f.healthCheckTimeout, "health-check-timeout", 10*time.Minute, "wall-clock budget for post-operation health verification")
	flag.DurationVar(&f.staggerDelay, "stagger-delay", 3*time.Second, "minimum delay between successive dispatches")
	flag.BoolVar(&f.rollbackOnFailure, "rollback-on-failure", false, "automatically roll back an instance that fails mid-upgrade")
	flag.StringVar(&f.outDir, "out-dir", ".", "directory to write the JSON report into")
	flag.Parse()
	return f
}

func (f cliFlags) toRunConfig() entity.RunConfig {
	var locations []string
	for _, l := range strings.Split(f.locations, ",") {
		if trimmed := strings.TrimSpace(l); trimmed != "" {
			locations = append(locations, trimmed)
		}
	}
	return entity.RunConfig{
		Operation:          entity.Operation(strings.ToUpper(f.operation)),
		Project:            f.project,
		Locations:          locations,
		Instance:           f.instance,
		DryRun:             f.dryRun,
		MaxParallel:        f.maxParallel,
		OperationTimeout:   f.operationTimeout,
		PollInterval:       f.pollInterval,
		HealthCheckTimeout: f.healthCheckTimeout,
		StaggerDelay:       f.staggerDelay,
		RollbackOnFailure:  f.rollbackOnFailure,
	}
}

func runFleetOperation() {
	flags := parseFlags()
	cfg := config.Load()

	if err := logger.Initialize(logger.Config{Level: cfg.LogLevel, FilePath: cfg.LogFilePath}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
	}
	defer logger.Close()

	runID := runid.New()
	logger.WithField("run_id", runID).Info("starting fleet operation")

	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerSecond: cfg.RateLimitRPS,
		Burst:             cfg.RateLimitBurst,
		TTL:               15 * time.Minute,
	})
	defer limiter.Close()

	svc := instanceservice.NewRateLimited(instanceservice.New(cfg.ProviderBaseURL, nil), limiter)

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Warn("received interrupt, cancelling in-flight work")
		cancel()
	}()
	defer signal.Stop(sigCh)

	fleetReport, err := engine.Run(ctx, svc, flags.toRunConfig(), clock.Real{})
	if err != nil {
		logger.WithField("error", err).Error("run configuration invalid")
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	report.PrintSummary(fleetReport)

	path, err := report.WriteJSON(fleetReport, flags.outDir)
	if err != nil {
		logger.WithField("error", err).Error("failed to write report")
		os.Exit(1)
	}
	logger.WithField("path", path).Info("report written")
}
