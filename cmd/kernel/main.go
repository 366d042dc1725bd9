// Command kernel runs the Advanced Timer V2 deterministic evaluation
// kernel as a standalone process: the scan scheduler, its bus-bound
// control surface, the watchdog and metrics services, and an offline
// "validate" mode for CI-time checking of a staged configuration file.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"advancedtimer/bus"
	"advancedtimer/kernel"
	"advancedtimer/kernel/storage"
	svcconfig "advancedtimer/services/config"
	"advancedtimer/services/heartbeat"
	"advancedtimer/services/metrics"
	"advancedtimer/x/klog"
	"advancedtimer/x/timex"

	"github.com/spf13/cobra"
)

const version = "2.0.0"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "kernel",
		Short: "Advanced Timer V2 deterministic evaluation kernel",
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to process configuration YAML")

	cmd.AddCommand(runCmd(&configPath), validateCmd(), versionCmd())
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the kernel version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(version)
			return nil
		},
	}
}

func runCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "run the kernel process: scheduler, bus services, watchdog, metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(cmd.Context(), *configPath)
		},
	}
}

func validateCmd() *cobra.Command {
	var hwProfile string
	c := &cobra.Command{
		Use:   "validate <staged-config.json>",
		Short: "validate a staged configuration file offline, without running the scheduler",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateFile(args[0], hwProfile)
		},
	}
	c.Flags().StringVar(&hwProfile, "hardware-profile", "full", "hardware profile to validate against: full|minimal")
	return c
}

func validateFile(path string, profileName string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	store := storage.NewMemory()
	if err := store.WriteAtomic(storage.SlotStaged, raw); err != nil {
		return err
	}
	cl := kernel.NewConfigLifecycle(store, nil, hardwareProfile(profileName))
	errs, _, err := cl.ValidateStaged()
	if err != nil {
		return err
	}
	if len(errs) == 0 {
		fmt.Println("OK: staged configuration is valid")
		return nil
	}
	for _, e := range errs {
		fmt.Printf("%s\t%s\t%s\n", e.Code, e.Path, e.Message)
	}
	return fmt.Errorf("validation failed: %d error(s)", len(errs))
}

func hardwareProfile(name string) kernel.HardwareProfile {
	switch name {
	case "minimal":
		return kernel.HardwareProfile{MaxDI: 4, MaxAI: 2, MaxSIO: 2, MaxDO: 4, MaxMATH: 4, MaxRTC: 1}
	default:
		return kernel.HardwareProfile{MaxDI: 64, MaxAI: 32, MaxSIO: 32, MaxDO: 64, MaxMATH: 64, MaxRTC: 16}
	}
}

func runProcess(ctx context.Context, configPath string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	settings, err := svcconfig.Load(configPath)
	if err != nil {
		return err
	}
	log := klog.New(os.Stdout, settings.LogLevel)

	b := bus.NewBus(settings.Bus.QueueLen)
	conn := b.NewConnection("kernel")
	defer conn.Disconnect()

	svcconfig.Publish(conn, settings)

	store, err := storage.Open(settings.Storage.Driver, settings.Storage.Dir)
	if err != nil {
		return err
	}

	raw, err := store.Read(storage.SlotActive)
	if err != nil {
		return err
	}
	g := kernel.NewGraph(nil, nil, settings.Scan.IntervalMs, settings.Scan.JitterBudgetUs, settings.Scan.OverrunBudgetUs, 64)
	ts := realTimeSource{}
	faults := kernel.NewBusFaultSink(conn, kernel.NewMemoryFaultSink())
	sched := kernel.NewScheduler(g, nopDI{}, nopAI{}, nopDO{}, ts, faults)

	cl := kernel.NewConfigLifecycle(store, sched, hardwareProfile("full"))
	if len(raw) > 0 {
		log.Info("active configuration slot is not empty; it is not loaded, the scheduler starts with an empty graph", "bytes", len(raw))
	}

	bound := kernel.Bind(ctx, conn, sched, cl, log)

	hb := heartbeat.New()
	hb.Logger = log.Component("watchdog")
	if err := hb.Start(ctx, conn); err != nil {
		return err
	}

	mx := metrics.New()
	if err := mx.Start(ctx, conn); err != nil {
		return err
	}

	log.Info("kernel started", "scan_interval_ms", settings.Scan.IntervalMs)

	ticker := time.NewTicker(time.Duration(settings.Scan.IntervalMs) * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("kernel stopping")
			return nil
		case <-ticker.C:
			sched.Tick()
			bound.PublishSnapshot()
		}
	}
}

type realTimeSource struct{}

func (realTimeSource) NowMonotonicUs() uint64 {
	return uint64(time.Now().UnixMicro())
}

func (realTimeSource) WallClock() (uint64, kernel.SyncState) {
	return uint64(timex.NowMs() / 1000), kernel.ClockSynced
}

// nopDI/nopAI/nopDO are the default adapters when no platform-specific
// HAL has been wired in; every read fails closed and every write is a
// no-op, matching the "adapter, not the kernel, owns I/O failure
// behavior" contract in §6.
type nopDI struct{}

func (nopDI) Read(channel uint32) (bool, error) { return false, fmt.Errorf("no DI adapter wired") }

type nopAI struct{}

func (nopAI) Read(channel uint32) (uint32, error) { return 0, fmt.Errorf("no AI adapter wired") }

type nopDO struct{}

func (nopDO) Write(channel uint32, on bool) error { return nil }
