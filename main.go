// hdvalidator.go
// Surface tester for hard disks, SSDs, memory cards and disk images.
// Cobra CLI + tcell fullscreen grid, one cell per block of sectors.
//
// Build:
//
//	go build -o hdvalidator .
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"hdvalidator/gridui"
	"hdvalidator/logbook"
	"hdvalidator/physdisk"
	"hdvalidator/stats"
	"hdvalidator/surface"
)

var version = "1.0.0"

var errAborted = errors.New("test aborted")

func must(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
}

// testOptions are the test command flags that are not config keys.
type testOptions struct {
	device     string
	testName   string
	configFile string
	logFile    string
	force      bool
	yes        bool
	noUI       bool
	start      uint64
	count      uint64
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "hdvalidator",
		Short:         "Block device surface tester",
		Long:          "Read, write and verify every sector of a disk or image and map damaged areas",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newTestCmd(), newDeviceCmd())
	return root
}

func newTestCmd() *cobra.Command {
	var o testOptions
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Run a surface test on a device or image file",
		Long: "Run a surface test. Tests: " + strings.Join(surface.TestKindNames(), ", ") + ".\n" +
			"Tests that write require --force; write-verify and write destroy all data.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(newViper(), o.configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return runTest(cmd.Context(), cmd.OutOrStdout(), cfg, o)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.device, "device", "", "device path (e.g. /dev/sdb, \\\\.\\PhysicalDrive1) or image file")
	f.StringVar(&o.testName, "test", surface.Read.String(), "test to run: "+strings.Join(surface.TestKindNames(), ", "))
	f.StringVar(&o.configFile, "config", "", "config file (default: hdvalidator.yaml in ., $HOME/.hdvalidator, /etc/hdvalidator)")
	f.StringVar(&o.logFile, "log", "", "save the run log to this file")
	f.BoolVar(&o.force, "force", false, "allow tests that write to the device")
	f.BoolVar(&o.yes, "yes", false, "do not ask before destroying data")
	f.BoolVar(&o.noUI, "no-ui", false, "print the run log instead of drawing the grid")
	f.Uint64Var(&o.start, "start", 0, "first sector to test")
	f.Uint64Var(&o.count, "count", 0, "number of sectors to test (default: to the end of the device)")
	f.Int("grid-columns", 50, "grid columns")
	f.Int("grid-rows", 50, "grid rows")
	f.String("max-transfer", "", "largest single device call (e.g. 1MiB); default depends on the device")
	f.String("large-transfer", "64MiB", "chunk size of the read-first tests")
	f.String("log-dir", "", "directory for run logs named after the run ID")
	f.String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9105)")
	f.String("metrics-push", "", "push metrics to this Prometheus push gateway when the test ends")
	f.Bool("ui", true, "draw the fullscreen grid")
	f.String("log-level", "warn", "diagnostic log level (debug, info, warn, error)")
	f.String("log-format", "text", "diagnostic log format (text, json)")
	_ = cmd.MarkFlagRequired("device")
	return cmd
}

func setupDiagnostics(cfg *Config) error {
	level, err := logbook.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	format, err := logbook.ParseFormat(cfg.LogFormat)
	if err != nil {
		return err
	}
	logbook.Configure(os.Stderr, format)
	logbook.SetLogLevel(level)
	return nil
}

// testRange validates --start/--count against the device.
func testRange(total, start, count uint64) (uint64, error) {
	if start >= total {
		return 0, fmt.Errorf("start sector %d is beyond the last sector %d", start, total-1)
	}
	if count == 0 {
		return total - start, nil
	}
	if start+count > total {
		return 0, fmt.Errorf("range %d+%d exceeds the device (%d sectors)", start, count, total)
	}
	return count, nil
}

func runTest(ctx context.Context, out io.Writer, cfg *Config, o testOptions) error {
	if err := setupDiagnostics(cfg); err != nil {
		return err
	}
	kind, err := surface.ParseTestKind(o.testName)
	if err != nil {
		return err
	}
	if kind.Writes() && !o.force {
		return fmt.Errorf("--test %s writes to the device and requires --force", kind)
	}
	if kind.Writes() && !physdisk.IsImage(o.device) {
		if mounted := physdisk.MountedOn(o.device); len(mounted) > 0 {
			return fmt.Errorf("%w: %s is mounted on %s", physdisk.ErrBusy, mounted[0].Device, mounted[0].MountPoint)
		}
	}
	if kind.Destructive() && !o.yes {
		if err := askUser(out, o.device, kind); err != nil {
			return err
		}
	}

	maxTransfer, err := parseSize(cfg.MaxTransfer)
	if err != nil {
		return err
	}
	largeTransfer, err := parseSize(cfg.LargeTransfer)
	if err != nil {
		return err
	}

	dev, err := physdisk.Open(o.device, physdisk.Options{
		Writable:         kind.Writes(),
		Exclusive:        kind.Writes(),
		MaxTransferBytes: maxTransfer,
	})
	if err != nil {
		return err
	}
	defer dev.Close()

	count, err := testRange(dev.TotalSectors(), o.start, o.count)
	if err != nil {
		return err
	}

	book := logbook.New()
	details := physdisk.Describe(o.device)
	r := newRunner(kind, stats.Instrument(dev), o.device+" ("+details.String()+")", book)
	if largeTransfer > 0 {
		r.tester.LargeChunkSectors = max(largeTransfer/dev.BytesPerSector(), dev.MaxTransferSectors())
	}

	blocks := partition(o.start, count, cfg.Blocks())
	r.grid = gridui.NewGrid(min(cfg.GridColumns, len(blocks)), len(blocks))

	stats.RunInfo.WithLabelValues(r.runID.String(), kind.String(), o.device).Set(1)
	srv, err := stats.StartMetricsServer(cfg.MetricsAddr)
	if err != nil {
		return fmt.Errorf("cannot start metrics server: %w", err)
	}
	defer srv.Shutdown(context.Background())

	if cfg.UI && !o.noUI {
		ui, err := gridui.New(r.grid)
		if err != nil {
			return fmt.Errorf("cannot start UI (use --no-ui): %w", err)
		}
		defer ui.Close()
		ui.SetTitle(fmt.Sprintf(" hdvalidator %s: %s Test ", version, kind.Title()))
		ui.SetSummaryLines([]string{
			"Disk: " + r.desc,
			fmt.Sprintf("Size: %s, %s sectors of %d bytes, %s sectors per block   q/Esc: stop",
				humanize.IBytes(uint64(dev.Size())), humanize.Comma(int64(dev.TotalSectors())),
				dev.BytesPerSector(), humanize.Comma(int64(blocks[0].Count))),
		})
		r.ui = ui
	} else {
		book.SetOutput(out)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r.header(version, blocks)
	runErr := r.run(ctx, blocks)
	r.footer(runErr == nil)

	if r.ui != nil {
		r.ui.Close()
		r.ui = nil
		// The grid is gone; leave the outcome on the terminal.
		lines := book.Lines()
		fmt.Fprintln(out, strings.Join(lines[max(0, len(lines)-3):], "\n"))
	}

	logPath := o.logFile
	if logPath == "" && cfg.LogDir != "" {
		logPath = logbook.FileName(cfg.LogDir, r.runID)
	}
	if logPath != "" {
		if err := book.Save(logPath); err != nil {
			return err
		}
		fmt.Fprintf(out, "Log saved to %s\n", logPath)
	}
	if err := stats.Push(cfg.MetricsPush, r.runID.String()); err != nil {
		fmt.Fprintf(out, "warning: metrics were not pushed: %v\n", err)
	}

	if runErr != nil {
		return fmt.Errorf("%w: %w", errAborted, runErr)
	}
	return nil
}

func newDeviceCmd() *cobra.Command {
	deviceCmd := &cobra.Command{
		Use:   "device",
		Short: "Inspect devices (read-only)",
	}

	var listAll bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List devices that can be tested (read-only)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			infos, err := physdisk.List()
			if err != nil {
				return err
			}
			printDeviceList(cmd.OutOrStdout(), infos, listAll)
			return nil
		},
	}
	listCmd.Flags().BoolVar(&listAll, "all", false, "include partitions and other non-testable devices")
	deviceCmd.AddCommand(listCmd)

	var infoPath string
	infoCmd := &cobra.Command{
		Use:   "info",
		Short: "Show details about a mount point, device or image (read-only)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printDeviceInfo(cmd.OutOrStdout(), infoPath)
		},
	}
	infoCmd.Flags().StringVar(&infoPath, "path", "", "mount point, device path or image file")
	_ = infoCmd.MarkFlagRequired("path")
	deviceCmd.AddCommand(infoCmd)
	return deviceCmd
}

func printDeviceList(out io.Writer, infos []physdisk.Candidate, all bool) {
	fmt.Fprintf(out, "OS: %s\n", runtime.GOOS)
	fmt.Fprintln(out, "Testable devices (usable with --device):")
	fmt.Fprintf(out, "  %-20s  %-16s  %-24s  %-20s  %-10s\n", "Path", "Type", "Model", "Serial", "Size")
	printed := false
	for _, d := range infos {
		if !d.Compatible {
			continue
		}
		det := physdisk.Describe(d.Path)
		fmt.Fprintf(out, "  %-20s  %-16s  %-24s  %-20s  %-10s\n", d.Path, det.Type, det.Model, det.Serial, det.SizeString())
		printed = true
	}
	if !printed {
		fmt.Fprintln(out, "  <none detected>")
	}
	fmt.Fprintln(out)

	if all {
		fmt.Fprintln(out, "Not testable as a whole disk:")
		for _, d := range infos {
			if !d.Compatible {
				fmt.Fprintf(out, "  %s  (%s)\n", d.Path, d.Reason)
			}
		}
		fmt.Fprintln(out)
	}

	if mounts := physdisk.ListMounted(); len(mounts) > 0 {
		fmt.Fprintln(out, "Mounted volumes (write tests refuse these devices):")
		fmt.Fprintf(out, "  %-24s  %-14s  %-18s  %-10s\n", "Mount", "FS", "Device", "Size")
		for _, m := range mounts {
			fmt.Fprintf(out, "  %-24s  %-14s  %-18s  %-10s\n", m.MountPoint, m.FSType, m.Device, humanize.IBytes(uint64(m.SizeBytes)))
		}
		fmt.Fprintln(out)
	}
	if !physdisk.Privileged() {
		fmt.Fprintln(out, "Note: testing a raw device requires root or an elevated prompt.")
	}
}

func printDeviceInfo(out io.Writer, path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("--path is required")
	}
	dev, mnt := path, ""
	if !physdisk.IsImage(path) {
		var err error
		if dev, mnt, err = physdisk.Resolve(path); err != nil {
			return err
		}
	}
	whole := physdisk.WholeDevice(dev)
	det := physdisk.Describe(whole)

	fmt.Fprintln(out, "Path info")
	fmt.Fprintf(out, "  Input:   %s\n", path)
	fmt.Fprintf(out, "  Device:  %s\n", dev)
	if mnt != "" {
		fmt.Fprintf(out, "  Mounted: %s\n", mnt)
	}
	fmt.Fprintf(out, "  Whole:   %s\n", whole)
	fmt.Fprintf(out, "  Type:    %s\n", det.Type)
	if det.Model != "" {
		fmt.Fprintf(out, "  Model:   %s\n", det.Model)
	}
	fmt.Fprintf(out, "  Serial:  %s\n", det.Serial)
	fmt.Fprintf(out, "  Size:    %s\n", det.SizeString())
	return nil
}

func main() {
	start := time.Now()
	err := newRootCmd().ExecuteContext(context.Background())
	logbook.LogDebug(logbook.ComponentCLI, "exit", "elapsed", time.Since(start))
	must(err)
}
