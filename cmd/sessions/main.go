// Recording catalog CLI: inspect, verify and prune the sessions recorded
// by the EMG producer.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/relabs-tech/emg_monitor/internal/catalog"
	"github.com/relabs-tech/emg_monitor/internal/config"
	"github.com/relabs-tech/emg_monitor/internal/record"
)

func usage() {
	fmt.Fprint(os.Stderr, `Usage: sessions [flags] <command> [args]

Commands:
  list            list recorded sessions
  show <id>       show one session (a unique id prefix is enough)
  verify <id>     re-read the archive and check it against the catalog
  rm <id>         remove a session from the catalog

Flags:
`)
	flag.PrintDefaults()
}

func main() {
	configPath := flag.String("config", "./emg_config.toml", "path to configuration file")
	purge := flag.Bool("purge", false, "with rm: also delete the archive file")
	flag.Usage = usage
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Recording.CatalogDir == "" {
		log.Fatal("session catalog disabled in config (recording.catalog_dir is empty)")
	}
	dir := cfg.Recording.CatalogDir

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	ctx := context.Background()

	var cmdErr error
	switch args[0] {
	case "list":
		cmdErr = runList(ctx, dir)
	case "show":
		cmdErr = withID(args, func(id string) error { return runShow(ctx, dir, id) })
	case "verify":
		cmdErr = withID(args, func(id string) error { return runVerify(ctx, dir, id) })
	case "rm":
		cmdErr = withID(args, func(id string) error { return runRemove(ctx, dir, id, *purge) })
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		usage()
		os.Exit(2)
	}
	if cmdErr != nil {
		log.Fatalf("fatal: %v", cmdErr)
	}
}

func withID(args []string, fn func(string) error) error {
	if len(args) < 2 {
		return errors.New("missing session id")
	}
	return fn(args[1])
}

func runList(ctx context.Context, dir string) error {
	cat, err := catalog.OpenReadOnly(dir)
	if err != nil {
		return err
	}
	defer cat.Close()

	entries, err := cat.List(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No sessions recorded")
		return nil
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			shortID(e.ID),
			e.Label,
			e.StartTime.Local().Format("2006-01-02 15:04:05"),
			fmt.Sprintf("%.1fs", e.Duration),
			strconv.Itoa(e.Frames),
			filepath.Base(e.Path),
		})
	}
	fmt.Println(renderTable(
		[]string{"ID", "Label", "Started", "Duration", "Frames", "File"},
		rows, 3, 4))
	return nil
}

func runShow(ctx context.Context, dir, id string) error {
	cat, err := catalog.OpenReadOnly(dir)
	if err != nil {
		return err
	}
	defer cat.Close()

	e, err := cat.Get(ctx, id)
	if err != nil {
		return err
	}
	if e == nil {
		return fmt.Errorf("session %q not found", id)
	}

	fmt.Printf("ID:       %s\n", e.ID)
	fmt.Printf("Label:    %s\n", e.Label)
	fmt.Printf("Started:  %s\n", e.StartTime.Local().Format(time.RFC1123))
	fmt.Printf("Duration: %.2fs\n", e.Duration)
	fmt.Printf("Frames:   %d\n", e.Frames)
	fmt.Printf("Archive:  %s\n", e.Path)
	fmt.Printf("Recorded: %s\n", e.CreatedAt.Local().Format(time.RFC1123))

	data, err := record.ReadArchive(e.Path)
	if err != nil {
		fmt.Printf("\nArchive unreadable: %v\n", err)
		return nil
	}
	validFrames := 0
	for _, v := range data.Valid {
		if v {
			validFrames++
		}
	}
	fmt.Println("\nArchive metadata:")
	fmt.Printf("  Sample rate:  %d Hz\n", data.Meta.SampleRate)
	fmt.Printf("  Camera:       enabled=%v fps=%d\n", data.Meta.CameraEnabled, data.Meta.CameraFPS)
	fmt.Printf("  Hand frames:  %d/%d with valid landmarks\n", validFrames, data.NumFrames)
	return nil
}

func runVerify(ctx context.Context, dir, id string) error {
	cat, err := catalog.OpenReadOnly(dir)
	if err != nil {
		return err
	}
	defer cat.Close()

	e, err := cat.Get(ctx, id)
	if err != nil {
		return err
	}
	if e == nil {
		return fmt.Errorf("session %q not found", id)
	}

	type check struct {
		name   string
		ok     bool
		detail string
	}
	var checks []check
	add := func(name string, ok bool, detail string) {
		checks = append(checks, check{name, ok, detail})
	}

	data, err := record.ReadArchive(e.Path)
	if err != nil {
		add("archive readable", false, err.Error())
	} else {
		add("archive readable", true, fmt.Sprintf("%d frames", data.NumFrames))
		add("frame count matches catalog", data.NumFrames == e.Frames,
			fmt.Sprintf("archive=%d catalog=%d", data.NumFrames, e.Frames))
		add("label matches catalog", data.Meta.GestureLabel == e.Label,
			fmt.Sprintf("archive=%q catalog=%q", data.Meta.GestureLabel, e.Label))
		add("duration matches catalog", math.Abs(data.Meta.Duration-e.Duration) < 0.01,
			fmt.Sprintf("archive=%.3fs catalog=%.3fs", data.Meta.Duration, e.Duration))

		mono := true
		for i := 1; i < len(data.Timestamps); i++ {
			if data.Timestamps[i] < data.Timestamps[i-1] {
				mono = false
				break
			}
		}
		add("timestamps monotonic", mono, "")

		if data.NumFrames > 1 && data.Meta.SampleRate > 0 {
			span := float64(data.Timestamps[data.NumFrames-1] - data.Timestamps[0])
			want := float64(data.NumFrames-1) / float64(data.Meta.SampleRate)
			// float32 timestamps lose sub-millisecond precision at long uptimes
			tol := 2.0 / float64(data.Meta.SampleRate)
			add("timestamp span matches frame count", math.Abs(span-want) <= tol,
				fmt.Sprintf("span=%.3fs expected=%.3fs", span, want))
		}
	}

	rows := make([][]string, 0, len(checks))
	failed := 0
	for _, c := range checks {
		status := "OK"
		if !c.ok {
			status = "FAIL"
			failed++
		}
		rows = append(rows, []string{c.name, status, c.detail})
	}
	fmt.Println(renderTable([]string{"Check", "Status", "Detail"}, rows))

	if failed > 0 {
		return fmt.Errorf("%d of %d checks failed", failed, len(checks))
	}
	fmt.Printf("All %d checks passed\n", len(checks))
	return nil
}

func runRemove(ctx context.Context, dir, id string, purge bool) error {
	cat, err := catalog.Open(dir)
	if err != nil {
		if errors.Is(err, catalog.ErrLocked) {
			return errors.New("catalog is locked (is the producer running?)")
		}
		return err
	}
	defer cat.Close()

	e, err := cat.Get(ctx, id)
	if err != nil {
		return err
	}
	if e == nil {
		return fmt.Errorf("session %q not found", id)
	}

	removed, err := cat.Remove(ctx, e.ID)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("session %q not found", id)
	}
	fmt.Printf("Removed session %s (%s)\n", shortID(e.ID), e.Label)

	if purge {
		if err := os.Remove(e.Path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing archive: %w", err)
		}
		fmt.Printf("Deleted %s\n", e.Path)
	}
	return nil
}

// shortID keeps listings readable; any unique prefix works with show and
// verify.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
