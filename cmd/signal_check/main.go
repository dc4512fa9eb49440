// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text


// ./cmd/signal_check/main.go
//
// Guided per-electrode signal check for the 8-channel EMG front end.
// Checks:
//  1. Rest: per-channel noise floor while all muscles stay relaxed
//  2. Activation: guided contraction per electrode to verify gain and placement
//  3. Drift: a short rest recapture to catch baseline wander / loosening contact
//
// Output:
//
//	Writes a JSON report ./signal_check_<timestamp>.json including per-channel
//	quality/confidence figures.
//
// Run:
//
//	go run ./cmd/signal_check -simulate
//
// Notes / assumptions:
//   - Reads raw EMG packets via internal/acquisition (serial device or simulator).
//   - Stats are in RAW MICROVOLTS as decoded from the wire; the live baseline
//     tracker does not run here, deviations are measured against the rest mean.
//   - Isolation uses a practical share-of-total-deviation measure. It flags gross
//     crosstalk and swapped electrodes, not subtle coupling.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/relabs-tech/emg_monitor/internal/acquisition"
	"github.com/relabs-tech/emg_monitor/internal/config"
	"github.com/relabs-tech/emg_monitor/internal/emg"
	"github.com/relabs-tech/emg_monitor/internal/wire"
)

const (
	restDuration     = 10 * time.Second
	driftDuration    = 5 * time.Second
	activationMinDur = 4 * time.Second
	activationMaxDur = 15 * time.Second

	// Rest-phase quality heuristics (µV; tune per front end)
	restStdGood = 10.0 // "good" noise floor threshold
	restStdBad  = 60.0 // above this confidence drops steeply

	// Activation heuristics
	activationGood = 5.0 // deviation/noise ratio for a convincing contraction
	activationBad  = 2.0
	isolationGood  = 0.50 // share of total deviation on the prompted channel
	isolationBad   = 0.25 // uniform bleed across 8 channels would be 0.125

	// Drift: |rest mean shift| in units of rest stddev
	driftGood = 0.5
	driftBad  = 3.0

	// Confidence floor (we never want hard zero unless we error out)
	confFloor = 0.05
)

// ---------- Data model (JSON output) ----------

type ChannelVec [emg.NumChannels]float64

type PhaseStats struct {
	Samples     int        `json:"samples"`
	DurationSec float64    `json:"duration_sec"`
	Mean        ChannelVec `json:"mean"`
	MeanAbsDev  ChannelVec `json:"mean_abs_dev,omitempty"` // vs rest mean
	StdDev      ChannelVec `json:"stddev"`
	Notes       []string   `json:"notes,omitempty"`
}

type ChannelResult struct {
	Channel         int        `json:"channel"` // 1-based
	RestMean        float64    `json:"rest_mean"`
	RestStdDev      float64    `json:"rest_stddev"`
	ActivationRatio float64    `json:"activation_ratio"` // mean abs deviation / rest stddev
	Isolation       float64    `json:"isolation"`        // deviation share on this channel
	Confidence      float64    `json:"confidence"`
	Stats           PhaseStats `json:"stats"`
}

type CheckResult struct {
	SchemaVersion int    `json:"schema_version"`
	CheckedAt     string `json:"checked_at"` // RFC3339
	Device        string `json:"device"`     // port name or "simulator"

	RestStats PhaseStats `json:"rest_stats"`

	Channels []ChannelResult `json:"channel_results"`

	DriftStats PhaseStats `json:"drift_stats"`
	Drift      ChannelVec `json:"drift"` // mean shift in rest stddev units

	Confidence struct {
		Rest       float64 `json:"rest"`
		Activation float64 `json:"activation"`
		Drift      float64 `json:"drift"`
		Overall    float64 `json:"overall"`
	} `json:"confidence"`

	Notes []string `json:"notes,omitempty"`
}

// ---------- Main ----------

func main() {
	in := bufio.NewReader(os.Stdin)

	configPath := flag.String("config", "./emg_config.toml", "path to configuration file")
	simulate := flag.Bool("simulate", false, "force the built-in signal simulator")
	channelsFlag := flag.String("channels", "", "comma separated 1-based channels to check (default: all)")
	flag.Parse()

	fmt.Println("=== Guided Signal Check (rest + per-electrode activation) ===")
	fmt.Println("This workflow will prompt you in the console and store a JSON report.")
	fmt.Println()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Failed to load config from %s: %v\n", *configPath, err)
		os.Exit(1)
	}
	if *simulate {
		cfg.Device.Simulate = true
	}

	checkChannels, err := parseChannels(*channelsFlag)
	if err != nil {
		fatal(err)
	}

	src, device, err := openSource(cfg)
	if err != nil {
		fatal(err)
	}
	defer src.Close()

	fmt.Printf("Signal source: %s\n\n", device)

	res := CheckResult{
		SchemaVersion: 1,
		CheckedAt:     time.Now().Format(time.RFC3339),
		Device:        device,
	}

	// ---------------- Rest phase ----------------
	fmt.Println("Step 1/3: Rest noise floor")
	fmt.Println("Relax all muscles under the electrodes and hold still.")
	waitEnter(in, "Press ENTER to start rest capture (10s)...")

	restSamples, restStats, err := captureSamples(src, restDuration, nil)
	if err != nil {
		fatal(err)
	}
	res.RestStats = restStats
	res.Confidence.Rest = restConfidence(restStats.StdDev)

	fmt.Printf("Rest noise floor (µV):")
	for ch := 0; ch < emg.NumChannels; ch++ {
		fmt.Printf(" %d:%.1f", ch+1, restStats.StdDev[ch])
	}
	fmt.Printf(" | confidence=%.2f\n", res.Confidence.Rest)

	_ = restSamples // kept for possible future extensions

	// ---------------- Activation phase ----------------
	fmt.Println("\nStep 2/3: Per-electrode activation")
	fmt.Println("For each prompted channel, contract the muscle under that electrode")
	fmt.Println("2-3 times, firmly. Keep the other muscles relaxed.")
	fmt.Println("You will press ENTER to start capture and ENTER again to stop (or it stops automatically).")
	fmt.Println()

	activationConfSum := 0.0
	for _, ch := range checkChannels {
		fmt.Printf("Channel %d: contract the muscle under electrode %d.\n", ch, ch)
		waitEnter(in, "Press ENTER to start capture, then ENTER again to stop...")

		_, stats, err := captureUntilEnterOrTimeout(in, src, activationMaxDur, &restStats.Mean)
		if err != nil {
			fmt.Printf("Warning: activation capture failed for channel %d: %v\n", ch, err)
			stats.Notes = append(stats.Notes, "capture_error: "+err.Error())
			res.Channels = append(res.Channels, ChannelResult{Channel: ch, Confidence: confFloor, Stats: stats})
			activationConfSum += confFloor
			continue
		}

		if stats.DurationSec < activationMinDur.Seconds() {
			stats.Notes = append(stats.Notes, fmt.Sprintf("too_short: %.2fs < %.2fs", stats.DurationSec, activationMinDur.Seconds()))
		}

		idx := ch - 1
		ratio := stats.MeanAbsDev[idx] / safeDiv(restStats.StdDev[idx])
		isolation := deviationShare(stats.MeanAbsDev, idx)
		conf := activationConfidence(ratio, isolation, stats.DurationSec)

		res.Channels = append(res.Channels, ChannelResult{
			Channel:         ch,
			RestMean:        restStats.Mean[idx],
			RestStdDev:      restStats.StdDev[idx],
			ActivationRatio: ratio,
			Isolation:       isolation,
			Confidence:      conf,
			Stats:           stats,
		})
		activationConfSum += conf

		fmt.Printf("  Channel %d: ratio=%.1fx | isolation=%.2f | conf=%.2f\n", ch, ratio, isolation, conf)
	}
	if len(checkChannels) > 0 {
		res.Confidence.Activation = clamp01(activationConfSum / float64(len(checkChannels)))
	}

	// ---------------- Drift recheck ----------------
	fmt.Println("\nStep 3/3: Rest drift recheck")
	fmt.Println("Relax all muscles again and hold still.")
	waitEnter(in, "Press ENTER to start drift capture (5s)...")

	_, driftStats, err := captureSamples(src, driftDuration, nil)
	if err != nil {
		fatal(err)
	}
	res.DriftStats = driftStats

	for ch := 0; ch < emg.NumChannels; ch++ {
		res.Drift[ch] = math.Abs(driftStats.Mean[ch]-restStats.Mean[ch]) / safeDiv(restStats.StdDev[ch])
	}
	res.Confidence.Drift = driftConfidence(res.Drift)

	fmt.Printf("Baseline drift (stddev units):")
	for ch := 0; ch < emg.NumChannels; ch++ {
		fmt.Printf(" %d:%.2f", ch+1, res.Drift[ch])
	}
	fmt.Printf(" | confidence=%.2f\n", res.Confidence.Drift)

	// ---------------- Overall confidence + store ----------------
	res.Confidence.Overall = overallConfidence(res.Confidence.Rest, res.Confidence.Activation, res.Confidence.Drift)

	if err := writeResult(res); err != nil {
		fatal(err)
	}

	fmt.Println("\nSignal check complete.")
	fmt.Printf("Overall confidence: %.2f\n", res.Confidence.Overall)
}

// ---------- Source selection ----------

func openSource(cfg *config.Config) (acquisition.Source, string, error) {
	if cfg.Device.Simulate {
		return acquisition.NewSimSource(cfg.Signal.SampleRate), "simulator", nil
	}
	src, err := acquisition.OpenSerial(cfg.Device.Port, uint(cfg.Device.Baud))
	if err != nil {
		return nil, "", err
	}
	return src, cfg.Device.Port, nil
}

func parseChannels(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		all := make([]int, emg.NumChannels)
		for i := range all {
			all[i] = i + 1
		}
		return all, nil
	}
	var out []int
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 1 || n > emg.NumChannels {
			return nil, fmt.Errorf("invalid channel %q (want 1-%d)", part, emg.NumChannels)
		}
		out = append(out, n)
	}
	return out, nil
}

// ---------- Sampling helpers ----------

// nextSample pulls packets until an EMG sample arrives; IMU packets are
// skipped.
func nextSample(src acquisition.Source) (ChannelVec, error) {
	for {
		pkt, err := src.Next()
		if err != nil {
			return ChannelVec{}, err
		}
		if p, ok := pkt.(*wire.EMGPacket); ok {
			return p.Channels, nil
		}
	}
}

func captureSamples(src acquisition.Source, dur time.Duration, baseline *ChannelVec) ([]ChannelVec, PhaseStats, error) {
	start := time.Now()
	deadline := start.Add(dur)

	var values []ChannelVec
	for time.Now().Before(deadline) {
		v, err := nextSample(src)
		if err != nil {
			return nil, PhaseStats{}, err
		}
		values = append(values, v)
	}
	stats := computeStats(values, time.Since(start), baseline)
	return values, stats, nil
}

func captureUntilEnterOrTimeout(in *bufio.Reader, src acquisition.Source, maxDur time.Duration, baseline *ChannelVec) ([]ChannelVec, PhaseStats, error) {
	start := time.Now()
	deadline := start.Add(maxDur)

	// Non-blocking ENTER detector: we start a goroutine waiting for newline
	stopCh := make(chan struct{}, 1)
	go func() {
		_, _ = in.ReadString('\n')
		stopCh <- struct{}{}
	}()

	var values []ChannelVec
	for {
		select {
		case <-stopCh:
			stats := computeStats(values, time.Since(start), baseline)
			return values, stats, nil
		default:
			if time.Now().After(deadline) {
				stats := computeStats(values, time.Since(start), baseline)
				stats.Notes = append(stats.Notes, "stopped_by_timeout")
				return values, stats, nil
			}
			v, err := nextSample(src)
			if err != nil {
				return nil, PhaseStats{}, err
			}
			values = append(values, v)
		}
	}
}

func computeStats(values []ChannelVec, dur time.Duration, baseline *ChannelVec) PhaseStats {
	n := len(values)
	if n == 0 {
		return PhaseStats{Samples: 0, DurationSec: dur.Seconds()}
	}

	var mean ChannelVec
	for _, v := range values {
		for ch := range mean {
			mean[ch] += v[ch]
		}
	}
	for ch := range mean {
		mean[ch] /= float64(n)
	}

	ref := mean
	if baseline != nil {
		ref = *baseline
	}

	var meanAbsDev, variance ChannelVec
	for _, v := range values {
		for ch := range v {
			meanAbsDev[ch] += math.Abs(v[ch] - ref[ch])
			d := v[ch] - mean[ch]
			variance[ch] += d * d
		}
	}

	var std ChannelVec
	for ch := range std {
		meanAbsDev[ch] /= float64(n)
		std[ch] = math.Sqrt(variance[ch] / float64(n))
	}

	return PhaseStats{
		Samples:     n,
		DurationSec: dur.Seconds(),
		Mean:        mean,
		MeanAbsDev:  meanAbsDev,
		StdDev:      std,
	}
}

// deviationShare returns the fraction of total mean deviation carried by
// channel idx.
func deviationShare(dev ChannelVec, idx int) float64 {
	sum := 0.0
	for _, d := range dev {
		sum += d
	}
	if sum <= 0 {
		return 0
	}
	return dev[idx] / sum
}

// ---------- Confidence heuristics ----------

func restConfidence(std ChannelVec) float64 {
	s := 0.0
	for _, v := range std {
		s += v
	}
	s /= float64(emg.NumChannels)

	switch {
	case s <= restStdGood:
		return 1.0
	case s >= restStdBad:
		return confFloor
	default:
		// Linear interpolation between good and bad
		t := (s - restStdGood) / (restStdBad - restStdGood)
		return clamp01(1.0 - 0.95*t)
	}
}

func activationConfidence(ratio, isolation, durationSec float64) float64 {
	// Duration factor
	durFactor := clamp01(durationSec / activationMinDur.Seconds())

	// Ratio factor
	var ratioFactor float64
	switch {
	case ratio >= activationGood:
		ratioFactor = 1
	case ratio <= activationBad:
		ratioFactor = 0.2
	default:
		t := (ratio - activationBad) / (activationGood - activationBad)
		ratioFactor = 0.2 + 0.8*clamp01(t)
	}

	// Isolation factor
	var isoFactor float64
	switch {
	case isolation >= isolationGood:
		isoFactor = 1
	case isolation <= isolationBad:
		isoFactor = 0.2
	default:
		t := (isolation - isolationBad) / (isolationGood - isolationBad)
		isoFactor = 0.2 + 0.8*clamp01(t)
	}

	conf := 0.25*durFactor + 0.40*ratioFactor + 0.35*isoFactor
	return clamp01(max(conf, confFloor))
}

func driftConfidence(drift ChannelVec) float64 {
	d := 0.0
	for _, v := range drift {
		d += v
	}
	d /= float64(emg.NumChannels)

	switch {
	case d <= driftGood:
		return 1.0
	case d >= driftBad:
		return confFloor
	default:
		t := (d - driftGood) / (driftBad - driftGood)
		return clamp01(1.0 - 0.95*t)
	}
}

func overallConfidence(rest, activation, drift float64) float64 {
	// Weighted; activation is the point of the exercise.
	wR, wA, wD := 0.30, 0.50, 0.20
	return clamp01(wR*rest + wA*activation + wD*drift)
}

// ---------- Output ----------

func writeResult(res CheckResult) error {
	ts := time.Now().Format("2006-01-02T15-04-05Z07-00")
	name := fmt.Sprintf("signal_check_%s.json", ts)

	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(name, b, 0o644); err != nil {
		return err
	}
	fmt.Printf("\nWrote: %s\n", name)
	return nil
}

// ---------- Console helpers ----------

func waitEnter(in *bufio.Reader, prompt string) {
	fmt.Print(prompt)
	_, _ = in.ReadString('\n')
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
	os.Exit(1)
}

// ---------- Small math helpers ----------

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func safeDiv(x float64) float64 {
	if math.Abs(x) < 1e-9 {
		if x >= 0 {
			return 1e-9
		}
		return -1e-9
	}
	return x
}
