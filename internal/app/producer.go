// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/emg_monitor/internal/acquisition"
	"github.com/relabs-tech/emg_monitor/internal/catalog"
	"github.com/relabs-tech/emg_monitor/internal/config"
	"github.com/relabs-tech/emg_monitor/internal/emg"
	"github.com/relabs-tech/emg_monitor/internal/record"
	"github.com/relabs-tech/emg_monitor/internal/signal"
	"github.com/relabs-tech/emg_monitor/internal/vision"
	"github.com/relabs-tech/emg_monitor/internal/wire"
)

const reconnectDelay = 2 * time.Second

// producer wires the acquisition loop to the tracker engine, the vision
// pipeline, the recorder, and MQTT.
type producer struct {
	cfg         *config.Config
	client      mqtt.Client
	engine      *signal.Engine
	recorder    *record.Recorder
	cat         *catalog.Catalog
	visionReady func() bool

	ticks uint64 // EMG ticks since stream start, drives the clocks

	mu          sync.Mutex
	lastArchive string
	lastRecErr  string
}

// RunProducer acquires EMG packets from the device (or the built-in
// simulator), runs the per-channel baseline trackers, and publishes
// samples, channel status, IMU readings, and recording state over MQTT.
func RunProducer(cfg *config.Config) error {
	log.Println("starting emg signal producer")

	engine := signal.NewEngine(engineParams(cfg))

	// ---- 1) Vision pipeline (camera frames + hand pose detection) ----
	slot := &vision.Slot{}
	visionReady := func() bool { return true }
	if cfg.Camera.Enabled {
		loadDelay := time.Duration(cfg.Camera.LoadDelayMS) * time.Millisecond
		loader := vision.StartLoad(func() (vision.Detector, error) {
			time.Sleep(loadDelay) // detector model load
			return vision.NewSynthDetector(), nil
		})
		visionReady = loader.Ready

		frames := vision.NewSynthFrames(cfg.Camera.Width, cfg.Camera.Height)
		rate := vision.NewRateController(cfg.Camera.DetectPresent, cfg.Camera.DetectAbsent)
		pipeline := vision.NewPipeline(frames, loader, rate, slot, cfg.Camera.FPS)
		go pipeline.Run()
		log.Printf("producer: vision pipeline at %d fps, detector loading in background", cfg.Camera.FPS)
	}

	// ---- 2) Recorder and session catalog ----
	recorder := record.NewRecorder(slot, visionReady, record.Params{
		SampleRate:    cfg.Signal.SampleRate,
		CameraFPS:     cfg.Camera.FPS,
		CameraEnabled: cfg.Camera.Enabled,
		MaxImages:     cfg.Recording.MaxImages,
	})

	var cat *catalog.Catalog
	if cfg.Recording.CatalogDir != "" {
		var err error
		cat, err = catalog.Open(cfg.Recording.CatalogDir)
		if err != nil {
			return fmt.Errorf("open session catalog: %w", err)
		}
		defer cat.Close()
		log.Printf("producer: session catalog at %s", cat.Path())
	}

	// ---- 3) Connect to MQTT broker ----
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTT.Broker).
		SetClientID("emg-producer")

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalf("MQTT connect error: %v", token.Error())
		return token.Error()
	}
	defer client.Disconnect(250)

	log.Printf("connected to MQTT broker at %s", cfg.MQTT.Broker)

	p := &producer{
		cfg:         cfg,
		client:      client,
		engine:      engine,
		recorder:    recorder,
		cat:         cat,
		visionReady: visionReady,
	}

	// ---- 4) Recording control over MQTT ----
	token := client.Subscribe(cfg.MQTT.TopicRecordingCmd, 0, p.onRecordingCommand)
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("producer: subscribed to %s", cfg.MQTT.TopicRecordingCmd)

	go p.logRecorderEvents()

	// ---- 5) Acquisition loop with reconnect ----
	var watcher *acquisition.PortWatcher
	if !cfg.Device.Simulate {
		watcher = acquisition.WatchPort(cfg.Device.Port)
		defer watcher.Close()
	}

	for {
		src, err := p.openSource()
		if err != nil {
			log.Printf("producer: open source: %v", err)
			p.engine.SetConnected(false)
			p.waitForDevice(watcher)
			continue
		}

		p.engine.SetConnected(true)
		log.Println("producer: device connected, streaming")

		err = p.stream(src)
		p.logLinkStats(src)
		src.Close()
		p.engine.SetConnected(false)
		log.Printf("producer: stream ended: %v", err)

		// A recording cannot outlive its stream. Finalize with the
		// frames captured so far.
		if p.recorder.State() == record.Recording {
			log.Println("producer: device lost mid-recording, finalizing")
			p.stopRecording()
		}

		// Electrode contact changes across a reconnect; settle again.
		p.engine.Reseed()
		p.waitForDevice(watcher)
	}
}

func (p *producer) openSource() (acquisition.Source, error) {
	if p.cfg.Device.Simulate {
		log.Println("producer: using built-in signal simulator")
		return acquisition.NewSimSource(p.cfg.Signal.SampleRate), nil
	}
	return acquisition.OpenSerial(p.cfg.Device.Port, uint(p.cfg.Device.Baud))
}

// waitForDevice sleeps until the next hotplug nudge or the retry timer.
func (p *producer) waitForDevice(w *acquisition.PortWatcher) {
	select {
	case <-w.Events():
		log.Println("producer: hotplug event, retrying now")
	case <-time.After(reconnectDelay):
	}
}

// stream drains packets from src until it fails, feeding the engine and
// fanning out publications.
func (p *producer) stream(src acquisition.Source) error {
	for {
		pkt, err := src.Next()
		if err != nil {
			return err
		}

		switch pkt := pkt.(type) {
		case *wire.EMGPacket:
			p.onSample(pkt)
		case *wire.IMUPacket:
			p.publishIMU(pkt)
		}
	}
}

// onSample advances all per-tick machinery for one EMG packet.
func (p *producer) onSample(pkt *wire.EMGPacket) {
	sample := emg.Sample{
		Timestamp: float64(p.ticks) / float64(p.cfg.Signal.SampleRate),
		Values:    pkt.Channels,
		Seq:       pkt.Seq,
	}
	p.ticks++

	update := p.engine.Ingest(sample.Values)

	if err := p.recorder.Tick(sample); err != nil {
		if !errors.Is(err, record.ErrNotRecording) && !errors.Is(err, record.ErrFinalized) {
			log.Printf("producer: recorder tick: %v", err)
		}
	}

	if p.ticks%uint64(p.cfg.Stream.SampleEvery) == 0 {
		p.publishJSON(p.cfg.MQTT.TopicSamples, sample)
	}
	if p.ticks%uint64(p.cfg.Stream.StatusEvery) == 0 {
		p.publishJSON(p.cfg.MQTT.TopicStatus, update)
		p.publishJSON(p.cfg.MQTT.TopicRecording, p.recordingStatus())
	}

	// Heartbeat line roughly every 10 s of stream time.
	if p.ticks%uint64(10*p.cfg.Signal.SampleRate) == 0 {
		log.Printf("producer: t=%.1fs ticks=%d seeding=%v strength=%.0f",
			update.Elapsed, update.Ticks, update.Seeding, update.Strength)
	}
}

func (p *producer) publishIMU(pkt *wire.IMUPacket) {
	sample := emg.IMUSample{
		Timestamp: float64(p.ticks) / float64(p.cfg.Signal.SampleRate),
		Gx:        pkt.Gyro[0],
		Gy:        pkt.Gyro[1],
		Gz:        pkt.Gyro[2],
		Ax:        pkt.Accel[0],
		Ay:        pkt.Accel[1],
		Az:        pkt.Accel[2],
	}
	p.publishJSON(p.cfg.MQTT.TopicIMU, sample)
}

func (p *producer) logLinkStats(src acquisition.Source) {
	if ss, ok := src.(*acquisition.SerialSource); ok {
		st := ss.Stats()
		log.Printf("producer: link stats: %d packets, %d lost, %d bytes skipped",
			st.Packets, st.Lost, st.Dropped)
	}
}

// onRecordingCommand reacts to start/stop messages from the web monitor
// or any other MQTT client.
func (p *producer) onRecordingCommand(_ mqtt.Client, msg mqtt.Message) {
	var cmd emg.RecordingCommand
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		log.Printf("producer: recording command unmarshal error: %v", err)
		return
	}

	switch cmd.Action {
	case "start":
		p.startRecording(cmd.Label)
	case "stop":
		p.stopRecording()
	default:
		log.Printf("producer: unknown recording action %q", cmd.Action)
	}
}

func (p *producer) startRecording(label string) {
	if label == "" {
		label = "custom"
	}

	p.mu.Lock()
	p.lastArchive, p.lastRecErr = "", ""
	p.mu.Unlock()

	if err := p.recorder.Start(label); err != nil {
		log.Printf("producer: recording start rejected: %v", err)
		p.setRecordingError(err)
		p.publishJSON(p.cfg.MQTT.TopicRecording, p.recordingStatus())
		return
	}

	// An idle reseed must never fire mid-recording.
	p.engine.SuspendRecalibration(true)
	p.publishJSON(p.cfg.MQTT.TopicRecording, p.recordingStatus())
}

func (p *producer) stopRecording() {
	session, err := p.recorder.Stop()
	p.engine.SuspendRecalibration(false)
	if err != nil {
		log.Printf("producer: recording stop rejected: %v", err)
		p.setRecordingError(err)
		p.publishJSON(p.cfg.MQTT.TopicRecording, p.recordingStatus())
		return
	}

	path, err := record.WriteArchive(p.cfg.Recording.Dir, session)
	if err != nil {
		log.Printf("producer: archive write failed: %v", err)
		p.setRecordingError(err)
		p.publishJSON(p.cfg.MQTT.TopicRecording, p.recordingStatus())
		return
	}
	log.Printf("producer: archived %d frames to %s", session.FrameCount(), path)

	if p.cat != nil {
		meta := session.Metadata()
		entry := catalog.Entry{
			ID:        session.ID.String(),
			Label:     meta.GestureLabel,
			Path:      path,
			StartTime: session.StartTime(),
			Duration:  meta.Duration,
			Frames:    meta.NumFrames,
		}
		if err := p.cat.Add(context.Background(), entry); err != nil {
			log.Printf("producer: catalog insert failed: %v", err)
		}
	}

	p.mu.Lock()
	p.lastArchive = path
	p.mu.Unlock()

	p.publishJSON(p.cfg.MQTT.TopicRecording, p.recordingStatus())
}

func (p *producer) setRecordingError(err error) {
	p.mu.Lock()
	p.lastRecErr = err.Error()
	p.mu.Unlock()
}

func (p *producer) recordingStatus() emg.RecordingStatus {
	p.mu.Lock()
	path, errMsg := p.lastArchive, p.lastRecErr
	p.mu.Unlock()

	st := emg.RecordingStatus{
		State: p.recorder.State().String(),
		Ready: p.visionReady(),
		Path:  path,
		Error: errMsg,
	}
	if s := p.recorder.Session(); s != nil {
		st.Label = s.Label
		st.Frames = s.FrameCount()
		st.Elapsed = p.recorder.Elapsed()
	}
	return st
}

// logRecorderEvents drains the recorder notification stream. Transitions
// always log; frame events log once per second of recorded motion.
func (p *producer) logRecorderEvents() {
	for ev := range p.recorder.Events() {
		switch ev.Kind {
		case record.EventStarted:
			log.Printf("recording: started label=%s", ev.Label)
		case record.EventFrame:
			if ev.Frames%p.cfg.Signal.SampleRate == 0 {
				log.Printf("recording: %s at %d frames (%.1f s)",
					ev.Label, ev.Frames, float64(ev.Frames)/float64(p.cfg.Signal.SampleRate))
			}
		case record.EventFinalized:
			log.Printf("recording: finalized label=%s frames=%d duration=%.2fs",
				ev.Label, ev.Frames, ev.Meta.Duration)
		}
	}
}

func (p *producer) publishJSON(topic string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Printf("producer: json marshal error (%s): %v", topic, err)
		return
	}
	if token := p.client.Publish(topic, 0, true, payload); token.Wait() && token.Error() != nil {
		log.Printf("producer: MQTT publish error (%s): %v", topic, token.Error())
	}
}

// engineParams maps the configuration onto tracker engine parameters.
func engineParams(cfg *config.Config) signal.EngineParams {
	thresholds, err := signal.NewThresholds([]signal.Band{
		{MinRatio: cfg.Thresholds.Weak, Level: emg.Weak},
		{MinRatio: cfg.Thresholds.Good, Level: emg.Good},
		{MinRatio: cfg.Thresholds.Strong, Level: emg.Strong},
		{MinRatio: cfg.Thresholds.Optimal, Level: emg.Optimal},
	})
	if err != nil {
		// unreachable with a validated config
		thresholds = signal.DefaultThresholds()
	}
	return signal.EngineParams{
		Tracker: signal.TrackerParams{
			SeedSamples: cfg.Signal.SeedSamples,
			SeedAlpha:   cfg.Signal.SeedAlpha,
			Alpha:       cfg.Signal.Alpha,
			NoiseAlpha:  cfg.Signal.NoiseAlpha,
			GateRatio:   cfg.Signal.GateRatio,
			MinNoise:    cfg.Signal.MinNoiseUV,
		},
		Thresholds:    thresholds,
		SampleRate:    cfg.Signal.SampleRate,
		BufferSecs:    cfg.Signal.BufferSecs,
		RecalEnabled:  cfg.Signal.Recalibrate,
		RecalInterval: cfg.RecalIntervalTicks(),
	}
}
