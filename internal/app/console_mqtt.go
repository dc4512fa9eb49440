package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/emg_monitor/internal/config"
	"github.com/relabs-tech/emg_monitor/internal/emg"
)

// qualityShort maps a quality level to its fixed-width console tag.
func qualityShort(q emg.Quality) string {
	switch q {
	case emg.Standby:
		return "STBY"
	case emg.Weak:
		return "WEAK"
	case emg.Good:
		return "GOOD"
	case emg.Strong:
		return "STRG"
	case emg.Optimal:
		return "OPTI"
	default:
		return "????"
	}
}

// RunConsoleMQTT prints live channel status, crosstalk advisories, and
// recording transitions from the MQTT stream.
func RunConsoleMQTT(cfg *config.Config) error {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTT.Broker).
		SetClientID("emg-console")

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTT.Broker)

	// Subscribe to channel status
	var statusCount uint64
	statusToken := client.Subscribe(cfg.MQTT.TopicStatus, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s emg.StatusUpdate
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("console: status unmarshal error: %v", err)
			return
		}

		n := atomic.AddUint64(&statusCount, 1)
		if n%uint64(cfg.Stream.ConsoleEvery) != 0 {
			return
		}

		printStatus(s)
		printCrosstalk(s, cfg.Thresholds.Crosstalk)
	})
	statusToken.Wait()
	if statusToken.Error() != nil {
		return statusToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.MQTT.TopicStatus)

	// Subscribe to recording state; only transitions get a line
	var lastRecState atomic.Value
	lastRecState.Store("")
	recToken := client.Subscribe(cfg.MQTT.TopicRecording, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var r emg.RecordingStatus
		if err := json.Unmarshal(msg.Payload(), &r); err != nil {
			log.Printf("console: recording unmarshal error: %v", err)
			return
		}

		if lastRecState.Load().(string) == r.State {
			return
		}
		lastRecState.Store(r.State)

		switch r.State {
		case "recording":
			fmt.Printf("[REC ]  started  label=%s\n", r.Label)
		case "finalized":
			fmt.Printf("[REC ]  finalized  label=%s frames=%d elapsed=%.1fs path=%s\n",
				r.Label, r.Frames, r.Elapsed, r.Path)
		case "idle":
			if r.Error != "" {
				fmt.Printf("[REC ]  idle  error=%s\n", r.Error)
			}
		}
	})
	recToken.Wait()
	if recToken.Error() != nil {
		return recToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.MQTT.TopicRecording)

	// Subscribe to IMU readings, printed at the console cadence
	var imuCount uint64
	imuToken := client.Subscribe(cfg.MQTT.TopicIMU, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s emg.IMUSample
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("console: imu unmarshal error: %v", err)
			return
		}

		n := atomic.AddUint64(&imuCount, 1)
		if n%uint64(cfg.Stream.ConsoleEvery) != 0 {
			return
		}

		fmt.Printf("[IMU ]  gx=%7.3f gy=%7.3f gz=%7.3f  ax=%7.3f ay=%7.3f az=%7.3f\n",
			s.Gx, s.Gy, s.Gz, s.Ax, s.Ay, s.Az)
	})
	imuToken.Wait()
	if imuToken.Error() != nil {
		return imuToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.MQTT.TopicIMU)

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}

func printStatus(s emg.StatusUpdate) {
	var b strings.Builder
	for i, ch := range s.Channels {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%d:%s", ch.Channel+1, qualityShort(ch.Quality))
	}

	phase := "live"
	if s.Seeding {
		phase = "seed"
	}
	if !s.Connected {
		phase = "disc"
	}

	fmt.Printf("[EMG ]  t=%7.1fs %s strength=%3.0f | %s\n", s.Elapsed, phase, s.Strength, b.String())
}

// printCrosstalk flags channels hovering just under the activation band
// while another channel is clearly active; that pattern usually means
// bleed-through from a neighboring electrode rather than intent.
func printCrosstalk(s emg.StatusUpdate, advisory float64) {
	if advisory <= 0 || s.Seeding {
		return
	}

	active := -1
	for i, ch := range s.Channels {
		if ch.Quality >= emg.Good && (active < 0 || ch.Ratio > s.Channels[active].Ratio) {
			active = i
		}
	}
	if active < 0 {
		return
	}

	for i, ch := range s.Channels {
		if i == active {
			continue
		}
		if ch.Quality == emg.Standby && ch.Ratio >= advisory {
			fmt.Printf("[XTLK]  ch %d at %.1fx while ch %d is %s: check electrode spacing\n",
				i+1, ch.Ratio, active+1, qualityShort(s.Channels[active].Quality))
		}
	}
}
