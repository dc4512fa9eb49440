package app

import (
	"encoding/json"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/emg_monitor/internal/config"
	"github.com/relabs-tech/emg_monitor/internal/emg"
)

// DisplayData holds the latest data for the status panel
type DisplayData struct {
	mu sync.RWMutex

	status     emg.StatusUpdate
	haveStatus bool

	recording     emg.RecordingStatus
	haveRecording bool
}

// RunDisplay drives an SSD1306 panel with per-channel quality bars, the
// aggregate strength figure, and the recording state.
func RunDisplay(cfg *config.Config) error {
	// Initialize periph
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	// Open I2C bus
	bus, err := i2creg.Open(cfg.Display.I2CBus)
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(bus, cfg.Display.I2CAddr, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Printf("display: panel initialized at 0x%02X", cfg.Display.I2CAddr)

	if err := showSplash(dev); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	// Data storage
	data := &DisplayData{}

	// Connect to MQTT
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTT.Broker).
		SetClientID("emg-display")

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("display: connected to MQTT broker at %s", cfg.MQTT.Broker)

	statusToken := client.Subscribe(cfg.MQTT.TopicStatus, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s emg.StatusUpdate
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("display: status unmarshal error: %v", err)
			return
		}
		data.mu.Lock()
		data.status = s
		data.haveStatus = true
		data.mu.Unlock()
	})
	statusToken.Wait()
	if statusToken.Error() != nil {
		return statusToken.Error()
	}
	log.Printf("display: subscribed to %s", cfg.MQTT.TopicStatus)

	recToken := client.Subscribe(cfg.MQTT.TopicRecording, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var r emg.RecordingStatus
		if err := json.Unmarshal(msg.Payload(), &r); err != nil {
			log.Printf("display: recording unmarshal error: %v", err)
			return
		}
		data.mu.Lock()
		data.recording = r
		data.haveRecording = true
		data.mu.Unlock()
	})
	recToken.Wait()
	if recToken.Error() != nil {
		return recToken.Error()
	}
	log.Printf("display: subscribed to %s", cfg.MQTT.TopicRecording)

	// Display update loop
	ticker := time.NewTicker(time.Duration(cfg.Display.RefreshMS) * time.Millisecond)
	defer ticker.Stop()

	log.Println("display: starting update loop")

	for range ticker.C {
		data.mu.RLock()
		snapshot := DisplayData{
			status:        data.status,
			haveStatus:    data.haveStatus,
			recording:     data.recording,
			haveRecording: data.haveRecording,
		}
		data.mu.RUnlock()

		if err := updateStatusDisplay(dev, &snapshot); err != nil {
			log.Printf("display: error updating display: %v", err)
		}
	}

	return nil
}

func updateStatusDisplay(dev *ssd1306.Dev, data *DisplayData) error {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))

	// Blank image
	for i := 0; i < 1024; i++ {
		img.Pix[i] = 0
	}

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}

	if !data.haveStatus {
		drawer.Dot = fixed.P(0, 26)
		drawer.DrawBytes([]byte("EMG Monitor"))
		drawer.Dot = fixed.P(0, 39)
		drawer.DrawBytes([]byte("Waiting..."))
		return dev.Draw(dev.Bounds(), img, image.Point{})
	}

	s := data.status

	// Header: stream phase and aggregate strength
	phase := "LIVE"
	if s.Seeding {
		phase = "SEED"
	}
	if !s.Connected {
		phase = "DISC"
	}
	drawer.Dot = fixed.P(0, 13)
	drawer.DrawBytes([]byte(fmt.Sprintf("%s %3.0f%%", phase, s.Strength)))

	// Recording marker, top right
	if data.haveRecording {
		switch data.recording.State {
		case "recording":
			drawer.Dot = fixed.P(100, 13)
			drawer.DrawBytes([]byte("REC"))
		case "finalized":
			drawer.Dot = fixed.P(93, 13)
			drawer.DrawBytes([]byte("SAVE"))
		}
	}

	// One quality bar per channel, numbered underneath
	for i, ch := range s.Channels {
		x := i * 16
		h := int(ch.Quality) * 7
		if h > 0 {
			fillRect(img, x+2, 48-h, x+14, 48)
		} else {
			// Baseline tick so idle channels stay visible
			fillRect(img, x+2, 47, x+14, 48)
		}

		drawer.Dot = fixed.P(x+4, 62)
		drawer.DrawBytes([]byte(fmt.Sprintf("%d", i+1)))
	}

	return dev.Draw(dev.Bounds(), img, image.Point{})
}

func fillRect(img *image1bit.VerticalLSB, x0, y0, x1, y1 int) {
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			img.Set(x, y, image1bit.On)
		}
	}
}

func showSplash(dev *ssd1306.Dev) error {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))

	// Blank image
	for i := 0; i < 1024; i++ {
		img.Pix[i] = 0
	}

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}

	drawer.Dot = fixed.P(10, 26)
	drawer.DrawBytes([]byte("EMG Monitor"))

	drawer.Dot = fixed.P(5, 43)
	drawer.DrawBytes([]byte("Waiting for"))

	drawer.Dot = fixed.P(25, 56)
	drawer.DrawBytes([]byte("signal"))

	return dev.Draw(dev.Bounds(), img, image.Point{})
}
