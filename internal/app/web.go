package app

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/emg_monitor/internal/catalog"
	"github.com/relabs-tech/emg_monitor/internal/config"
	"github.com/relabs-tech/emg_monitor/internal/emg"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// webState caches the latest message per MQTT topic for the HTTP and
// websocket handlers.
type webState struct {
	mu sync.RWMutex

	status     emg.StatusUpdate
	haveStatus bool

	recording     emg.RecordingStatus
	haveRecording bool

	sample     emg.Sample
	haveSample bool

	imu     emg.IMUSample
	haveIMU bool
}

// wsFrame is one websocket push to the browser.
type wsFrame struct {
	Type      string               `json:"type"` // "state"
	Status    *emg.StatusUpdate    `json:"status,omitempty"`
	Recording *emg.RecordingStatus `json:"recording,omitempty"`
	Sample    *emg.Sample          `json:"sample,omitempty"`
	IMU       *emg.IMUSample       `json:"imu,omitempty"`
}

// RunWeb serves the browser monitor: JSON endpoints for channel status,
// recording state and the session catalog, a websocket live stream, and
// recording control relayed to the producer over MQTT.
func RunWeb(cfg *config.Config) error {
	state := &webState{}

	// 1) Connect to MQTT broker
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTT.Broker).
		SetClientID("emg-web")

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("web: connected to MQTT broker at %s", cfg.MQTT.Broker)

	// 2) Subscribe to the producer topics and update the cache
	subscribe := func(topic string, handler mqtt.MessageHandler) error {
		token := client.Subscribe(topic, 0, handler)
		token.Wait()
		if token.Error() != nil {
			return token.Error()
		}
		log.Printf("web: subscribed to %s", topic)
		return nil
	}

	if err := subscribe(cfg.MQTT.TopicStatus, func(_ mqtt.Client, msg mqtt.Message) {
		var s emg.StatusUpdate
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("web: status unmarshal error: %v", err)
			return
		}
		state.mu.Lock()
		state.status = s
		state.haveStatus = true
		state.mu.Unlock()
	}); err != nil {
		return err
	}

	if err := subscribe(cfg.MQTT.TopicRecording, func(_ mqtt.Client, msg mqtt.Message) {
		var r emg.RecordingStatus
		if err := json.Unmarshal(msg.Payload(), &r); err != nil {
			log.Printf("web: recording unmarshal error: %v", err)
			return
		}
		state.mu.Lock()
		state.recording = r
		state.haveRecording = true
		state.mu.Unlock()
	}); err != nil {
		return err
	}

	if err := subscribe(cfg.MQTT.TopicSamples, func(_ mqtt.Client, msg mqtt.Message) {
		var s emg.Sample
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("web: sample unmarshal error: %v", err)
			return
		}
		state.mu.Lock()
		state.sample = s
		state.haveSample = true
		state.mu.Unlock()
	}); err != nil {
		return err
	}

	if err := subscribe(cfg.MQTT.TopicIMU, func(_ mqtt.Client, msg mqtt.Message) {
		var s emg.IMUSample
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("web: imu unmarshal error: %v", err)
			return
		}
		state.mu.Lock()
		state.imu = s
		state.haveIMU = true
		state.mu.Unlock()
	}); err != nil {
		return err
	}

	// 3) Read-only catalog handle for the session listing
	var cat *catalog.Catalog
	if cfg.Recording.CatalogDir != "" {
		var err error
		cat, err = catalog.OpenReadOnly(cfg.Recording.CatalogDir)
		if err != nil {
			log.Printf("web: session catalog unavailable: %v", err)
		} else {
			defer cat.Close()
		}
	}

	// 4) JSON API endpoints
	http.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		state.mu.RLock()
		defer state.mu.RUnlock()

		if !state.haveStatus {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(state.status); err != nil {
			log.Printf("web: json encode error: %v", err)
		}
	})

	http.HandleFunc("/api/recording", func(w http.ResponseWriter, r *http.Request) {
		state.mu.RLock()
		defer state.mu.RUnlock()

		if !state.haveRecording {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(state.recording); err != nil {
			log.Printf("web: json encode error: %v", err)
		}
	})

	http.HandleFunc("/api/labels", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(emg.GestureLabels); err != nil {
			log.Printf("web: json encode error: %v", err)
		}
	})

	http.HandleFunc("/api/sessions", func(w http.ResponseWriter, r *http.Request) {
		if cat == nil {
			http.Error(w, "session catalog disabled", http.StatusServiceUnavailable)
			return
		}
		entries, err := cat.List(r.Context())
		if err != nil {
			log.Printf("web: session list error: %v", err)
			http.Error(w, "catalog query failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(entries); err != nil {
			log.Printf("web: json encode error: %v", err)
		}
	})

	// 5) Recording control relayed to the producer
	http.HandleFunc("/api/record", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST only", http.StatusMethodNotAllowed)
			return
		}
		var cmd emg.RecordingCommand
		if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
			http.Error(w, "bad command payload", http.StatusBadRequest)
			return
		}
		if cmd.Action != "start" && cmd.Action != "stop" {
			http.Error(w, "action must be start or stop", http.StatusBadRequest)
			return
		}
		if err := publishCommand(client, cfg.MQTT.TopicRecordingCmd, cmd); err != nil {
			log.Printf("web: recording command publish error: %v", err)
			http.Error(w, "command relay failed", http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})

	// 6) Websocket live stream
	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWS(w, r, state, client, cfg)
	})

	// 7) Static files from ./web as the root
	fs := http.FileServer(http.Dir("web"))
	http.Handle("/", fs)

	addr := cfg.Web.Bind
	log.Printf("web server listening on %s", addr)
	return http.ListenAndServe(addr, nil)
}

func publishCommand(client mqtt.Client, topic string, cmd emg.RecordingCommand) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	token := client.Publish(topic, 0, false, payload)
	token.Wait()
	return token.Error()
}

// serveWS pushes the cached state to the browser ten times a second and
// accepts recording commands on the same connection.
func serveWS(w http.ResponseWriter, r *http.Request, state *webState, client mqtt.Client, cfg *config.Config) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	done := make(chan struct{})

	// Reader: recording commands from the page
	go func() {
		defer close(done)
		for {
			var cmd emg.RecordingCommand
			if err := conn.ReadJSON(&cmd); err != nil {
				return
			}
			if cmd.Action != "start" && cmd.Action != "stop" {
				continue
			}
			if err := publishCommand(client, cfg.MQTT.TopicRecordingCmd, cmd); err != nil {
				log.Printf("web: recording command publish error: %v", err)
			}
		}
	}()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			frame := snapshotFrame(state)
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
		}
	}
}

func snapshotFrame(state *webState) wsFrame {
	state.mu.RLock()
	defer state.mu.RUnlock()

	frame := wsFrame{Type: "state"}
	if state.haveStatus {
		s := state.status
		frame.Status = &s
	}
	if state.haveRecording {
		r := state.recording
		frame.Recording = &r
	}
	if state.haveSample {
		s := state.sample
		frame.Sample = &s
	}
	if state.haveIMU {
		s := state.imu
		frame.IMU = &s
	}
	return frame
}
