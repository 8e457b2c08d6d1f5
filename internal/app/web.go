package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/relabs-tech/posture_monitor/internal/config"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// liveHub keeps the latest reading and streams every new one to websocket clients.
type liveHub struct {
	mu      sync.RWMutex
	last    Reading
	raw     []byte
	have    bool
	clients map[chan []byte]struct{}

	registry  *prometheus.Registry
	received  prometheus.Counter
	connected prometheus.Gauge
}

func newLiveHub() *liveHub {
	h := &liveHub{
		clients:  make(map[chan []byte]struct{}),
		registry: prometheus.NewRegistry(),
		received: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "posture_web_readings_total",
			Help: "Readings received from MQTT.",
		}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "posture_web_clients",
			Help: "Connected websocket clients.",
		}),
	}
	h.registry.MustRegister(h.received, h.connected)
	return h
}

// update stores a JSON reading and forwards it to every client. Slow
// clients miss readings rather than blocking the MQTT callback.
func (h *liveHub) update(payload []byte) error {
	var r Reading
	if err := json.Unmarshal(payload, &r); err != nil {
		return err
	}
	h.received.Inc()

	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = r
	h.raw = append([]byte(nil), payload...)
	h.have = true
	for ch := range h.clients {
		select {
		case ch <- h.raw:
		default:
		}
	}
	return nil
}

func (h *liveHub) subscribe() chan []byte {
	ch := make(chan []byte, 16)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	if h.have {
		ch <- h.raw
	}
	h.mu.Unlock()
	h.connected.Inc()
	return ch
}

func (h *liveHub) unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	h.connected.Dec()
}

func (h *liveHub) handleLatest(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.have {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.last); err != nil {
		log.Printf("web: json encode error: %v", err)
	}
}

func (h *liveHub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	ch := h.subscribe()
	defer h.unsubscribe(ch)

	// Reads only detect the client going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("web: websocket error: %v", err)
				}
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case payload := <-ch:
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}

func (h *liveHub) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/posture", h.handleLatest)
	mux.HandleFunc("/ws", h.handleWS)
	mux.Handle("/metrics", promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{}))
	mux.Handle("/", http.FileServer(http.Dir("web")))
	return mux
}

// RunWeb serves the latest reading, a websocket stream and metrics, fed from MQTT.
func RunWeb() error {
	cfg := config.Get()
	if cfg.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required for the web server")
	}
	hub := newLiveHub()

	// 1) Connect to MQTT broker
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDWeb)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("web: connected to MQTT broker at %s", cfg.MQTTBroker)

	// 2) Subscribe to readings and update the hub on each message
	token := client.Subscribe(cfg.TopicTilt, 0, func(_ mqtt.Client, msg mqtt.Message) {
		if err := hub.update(msg.Payload()); err != nil {
			log.Printf("web: MQTT payload unmarshal error: %v", err)
		}
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("web: subscribed to MQTT topic %s", cfg.TopicTilt)

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web: server listening on %s", addr)
	return http.ListenAndServe(addr, hub.routes())
}
