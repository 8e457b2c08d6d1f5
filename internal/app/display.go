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

	"github.com/relabs-tech/posture_monitor/internal/config"
	"github.com/relabs-tech/posture_monitor/internal/posture"
)

const (
	displayW = 128
	displayH = 64
)

// DisplayData holds the latest data for display
type DisplayData struct {
	mu sync.RWMutex

	reading     Reading
	haveReading bool

	transition     posture.Transition
	haveTransition bool
}

func (d *DisplayData) snapshot() DisplayData {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return DisplayData{
		reading:        d.reading,
		haveReading:    d.haveReading,
		transition:     d.transition,
		haveTransition: d.haveTransition,
	}
}

// RunDisplay shows the latest tilt and posture on an SSD1306 OLED.
func RunDisplay() error {
	cfg := config.Get()
	if cfg.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required for the display")
	}

	// Initialize periph
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	// Open I2C bus
	bus, err := i2creg.Open(cfg.DisplayI2CBus)
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	// ssd1306.NewI2C always talks to 0x3C; config rejects any other address.
	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Printf("display: initialized at 0x%02X", cfg.DisplayI2CAddr)

	if err := dev.Draw(dev.Bounds(), renderSplash(), image.Point{}); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	data := &DisplayData{}

	// Connect to MQTT
	mqttOpts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDDisplay)

	client := mqtt.NewClient(mqttOpts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("display: connected to MQTT broker at %s", cfg.MQTTBroker)

	if err := subscribeDisplay(client, cfg, data); err != nil {
		return err
	}

	// Display update loop
	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	log.Println("display: starting update loop")

	for range ticker.C {
		snapshot := data.snapshot()
		if err := dev.Draw(dev.Bounds(), renderPosture(&snapshot), image.Point{}); err != nil {
			log.Printf("display: error updating display: %v", err)
		}
	}
	return nil
}

func subscribeDisplay(client mqtt.Client, cfg *config.Config, data *DisplayData) error {
	token := client.Subscribe(cfg.TopicTilt, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var r Reading
		if err := json.Unmarshal(msg.Payload(), &r); err != nil {
			log.Printf("display: reading unmarshal error: %v", err)
			return
		}
		data.mu.Lock()
		data.reading = r
		data.haveReading = true
		data.mu.Unlock()
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("display: subscribed to %s", cfg.TopicTilt)

	token = client.Subscribe(cfg.TopicPosture, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var t posture.Transition
		if err := json.Unmarshal(msg.Payload(), &t); err != nil {
			log.Printf("display: transition unmarshal error: %v", err)
			return
		}
		data.mu.Lock()
		data.transition = t
		data.haveTransition = true
		data.mu.Unlock()
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("display: subscribed to %s", cfg.TopicPosture)
	return nil
}

func newCanvas() (*image1bit.VerticalLSB, *font.Drawer) {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, displayW, displayH))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	return img, drawer
}

func renderPosture(data *DisplayData) *image1bit.VerticalLSB {
	img, drawer := newCanvas()

	if !data.haveReading {
		drawer.Dot = fixed.P(0, 26)
		drawer.DrawString("Posture")
		drawer.Dot = fixed.P(0, 39)
		drawer.DrawString("Waiting...")
		return img
	}

	r := data.reading
	drawer.Dot = fixed.P(0, 13)
	drawer.DrawString(fmt.Sprintf("Tilt: %6.1f", r.Angle))

	drawer.Dot = fixed.P(0, 26)
	drawer.DrawString(fmt.Sprintf("State: %s", r.State))

	drawer.Dot = fixed.P(0, 39)
	drawer.DrawString(fmt.Sprintf("R%5.0f P%5.0f", r.Pose.Roll, r.Pose.Pitch))

	if data.haveTransition {
		drawer.Dot = fixed.P(0, 52)
		drawer.DrawString(fmt.Sprintf("since %s", data.transition.Time.Format("15:04:05")))
	}
	return img
}

func renderSplash() *image1bit.VerticalLSB {
	img, drawer := newCanvas()

	drawer.Dot = fixed.P(10, 26)
	drawer.DrawString("Posture Pi")

	drawer.Dot = fixed.P(5, 43)
	drawer.DrawString("LIS3DSH tilt")
	return img
}
