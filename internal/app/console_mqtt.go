package app

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/posture_monitor/internal/config"
	"github.com/relabs-tech/posture_monitor/internal/posture"
)

// RunConsoleMQTT prints readings and posture changes published by the monitor.
func RunConsoleMQTT() error {
	cfg := config.Get()
	if cfg.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required for the console")
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	// Subscribe to readings
	tiltToken := client.Subscribe(cfg.TopicTilt, 0, func(_ mqtt.Client, msg mqtt.Message) {
		if err := printReading(os.Stdout, msg.Payload()); err != nil {
			log.Printf("console: reading unmarshal error: %v", err)
		}
	})
	tiltToken.Wait()
	if tiltToken.Error() != nil {
		return tiltToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicTilt)

	// Subscribe to transitions
	postureToken := client.Subscribe(cfg.TopicPosture, 0, func(_ mqtt.Client, msg mqtt.Message) {
		if err := printTransition(os.Stdout, msg.Payload()); err != nil {
			log.Printf("console: transition unmarshal error: %v", err)
		}
	})
	postureToken.Wait()
	if postureToken.Error() != nil {
		return postureToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicPosture)

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}

func printReading(w io.Writer, payload []byte) error {
	var r Reading
	if err := json.Unmarshal(payload, &r); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w,
		"[TILT] angle=%6.2f mean=%5.3f state=%-7s  x=%6d y=%6d z=%6d  roll=%6.2f pitch=%6.2f\n",
		r.Angle, r.Mean, r.State, r.Raw.X, r.Raw.Y, r.Raw.Z, r.Pose.Roll, r.Pose.Pitch,
	)
	return err
}

func printTransition(w io.Writer, payload []byte) error {
	var t posture.Transition
	if err := json.Unmarshal(payload, &t); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "[POSE] %s -> %s at %.2f degrees (%s)\n",
		t.From, t.To, t.Angle, t.Time.Format("15:04:05"))
	return err
}
