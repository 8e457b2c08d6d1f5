package app

import (
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/posture_monitor/internal/posture"
)

// Publisher sends monitor output to other processes.
type Publisher interface {
	PublishReading(Reading) error
	PublishTransition(posture.Transition) error
}

// MQTTPublisher publishes JSON readings and transitions.
type MQTTPublisher struct {
	client       mqtt.Client
	topicTilt    string
	topicPosture string
}

// NewMQTTPublisher wraps a connected client.
func NewMQTTPublisher(client mqtt.Client, topicTilt, topicPosture string) *MQTTPublisher {
	return &MQTTPublisher{client: client, topicTilt: topicTilt, topicPosture: topicPosture}
}

// PublishReading publishes r on the tilt topic.
func (p *MQTTPublisher) PublishReading(r Reading) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("json marshal error (reading): %w", err)
	}
	return p.publish(p.topicTilt, false, payload)
}

// PublishTransition publishes t, retained, on the posture topic.
func (p *MQTTPublisher) PublishTransition(t posture.Transition) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("json marshal error (transition): %w", err)
	}
	return p.publish(p.topicPosture, true, payload)
}

func (p *MQTTPublisher) publish(topic string, retained bool, payload []byte) error {
	if token := p.client.Publish(topic, 0, retained, payload); token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT publish error (%s): %w", topic, token.Error())
	}
	return nil
}
