package events

import (
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MQTTPublisher pushes triggered tokens to a broker topic for cash devices
// that subscribe instead of long-polling. Publish-only.
type MQTTPublisher struct {
	client mqtt.Client
	log    *zap.Logger
}

func NewMQTTPublisher(url, user, password string, log *zap.Logger) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(url).
		SetUsername(user).
		SetPassword(password).
		SetClientID("cashtoken-" + uuid.NewString()[:8])

	client := mqtt.NewClient(opts)
	token := client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}

	log.Info("mqtt connected", zap.String("url", url))
	return &MQTTPublisher{client: client, log: log}, nil
}

func (p *MQTTPublisher) Publish(topic string, payload []byte) error {
	token := p.client.Publish(topic, 0, false, payload)
	token.Wait()
	return token.Error()
}

func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
