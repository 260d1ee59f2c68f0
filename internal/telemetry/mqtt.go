package telemetry

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTPublisher publishes periodic snapshot payloads to a broker, in the
// shape of MQTTPublisher (mqtt_publisher.go): a paho.mqtt.golang client
// with auto-reconnect, a single background ticker goroutine, and a JSON
// payload per tick.
type MQTTPublisher struct {
	client      mqtt.Client
	topicPrefix string
	interval    time.Duration
}

// metricPayload mirrors MetricPayload's shape.
type metricPayload struct {
	Timestamp      int64              `json:"timestamp"`
	RunID          string             `json:"run_id"`
	SceneIntensity float64            `json:"scene_intensity"`
	PowerLimited   bool               `json:"power_limited"`
	FrameRate      float64            `json:"frame_rate"`
	ZoneColors     map[string][3]int  `json:"zone_colors"`
}

func generateClientID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return "polarflux_" + hex.EncodeToString(b)
}

// NewMQTTPublisher connects to broker and returns a publisher that will
// emit one payload every interval once Start is called.
func NewMQTTPublisher(broker, topicPrefix string, interval time.Duration) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(generateClientID())
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(10 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Println("telemetry: connected to MQTT broker")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Printf("telemetry: MQTT connection lost: %v", err)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to MQTT broker: %w", token.Error())
	}

	return &MQTTPublisher{client: client, topicPrefix: topicPrefix, interval: interval}, nil
}

// Start runs the publish loop until ctx is cancelled. snapshotFn is
// called once per tick to obtain the latest read-only state.
func (p *MQTTPublisher) Start(ctx context.Context, snapshotFn func() Snapshot) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.publish(snapshotFn())

	for {
		select {
		case <-ctx.Done():
			p.client.Disconnect(250)
			return
		case <-ticker.C:
			p.publish(snapshotFn())
		}
	}
}

func (p *MQTTPublisher) publish(s Snapshot) {
	zones := make(map[string][3]int, len(s.ZoneColors))
	for i, c := range s.ZoneColors {
		zones[fmt.Sprintf("%d", i)] = [3]int{int(c.R), int(c.G), int(c.B)}
	}

	payload := metricPayload{
		Timestamp:      s.Timestamp.Unix(),
		RunID:          s.RunID,
		SceneIntensity: s.SceneIntensity,
		PowerLimited:   s.PowerLimited,
		FrameRate:      s.FrameRate,
		ZoneColors:     zones,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("telemetry: marshal MQTT payload: %v", err)
		return
	}

	topic := p.topicPrefix + "/status"
	token := p.client.Publish(topic, 0, false, data)
	token.Wait()
	if err := token.Error(); err != nil {
		log.Printf("telemetry: MQTT publish failed: %v", err)
	}
}
