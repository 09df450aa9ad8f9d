package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"cloudpico-node/internal/config"
	"cloudpico-node/internal/sensor"
)

const publishTimeout = 5 * time.Second

type Client struct {
	client    mqtt.Client
	cfg       config.Config
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool
	sequence  atomic.Int64

	stopCh   chan struct{}
	stopOnce sync.Once
}

// Telemetry is the JSON document mirrored for every served metrics sample.
type Telemetry struct {
	StationID      string    `json:"station_id"`
	Timestamp      time.Time `json:"timestamp"`
	Temperature    *float64  `json:"temperature_c,omitempty"`
	Pressure       *float64  `json:"pressure_hpa,omitempty"`
	WindSpeed      *float64  `json:"wind_speed_m_s,omitempty"`
	CPUTemperature *float64  `json:"cpu_temperature_c,omitempty"`
	SignalStrength *int      `json:"signal_strength_dbm,omitempty"`
	RawAnemometer  *uint16   `json:"raw_anemometer,omitempty"`
	Sequence       *int64    `json:"sequence,omitempty"`
}

type StationHealth struct {
	StationID string    `json:"station_id"`
	LastSeen  time.Time `json:"last_seen"`
	Healthy   bool      `json:"healthy"`
}

func TelemetryTopic(stationID string) string {
	return fmt.Sprintf("stations/%s/telemetry", stationID)
}

func HealthTopic(stationID string) string {
	return fmt.Sprintf("stations/%s/health", stationID)
}

func NewClient(cfg config.Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort))
	opts.SetClientID(cfg.MQTTClientID)

	// Session settings
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	// Keepalive / timeouts
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	// A broker that outlives us reports the node as down.
	will, err := json.Marshal(StationHealth{StationID: cfg.DeviceName, Healthy: false})
	if err != nil {
		return nil, fmt.Errorf("marshal will: %w", err)
	}
	opts.SetBinaryWill(HealthTopic(cfg.DeviceName), will, 1, true)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		c.setConnected(true)
		logger.Info("mqtt connected", "broker", cfg.MQTTBroker, "port", cfg.MQTTPort)
		// Runs on paho's goroutine; publishing here would wait on itself.
		go func() {
			if err := c.PublishStationHealth(true); err != nil {
				logger.Warn("publish station health", "error", err)
			}
		}()
	})

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	c.client = mqtt.NewClient(opts)
	return c, nil
}

// Connect establishes connection to the MQTT broker.
// This function waits for the initial connection, and respects ctx and Disconnect().
func (c *Client) Connect(ctx context.Context) error {
	select {
	case <-c.stopCh:
		return fmt.Errorf("client stopped")
	default:
	}

	if c.IsConnected() {
		return nil
	}

	// With ConnectRetry(true), paho keeps retrying internally.
	token := c.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			return fmt.Errorf("client stopped")
		default:
		}
	}
}

// Observe mirrors a served sample to the telemetry topic. It never blocks
// the caller: the sample is dropped while disconnected and delivery is
// confirmed on a separate goroutine.
func (c *Client) Observe(id sensor.Identity, s sensor.Sample) {
	if !c.IsConnected() {
		c.logger.Debug("mqtt not connected, telemetry dropped")
		return
	}

	t := NewTelemetry(id.Name, s, c.sequence.Add(1), time.Now())
	data, err := json.Marshal(t)
	if err != nil {
		c.logger.Error("marshal telemetry", "error", err)
		return
	}

	topic := TelemetryTopic(id.Name)
	token := c.client.Publish(topic, 1, false, data)
	go func() {
		if !token.WaitTimeout(publishTimeout) {
			c.logger.Warn("publish timeout", "topic", topic)
			return
		}
		if err := token.Error(); err != nil {
			c.logger.Warn("failed to publish telemetry", "topic", topic, "error", err)
			return
		}
		c.logger.Debug("published telemetry", "topic", topic, "sequence", *t.Sequence)
	}()
}

// NewTelemetry builds the mirrored document for one sample.
func NewTelemetry(stationID string, s sensor.Sample, seq int64, now time.Time) Telemetry {
	d := sensor.Derive(s)
	return Telemetry{
		StationID:      stationID,
		Timestamp:      now.UTC(),
		Temperature:    &s.TemperatureC,
		Pressure:       &s.PressureHPa,
		WindSpeed:      &d.WindSpeedMS,
		CPUTemperature: &s.CPUTemperatureC,
		SignalStrength: &s.SignalStrengthDBm,
		RawAnemometer:  &s.RawADC,
		Sequence:       &seq,
	}
}

// PublishStationHealth publishes the retained health/last-seen state.
func (c *Client) PublishStationHealth(healthy bool) error {
	if !c.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}

	health := StationHealth{
		StationID: c.cfg.DeviceName,
		LastSeen:  time.Now().UTC(),
		Healthy:   healthy,
	}
	topic := HealthTopic(health.StationID)

	data, err := json.Marshal(health)
	if err != nil {
		return fmt.Errorf("marshal health: %w", err)
	}

	token := c.client.Publish(topic, 1, true, data) // retained
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if token.Error() != nil {
		return fmt.Errorf("publish health: %w", token.Error())
	}

	c.logger.Debug("published station health",
		"topic", topic,
		"station_id", health.StationID,
		"healthy", health.Healthy,
	)
	return nil
}

// IsConnected returns whether the client is connected.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	connected := c.connected
	c.mu.RUnlock()
	return connected && c.client.IsConnected()
}

// Disconnect publishes an unhealthy state, stops the client and closes the
// MQTT connection. Idempotent; after it, Connect returns "client stopped".
func (c *Client) Disconnect() {
	first := false
	c.stopOnce.Do(func() {
		close(c.stopCh)
		first = true
	})
	if !first {
		return
	}

	if c.IsConnected() {
		if err := c.PublishStationHealth(false); err != nil {
			c.logger.Warn("publish station health", "error", err)
		}
	}

	// Paho Disconnect quiesces in-flight work for the given ms.
	if c.client != nil {
		c.client.Disconnect(250)
	}

	c.setConnected(false)
	c.logger.Info("mqtt disconnected")
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}
