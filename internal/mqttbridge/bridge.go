// Package mqttbridge mirrors the monitor onto an MQTT broker and accepts
// commands from it.
package mqttbridge

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/dooshek/decibender/internal/logger"
	"github.com/dooshek/decibender/internal/monitor"
	"github.com/dooshek/decibender/internal/types"
	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	keepAlive        = 30
	loudnessInterval = time.Second
	submitTimeout    = 2 * time.Second
	publishTimeout   = 5 * time.Second
	disconnectWait   = 2 * time.Second
)

// Controller is the part of the monitor the bridge drives.
type Controller interface {
	Submit(ctx context.Context, cmd types.Command) error
	State() types.State
	Thresholds() types.Thresholds
}

type publisher interface {
	Publish(ctx context.Context, p *paho.Publish) (*paho.PublishResponse, error)
}

type message struct {
	payload []byte
	retain  bool
}

// Bridge publishes retained state and thresholds plus throttled loudness.
// Sink calls only record the latest payload per topic; a single goroutine
// does the network work.
type Bridge struct {
	cfg      types.MQTTConfig
	ctl      Controller
	topics   topics
	throttle *monitor.Throttle
	log      zerolog.Logger

	mu      sync.Mutex
	pending map[string]message
	order   []string
	wake    chan struct{}
}

func New(cfg types.MQTTConfig, ctl Controller) *Bridge {
	return &Bridge{
		cfg:      cfg,
		ctl:      ctl,
		topics:   newTopics(cfg.TopicPrefix),
		throttle: monitor.NewThrottle(loudnessInterval, nil),
		log:      logger.With("mqtt"),
		pending:  make(map[string]message),
		wake:     make(chan struct{}, 1),
	}
}

func (b *Bridge) clientID() string {
	if b.cfg.ClientID != "" {
		return b.cfg.ClientID
	}
	return "decibender-" + uuid.NewString()
}

// Run connects, keeps the connection alive and publishes until ctx is done.
func (b *Bridge) Run(ctx context.Context) error {
	broker, err := url.Parse(b.cfg.Broker)
	if err != nil {
		return fmt.Errorf("invalid MQTT broker URL %q: %w", b.cfg.Broker, err)
	}

	clientID := b.clientID()
	cliCfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{broker},
		KeepAlive:                     keepAlive,
		CleanStartOnInitialConnection: true,
		ConnectUsername:               b.cfg.Username,
		ConnectPassword:               []byte(b.cfg.Password),
		WillMessage: &paho.WillMessage{
			Topic:   b.topics.status(),
			Payload: []byte("offline"),
			QoS:     1,
			Retain:  true,
		},
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			b.log.Info().Str("broker", broker.String()).Str("client_id", clientID).Msg("Connected")
			b.onConnectionUp(cm)
		},
		OnConnectError: func(err error) {
			b.log.Warn().Err(err).Msg("Connection attempt failed")
		},
		ClientConfig: paho.ClientConfig{
			ClientID: clientID,
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){
				func(pr paho.PublishReceived) (bool, error) {
					b.handleMessage(ctx, pr.Packet.Topic, pr.Packet.Payload)
					return true, nil
				},
			},
			OnClientError: func(err error) {
				b.log.Warn().Err(err).Msg("Client error")
			},
			OnServerDisconnect: func(d *paho.Disconnect) {
				b.log.Warn().Uint8("reason", d.ReasonCode).Msg("Server requested disconnect")
			},
		},
	}
	if b.cfg.Username == "" {
		cliCfg.ConnectPassword = nil
	}

	cm, err := autopaho.NewConnection(ctx, cliCfg)
	if err != nil {
		return fmt.Errorf("failed to start MQTT connection: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			disconnectCtx, cancel := context.WithTimeout(context.Background(), disconnectWait)
			defer cancel()
			if err := cm.Disconnect(disconnectCtx); err != nil {
				b.log.Debug().Err(err).Msg("Disconnect")
			}
			return nil
		case <-b.wake:
			b.flush(ctx, cm)
		}
	}
}

// onConnectionUp subscribes to commands and republishes the retained
// topics, which the broker may have lost.
func (b *Bridge) onConnectionUp(cm *autopaho.ConnectionManager) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if _, err := cm.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{{Topic: b.topics.commands(), QoS: 1}},
	}); err != nil {
		b.log.Error().Err(err).Str("topic", b.topics.commands()).Msg("Failed to subscribe")
	}

	b.enqueue(b.topics.status(), []byte("online"), true)
	b.enqueue(b.topics.state(), statePayload(b.ctl.State()), true)
	if payload, err := thresholdsPayload(b.ctl.Thresholds()); err == nil {
		b.enqueue(b.topics.thresholds(), payload, true)
	}
}

func (b *Bridge) handleMessage(ctx context.Context, topic string, payload []byte) {
	name, ok := b.topics.command(topic)
	if !ok {
		b.log.Debug().Str("topic", topic).Msg("Ignoring message")
		return
	}

	cmd, err := parseCommand(name, payload)
	if err != nil {
		b.log.Warn().Err(err).Str("topic", topic).Msg("Rejected command")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, submitTimeout)
	defer cancel()
	if err := b.ctl.Submit(ctx, cmd); err != nil {
		b.log.Error().Err(err).Stringer("command", cmd.Kind).Msg("Failed to submit command")
	}
}

func (b *Bridge) enqueue(topic string, payload []byte, retain bool) {
	b.mu.Lock()
	if _, ok := b.pending[topic]; !ok {
		b.order = append(b.order, topic)
	}
	b.pending[topic] = message{payload: payload, retain: retain}
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *Bridge) takePending() ([]string, map[string]message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	order, pending := b.order, b.pending
	b.order = nil
	b.pending = make(map[string]message)
	return order, pending
}

// flush publishes the latest payload of every dirty topic. Failures are
// logged and dropped; retained topics are refreshed on reconnect.
func (b *Bridge) flush(ctx context.Context, pub publisher) {
	order, pending := b.takePending()
	for _, topic := range order {
		msg := pending[topic]
		pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		_, err := pub.Publish(pubCtx, &paho.Publish{
			Topic:   topic,
			QoS:     qos(msg.retain),
			Retain:  msg.retain,
			Payload: msg.payload,
		})
		cancel()
		if err != nil {
			b.log.Debug().Err(err).Str("topic", topic).Msg("Publish failed")
		}
	}
}

// Telemetry goes out at QoS 0; retained topics need delivery.
func qos(retain bool) byte {
	if retain {
		return 1
	}
	return 0
}

func (b *Bridge) OnLoudness(db float64) error {
	if b.throttle.Allow() {
		b.enqueue(b.topics.loudness(), loudnessPayload(db), false)
	}
	return nil
}

func (b *Bridge) OnStateChanged(state types.State) error {
	b.enqueue(b.topics.state(), statePayload(state), true)
	return nil
}

func (b *Bridge) OnThresholds(t types.Thresholds) error {
	payload, err := thresholdsPayload(t)
	if err != nil {
		b.log.Error().Err(err).Msg("Dropping thresholds event")
		return nil
	}
	b.enqueue(b.topics.thresholds(), payload, true)
	return nil
}
