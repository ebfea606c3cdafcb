package mqtt

import (
	"errors"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/tevino/abool"
	"go.uber.org/zap"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
	keepAlive      = 60 * time.Second
	maxQoS         = 2
)

var (
	ErrNotConnected     = errors.New("mqtt: not connected")
	ErrConnectionFailed = errors.New("mqtt: connection failed")
	ErrPublishFailed    = errors.New("mqtt: publish failed")
	ErrInvalidQoS       = errors.New("mqtt: invalid qos")
	ErrInvalidTopic     = errors.New("mqtt: invalid topic")
)

type Options struct {
	Broker   string // tcp://host:port
	ClientID string
	Username string
	Password string
}

// Client is a publish-only MQTT connection with automatic reconnect.
// All methods are safe for concurrent use.
type Client struct {
	log       *zap.Logger
	client    pahomqtt.Client
	connected *abool.AtomicBool
}

// Connect dials the broker and waits up to connectTimeout for the first connection.
func Connect(log *zap.Logger, o Options) (*Client, error) {
	c := &Client{log: log.Named("mqtt"), connected: abool.New()}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(o.Broker)
	opts.SetClientID(o.ClientID)
	if o.Username != "" {
		opts.SetUsername(o.Username)
		opts.SetPassword(o.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(false)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetKeepAlive(keepAlive)
	opts.SetMaxReconnectInterval(time.Minute)

	opts.SetOnConnectHandler(func(pahomqtt.Client) {
		c.connected.Set()
		c.log.Info("connected", zap.String("broker", o.Broker))
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.connected.UnSet()
		c.log.Warn("connection lost", zap.Error(err))
	})

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The connect handler runs asynchronously; mark connected now.
	c.connected.Set()
	return c, nil
}

func (c *Client) IsConnected() bool {
	return c.connected.IsSet()
}

// Publish sends payload to topic and waits for the broker acknowledgement.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// Close disconnects, giving in-flight messages up to 250ms.
func (c *Client) Close() {
	if c.client == nil {
		return
	}
	c.connected.UnSet()
	c.client.Disconnect(250)
}
