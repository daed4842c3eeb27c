package ingest

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"solarview/internal/logger"
)

const (
	keepAlive      = 30 * time.Second
	pingTimeout    = 10 * time.Second
	connectTimeout = 10 * time.Second
	disconnectMs   = 250
)

// Options configure a Client.
type Options struct {
	BrokerURL   string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string

	// StateOnly limits the subscription to state topics. The discovery flow
	// uses this for its transient second subscription.
	StateOnly bool

	// InitialDelay and MaxDelay bound the reconnect backoff.
	InitialDelay time.Duration
	MaxDelay     time.Duration

	// OnStatus, when set, is invoked on every connect and connection-loss
	// transition.
	OnStatus func(connected bool, err error)
}

// Client maintains the broker subscription. Reconnection is managed here
// rather than by the paho auto-reconnect so the backoff sequence stays
// observable and cancellable: connect, subscribe, pump messages until the
// connection drops, wait the current delay, double it, retry.
type Client struct {
	opts    Options
	router  *Router
	log     *logger.Logger
	backoff Backoff
}

func NewClient(opts Options, router *Router, log *logger.Logger) *Client {
	return &Client{
		opts:    opts,
		router:  router,
		log:     log,
		backoff: Backoff{Floor: opts.InitialDelay, Max: opts.MaxDelay},
	}
}

// topics returns the subscription set keyed by topic filter.
func (c *Client) topics() map[string]byte {
	prefix := c.opts.TopicPrefix
	filters := map[string]byte{
		prefix + "/+" + suffixState: 0,
	}
	if !c.opts.StateOnly {
		filters[prefix+"/+"+suffixTempNodes] = 0
		filters[prefix+"/+"+suffixNodeMappings] = 0
	}
	return filters
}

// Run connects and pumps messages until ctx is cancelled. Connection and
// protocol errors never escape: they feed the backoff loop.
func (c *Client) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		lost := make(chan error, 1)
		cli := c.newPahoClient(lost)

		if err := c.connectAndSubscribe(cli); err != nil {
			c.log.Errorw("broker connect failed", "broker", c.opts.BrokerURL, "err", err)
			c.notify(false, err)
			if !c.sleep(ctx) {
				return
			}
			continue
		}

		c.backoff.Reset()
		c.log.Infow("subscribed to broker", "broker", c.opts.BrokerURL, "prefix", c.opts.TopicPrefix)
		c.notify(true, nil)

		select {
		case <-ctx.Done():
			cli.Disconnect(disconnectMs)
			return
		case err := <-lost:
			c.log.Errorw("broker connection lost", "err", err)
			c.notify(false, err)
			if !c.sleep(ctx) {
				return
			}
		}
	}
}

func (c *Client) newPahoClient(lost chan<- error) mqtt.Client {
	opts := mqtt.NewClientOptions().
		AddBroker(c.opts.BrokerURL).
		SetClientID(c.opts.ClientID).
		SetKeepAlive(keepAlive).
		SetPingTimeout(pingTimeout).
		SetConnectTimeout(connectTimeout).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetOrderMatters(true)

	if c.opts.Username != "" {
		opts.SetUsername(c.opts.Username)
	}
	if c.opts.Password != "" {
		opts.SetPassword(c.opts.Password)
	}

	opts.SetDefaultPublishHandler(func(_ mqtt.Client, msg mqtt.Message) {
		c.router.Route(msg.Topic(), msg.Payload())
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		select {
		case lost <- err:
		default:
		}
	})
	return mqtt.NewClient(opts)
}

func (c *Client) connectAndSubscribe(cli mqtt.Client) error {
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("connect: %w", token.Error())
	}
	handler := func(_ mqtt.Client, msg mqtt.Message) {
		c.router.Route(msg.Topic(), msg.Payload())
	}
	if token := cli.SubscribeMultiple(c.topics(), handler); token.Wait() && token.Error() != nil {
		cli.Disconnect(disconnectMs)
		return fmt.Errorf("subscribe: %w", token.Error())
	}
	return nil
}

// sleep waits the current backoff delay. Reports false when ctx was
// cancelled during the wait.
func (c *Client) sleep(ctx context.Context) bool {
	delay := c.backoff.Next()
	c.log.Infow("reconnecting to broker", "delay", delay)
	select {
	case <-time.After(delay):
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *Client) notify(connected bool, err error) {
	if c.opts.OnStatus != nil {
		c.opts.OnStatus(connected, err)
	}
}
