// Package transport sends parsed commands as OSC messages over UDP.
package transport

import (
	"fmt"

	"github.com/hypebeast/go-osc/osc"

	"github.com/verte-zerg/oscreplay/internal/model"
)

const (
	// DefaultHost is the fixed destination host.
	DefaultHost = "127.0.0.1"
	// DefaultPort is the fixed destination port.
	DefaultPort = 9000
)

// Sender delivers one addressed payload. Implementations must be safe for
// concurrent use by several sessions.
type Sender interface {
	Send(address string, values []model.Value) error
}

// OSCClient is a fire-and-forget OSC sender bound to one endpoint.
type OSCClient struct {
	host   string
	port   int
	client *osc.Client
}

// NewOSCClient returns a client for host:port.
func NewOSCClient(host string, port int) *OSCClient {
	return &OSCClient{
		host:   host,
		port:   port,
		client: osc.NewClient(host, port),
	}
}

// NewDefaultClient returns a client for the fixed process-wide destination.
func NewDefaultClient() *OSCClient {
	return NewOSCClient(DefaultHost, DefaultPort)
}

// Endpoint returns the destination as host:port.
func (c *OSCClient) Endpoint() string {
	return fmt.Sprintf("%s:%d", c.host, c.port)
}

// Send writes one message with the values appended in order. A single value
// is the sole argument of the message.
func (c *OSCClient) Send(address string, values []model.Value) error {
	if err := c.client.Send(NewMessage(address, values)); err != nil {
		return fmt.Errorf("failed to send %s to %s: %w", address, c.Endpoint(), err)
	}
	return nil
}

// NewMessage encodes a command as an OSC message. Floats are sent as 32-bit
// 'f' arguments and bools as 'T'/'F'.
func NewMessage(address string, values []model.Value) *osc.Message {
	msg := osc.NewMessage(address)
	for _, v := range values {
		switch v.Kind {
		case model.KindBool:
			msg.Append(v.Bool)
		default:
			msg.Append(float32(v.Float))
		}
	}
	return msg
}
