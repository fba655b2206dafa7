// Package monitor broadcasts subsystem activity (ingest completions,
// publish pass outcomes, periodic stats) over a ZeroMQ PUB socket so an
// external dashboard or test harness can observe a running node without
// touching its control plane.
package monitor

import (
	"context"
	"log"
	"time"

	"github.com/go-zeromq/zmq4"
	json "github.com/json-iterator/go"
)

// Topics this package ever publishes under.
const (
	TopicIngest  = "ingest"
	TopicPublish = "publish"
	TopicStats   = "stats"
)

// Event is the payload carried on every topic; fields irrelevant to a
// given topic are left zero and omitted from the encoded JSON.
type Event struct {
	Instance   string `json:"instance,omitempty"`
	Error      string `json:"error,omitempty"`
	FilesTotal int    `json:"files_total,omitempty"`
	FilesLimit int    `json:"files_limit,omitempty"`
	Publishing bool   `json:"publishing,omitempty"`
}

// Broadcaster owns the PUB socket every event is fanned out on.
type Broadcaster struct {
	pub zmq4.Socket
}

// NewBroadcaster binds a PUB socket at addr (e.g. "tcp://*:5560"),
// mirroring NewZeroMQTransactionBroadcaster's automatic-reconnect PUB
// socket setup.
func NewBroadcaster(addr string) (*Broadcaster, error) {
	reconnectOpt := zmq4.WithAutomaticReconnect(true)
	retryOpt := zmq4.WithDialerRetry(5 * time.Second)
	socket := zmq4.NewPub(context.Background(), reconnectOpt, retryOpt)

	if err := socket.Listen(addr); err != nil {
		return nil, err
	}

	log.Println("monitor: broadcasting on", addr)
	return &Broadcaster{pub: socket}, nil
}

// Publish encodes ev as JSON and sends it as a two-frame message,
// topic then payload, the same framing zmqMessage builds in the
// teacher's broadcaster.
func (b *Broadcaster) Publish(topic string, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	msg := zmq4.NewMsgFrom([]byte(topic), payload)
	return b.pub.Send(msg)
}

// Close releases the underlying socket.
func (b *Broadcaster) Close() error {
	return b.pub.Close()
}
