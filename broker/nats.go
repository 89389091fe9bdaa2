package broker

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
)

var _ Publisher = &NATSBroker{}
var _ Consumer = &NATSBroker{}

const subjectPrefix string = "soloflow.subscription."

// NATSBroker delivers subscription updates via NATS, one subject per user.
// Deployments that already run NATS can use this instead of RabbitMQ; the
// two are interchangeable behind the Publisher/Consumer interfaces.
type NATSBroker struct {
	logger *zap.Logger
	conn   *nats.Conn
}

// NewNATSBroker returns a push broker over NATS
func NewNATSBroker(logger *zap.Logger, natsURI string) (*NATSBroker, error) {
	if logger == nil {
		return nil, extErrors.New("nil Logger is invalid")
	}
	conn, err := nats.Connect(natsURI)
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot connect to NATS")
	}
	return &NATSBroker{
		logger: logger,
		conn:   conn,
	}, nil
}

// Close drains in-flight messages before closing the connection
func (n *NATSBroker) Close() {
	n.conn.Drain()
}

// PublishUpdate publishes to the user's subject
func (n *NATSBroker) PublishUpdate(u *Update) error {
	body, err := json.Marshal(u)
	if err != nil {
		return extErrors.Wrap(err, "Cannot encode update into bytes")
	}
	if err := n.conn.Publish(subjectPrefix+u.UserID, body); err != nil {
		return extErrors.Wrap(err, "Cannot publish subscription update")
	}
	return nil
}

// ReceiveUpdates subscribes to the user's subject and returns a channel of
// validated updates. The subscription is torn down when ctx ends.
func (n *NATSBroker) ReceiveUpdates(ctx context.Context, userID string) (<-chan *Update, error) {
	msgChan := make(chan *nats.Msg, 16)
	sub, err := n.conn.ChanSubscribe(subjectPrefix+userID, msgChan)
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot subscribe to updates")
	}
	rChan := make(chan *Update)
	go func() {
		defer sub.Unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case m := <-msgChan:
				var u Update
				if err := json.Unmarshal(m.Data, &u); err != nil {
					continue
				}
				if err := u.Validate(); err != nil {
					n.logger.Warn("Dropping malformed subscription update",
						zap.Error(err),
					)
					continue
				}
				rChan <- &u
			}
		}
	}()
	return rChan, nil
}
