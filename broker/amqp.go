package broker

import (
	"context"
	"encoding/json"

	extErrors "github.com/pkg/errors"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

var _ Publisher = &AMQPBroker{}
var _ Consumer = &AMQPBroker{}

const subscriptionExchange string = "subscription_updates"

// AMQPBroker delivers subscription updates via RabbitMQ. Updates are
// published to a direct exchange with the user ID as the routing key, so
// every open session of the same user gets its own copy.
type AMQPBroker struct {
	logger     *zap.Logger
	connection *amqp.Connection
	channel    *amqp.Channel
}

// NewAMQPBroker returns a push broker over RabbitMQ
func NewAMQPBroker(logger *zap.Logger, amqpURI string) (*AMQPBroker, error) {
	if logger == nil {
		return nil, extErrors.New("nil Logger is invalid")
	}
	amqpConn, err := amqp.Dial(amqpURI)
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot connect to Message Broker")
	}
	amqpChan, err := amqpConn.Channel()
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot create broker channel")
	}
	broker := &AMQPBroker{
		logger:     logger,
		connection: amqpConn,
		channel:    amqpChan,
	}
	if err := broker.setupExchange(); err != nil {
		return nil, extErrors.Wrap(err, "Cannot declare exchange for subscription updates")
	}
	return broker, nil
}

func (a *AMQPBroker) setupExchange() error {
	return a.channel.ExchangeDeclare(
		subscriptionExchange, // name
		"direct",             // type
		true,                 // durable
		false,                // auto-deleted
		false,                // internal
		false,                // no-wait
		nil,                  // arguments
	)
}

// Close will close the channel and connection to release resources
func (a *AMQPBroker) Close() {
	a.channel.Close()
	a.connection.Close()
}

// PublishUpdate fans the update out to every session subscribed to the user
func (a *AMQPBroker) PublishUpdate(u *Update) error {
	body, err := json.Marshal(u)
	if err != nil {
		return extErrors.Wrap(err, "Cannot encode update into bytes")
	}
	if err := a.channel.Publish(
		subscriptionExchange,
		u.UserID,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	); err != nil {
		return extErrors.Wrap(err, "Cannot publish subscription update")
	}
	return nil
}

func (a *AMQPBroker) setupQueue(qName string) error {
	_, err := a.channel.QueueDeclare(
		qName,
		false, // transient: session queues die with the consumer
		true,  // auto-delete
		true,  // exclusive
		false,
		nil,
	)
	return err
}

// ReceiveUpdates binds a per-session queue to the user's routing key and
// returns a channel of validated updates. The goroutine exits when ctx ends.
func (a *AMQPBroker) ReceiveUpdates(ctx context.Context, userID string) (<-chan *Update, error) {
	name := "session_" + userID
	if err := a.setupQueue(name); err != nil {
		return nil, extErrors.Wrap(err, "Cannot setup queue")
	}
	if err := a.channel.QueueBind(
		name,
		userID,
		subscriptionExchange,
		false,
		nil,
	); err != nil {
		return nil, extErrors.Wrap(err, "Cannot bind queue")
	}
	msgChan, err := a.channel.Consume(
		name,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot setup consumer")
	}
	rChan := make(chan *Update)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case d := <-msgChan:
				var u Update
				if err := json.Unmarshal(d.Body, &u); err != nil {
					d.Nack(false, false)
					continue
				}
				if err := u.Validate(); err != nil {
					a.logger.Warn("Dropping malformed subscription update",
						zap.Error(err),
					)
					d.Nack(false, false)
					continue
				}
				rChan <- &u
				d.Ack(false)
			}
		}
	}()
	return rChan, nil
}
