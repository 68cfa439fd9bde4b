package consumer

import (
	"context"
	"encoding/json"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/globot/syncbot/internal/model"
	"github.com/globot/syncbot/internal/service"
	logger "github.com/globot/syncbot/middleware/log"
)

// inboundEvent is the platform event shape on the relay topic.
type inboundEvent struct {
	ChannelID   string   `json:"channel_id"`
	GuildID     string   `json:"guild_id"`
	AuthorID    string   `json:"author_id"`
	AuthorName  string   `json:"author_name"`
	Text        string   `json:"text"`
	Attachments []string `json:"attachments"`
	MessageID   string   `json:"message_id"`
	Relayed     bool     `json:"relayed"`
}

// MessageConsumer consumes inbound platform events and hands each one to the
// relay as an independent unit of work.
type MessageConsumer struct {
	dispatcher service.IRelayDispatcher
	log        *logger.Logger
}

func NewMessageConsumer(dispatcher service.IRelayDispatcher, log *logger.Logger) *MessageConsumer {
	return &MessageConsumer{
		dispatcher: dispatcher,
		log:        log,
	}
}

// Setup is run at the beginning of a new session, before ConsumeClaim
func (c *MessageConsumer) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

// Cleanup is run at the end of a session, once all ConsumeClaim goroutines have exited
func (c *MessageConsumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim relays every message on the claim. A failed relay is logged
// and the offset marked anyway; the pipeline has no ordering or redelivery
// guarantee to honor.
func (c *MessageConsumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		var event inboundEvent
		if err := json.Unmarshal(message.Value, &event); err != nil {
			c.log.Warn("failed to unmarshal inbound event", zap.Error(err))
			session.MarkMessage(message, "")
			continue
		}

		env := &model.MessageEnvelope{
			SourceChannelID: event.ChannelID,
			GuildID:         event.GuildID,
			AuthorID:        event.AuthorID,
			AuthorName:      event.AuthorName,
			RawText:         event.Text,
			Attachments:     event.Attachments,
			OriginMessageID: event.MessageID,
			Relayed:         event.Relayed,
		}

		ctx := logger.WithTraceID(session.Context(), "")
		if _, err := c.dispatcher.Relay(ctx, env); err != nil {
			c.log.ErrorContext(ctx, "relay failed",
				zap.String("channel_id", event.ChannelID),
				zap.Error(err))
		}

		session.MarkMessage(message, "")
	}
	return nil
}

// Start runs the consumer group loop until the context is cancelled.
func Start(ctx context.Context, brokers []string, groupID, topic string, consumer *MessageConsumer, log *logger.Logger) error {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.Strategy = sarama.NewBalanceStrategyRoundRobin()
	config.Consumer.Offsets.Initial = sarama.OffsetNewest

	client, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return err
	}

	go func() {
		for {
			if err := client.Consume(ctx, []string{topic}, consumer); err != nil {
				log.Error("consumer group error", zap.Error(err))
			}
			if ctx.Err() != nil {
				client.Close()
				return
			}
		}
	}()
	return nil
}
