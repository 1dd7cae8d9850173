package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// MailExchange is the exchange the external mail relay consumes from.
const MailExchange = "internship.mail"

// MailRoutingKey routes outbound mail on MailExchange.
const MailRoutingKey = "mail.outbound"

// AMQPSender publishes rendered mail to RabbitMQ for the mail relay.
type AMQPSender struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *slog.Logger
	mu       sync.Mutex
}

// NewAMQPSender connects to url and declares the mail exchange.
func NewAMQPSender(url string, logger *slog.Logger) (*AMQPSender, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		MailExchange, // name
		"direct",     // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	logger.Info("mail relay publisher connected", "exchange", MailExchange)

	return &AMQPSender{
		conn:     conn,
		channel:  ch,
		exchange: MailExchange,
		logger:   logger,
	}, nil
}

// Send implements MailSender.
func (s *AMQPSender) Send(ctx context.Context, mail Mail) error {
	body, err := json.Marshal(mail)
	if err != nil {
		return fmt.Errorf("encode mail: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.channel.PublishWithContext(ctx,
		s.exchange,
		MailRoutingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		s.logger.Error("failed to publish mail", "to", mail.To, "error", err)
		return err
	}
	return nil
}

// Close releases the channel and connection.
func (s *AMQPSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.channel != nil {
		if err := s.channel.Close(); err != nil {
			s.logger.Warn("error closing channel", "error", err)
		}
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// LogSender writes mail to the log instead of delivering it.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender returns a sender for development setups.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

// Send implements MailSender.
func (s *LogSender) Send(ctx context.Context, mail Mail) error {
	s.logger.InfoContext(ctx, "mail delivered to log", "to", mail.To, "subject", mail.Subject, "size", len(mail.Body))
	return nil
}
