package messaging

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"incident-worker-go/internal/config"
	"incident-worker-go/internal/models"
)

// Service publishes JSON events to NATS.
type Service struct {
	conn *nats.Conn
	cfg  *config.Config
}

func NewService(cfg *config.Config) (*Service, error) {
	opts := []nats.Option{
		nats.Name("incident-worker-" + cfg.WorkerID),
		nats.Timeout(cfg.NatsConnectTimeout),
		nats.ReconnectWait(cfg.NatsReconnectWait),
		nats.MaxReconnects(cfg.NatsMaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	conn, err := nats.Connect(cfg.NatsURL, opts...)
	if err != nil {
		return nil, err
	}

	log.Info().Str("url", cfg.NatsURL).Msg("NATS connection established")

	return &Service{
		conn: conn,
		cfg:  cfg,
	}, nil
}

func (s *Service) Publish(subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}

	return s.conn.Publish(subject, payload)
}

// Deliver publishes data and counts the broker as its one receiver. Nothing is
// counted while the connection is down, even though nats buffers the message.
func (s *Service) Deliver(subject string, data interface{}) (int, error) {
	if !s.IsConnected() {
		return 0, errNotConnected
	}
	if err := s.Publish(subject, data); err != nil {
		return 0, err
	}
	return 1, nil
}

func (s *Service) IsConnected() bool {
	return s != nil && s.conn != nil && s.conn.IsConnected()
}

func (s *Service) Shutdown(ctx context.Context) error {
	if s.conn != nil {
		// Try graceful drain with timeout, fallback to immediate close
		if err := s.conn.Drain(); err != nil {
			log.Warn().Err(err).Msg("Failed to drain NATS connection gracefully, closing immediately")
			s.conn.Close()
		}
	}
	return nil
}

var errNotConnected = errors.New("nats not connected")

type deliverer interface {
	Deliver(subject string, data interface{}) (int, error)
}

// Fanout publishes every message to each of its publishers. A failing
// publisher does not stop delivery to the others.
type Fanout []models.MessagePublisher

// Deliver publishes to every publisher and sums the receivers that accepted
// the message. Publishers that cannot count receivers count once on success.
func (f Fanout) Deliver(subject string, data interface{}) (int, error) {
	var errs []error
	total := 0
	for _, p := range f {
		if p == nil {
			continue
		}
		if d, ok := p.(deliverer); ok {
			n, err := d.Deliver(subject, data)
			total += n
			if err != nil {
				errs = append(errs, err)
			}
			continue
		}
		if err := p.Publish(subject, data); err != nil {
			errs = append(errs, err)
			continue
		}
		total++
	}
	return total, errors.Join(errs...)
}

func (f Fanout) Publish(subject string, data interface{}) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(subject, data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
