package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Publisher emits domain events fire-and-forget. Delivery failure never rolls
// back the state change that produced the event.
type Publisher interface {
	PublishEvent(domain, entityID, eventName string, payload any)
}

// envelope is the wire shape of a published event.
type envelope struct {
	Domain    string    `json:"domain"`
	EntityID  string    `json:"entity_id"`
	Event     string    `json:"event"`
	Payload   any       `json:"payload,omitempty"`
	EmittedAt time.Time `json:"emitted_at"`
}

// RedisPublisher publishes events on a Redis Pub/Sub channel per domain
// ("events.<domain>").
type RedisPublisher struct {
	client  *redis.Client
	log     zerolog.Logger
	timeout time.Duration
}

func NewRedisPublisher(addr string, log zerolog.Logger) *RedisPublisher {
	return &RedisPublisher{
		client:  redis.NewClient(&redis.Options{Addr: addr}),
		log:     log.With().Str("component", "events").Logger(),
		timeout: 2 * time.Second,
	}
}

func (p *RedisPublisher) PublishEvent(domain, entityID, eventName string, payload any) {
	data, err := json.Marshal(envelope{
		Domain:    domain,
		EntityID:  entityID,
		Event:     eventName,
		Payload:   payload,
		EmittedAt: time.Now(),
	})
	if err != nil {
		p.log.Error().Err(err).Str("event", eventName).Msg("marshal event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if err := p.client.Publish(ctx, "events."+domain, data).Err(); err != nil {
		p.log.Warn().Err(err).
			Str("event", eventName).
			Str("entity_id", entityID).
			Msg("event publish failed")
	}
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// LogPublisher writes events to the log only. Used when Redis is not
// configured and in tests.
type LogPublisher struct {
	log zerolog.Logger
}

func NewLogPublisher(log zerolog.Logger) *LogPublisher {
	return &LogPublisher{log: log.With().Str("component", "events").Logger()}
}

func (p *LogPublisher) PublishEvent(domain, entityID, eventName string, payload any) {
	p.log.Info().
		Str("domain", domain).
		Str("entity_id", entityID).
		Str("event", eventName).
		Interface("payload", payload).
		Msg("event")
}
