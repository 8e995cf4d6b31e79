package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/curriculum-api/internal/models"
)

// TransitionPublisher broadcasts committed lifecycle transitions over Redis pub/sub.
type TransitionPublisher struct {
	client  *redis.Client
	channel string
}

// NewTransitionPublisher constructs a publisher. A nil client makes Publish a no-op.
func NewTransitionPublisher(client *redis.Client, channel string) *TransitionPublisher {
	return &TransitionPublisher{client: client, channel: channel}
}

// Publish sends the signal to subscribers of the configured channel.
func (p *TransitionPublisher) Publish(ctx context.Context, signal models.TransitionSignal) error {
	if p == nil || p.client == nil {
		return nil
	}
	payload, err := json.Marshal(signal)
	if err != nil {
		return fmt.Errorf("marshal transition signal: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish transition signal: %w", err)
	}
	return nil
}
