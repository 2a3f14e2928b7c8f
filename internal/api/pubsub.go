package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/yssalam/mini-quiz-app/internal/domain"
)

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type (
	Notification struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}

	SessionFinalized struct {
		Status string         `json:"status"`
		Result *domain.Result `json:"result,omitempty"`
	}
)

// PublishSessionFinalized relays the finalization to the principal's channel.
// A client that kept no local timer learns here that its attempt was closed
// server-side when the deadline passed.
func (a *API) PublishSessionFinalized(ctx context.Context, e domain.EventSessionFinalized) error {
	return a.publishNotification(ctx, e.Principal, e.Name(), SessionFinalized{
		Status: string(e.Status),
		Result: e.Result,
	})
}

func (a *API) publishNotification(ctx context.Context, user, event string, data any) error {
	n := Notification{
		Event: event,
		Data:  data,
	}

	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %v", event, err)
	}

	return a.redis.Publish(ctx, fmt.Sprintf("%s:user:%s", a.prefix, user), b).Err()
}
