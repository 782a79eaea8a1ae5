package storage

import (
	"context"
	"encoding/json"

	"rallymatch/backend/internal/common"
	"rallymatch/backend/internal/config"
	"rallymatch/backend/internal/models"
)

// MessageChannel is the Redis channel carrying the commits of one session.
func MessageChannel(sessionID string) string {
	return config.MessageChannelPrefix + sessionID + config.MessageChannelSuffix
}

func (s *Service) publishMessage(ctx context.Context, msg models.Message) error {
	if s.Redis == nil {
		return nil
	}
	payload, err := json.Marshal(models.Event{Type: models.EventMessage, Message: &msg})
	if err != nil {
		return err
	}
	return s.Redis.Publish(ctx, MessageChannel(msg.SessionID), payload).Err()
}

// WatchMessages subscribes to the session's Redis channel. It returns only
// after Redis confirmed the subscription, so a backfill read issued afterwards
// cannot miss a commit.
func (s *Service) WatchMessages(ctx context.Context, sessionID string) (*Watch, error) {
	if s.Redis == nil {
		return nil, common.Unavailable("watch messages", errNoRedis)
	}

	pubsub := s.Redis.Subscribe(ctx, MessageChannel(sessionID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, common.Unavailable("watch messages", err)
	}

	out := make(chan models.Message, config.SubscriptionBuffer)
	done := make(chan struct{})
	ch := pubsub.Channel()

	go func() {
		defer close(out)
		for {
			select {
			case <-done:
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				var ev models.Event
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil || ev.Message == nil {
					s.Log.Warn(context.Background(), "bad message payload", "channel", m.Channel, "error", err)
					continue
				}
				select {
				case out <- *ev.Message:
				case <-done:
					return
				}
			}
		}
	}()

	return NewWatch(out, func() {
		close(done)
		_ = pubsub.Close()
	}), nil
}
