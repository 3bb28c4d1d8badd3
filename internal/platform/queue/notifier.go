package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"quizclash/internal/platform/config"

	"github.com/redis/go-redis/v9"
)

// Notifier pushes challenge-domain events out of the process: pub/sub for
// events that connected clients must see immediately, and a list queue for
// payloads the achievements subsystem drains on its own schedule.
type Notifier struct {
	rdb *redis.Client
}

func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

func (n *Notifier) PublishChallengeEvent(ctx context.Context, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notifier.PublishChallengeEvent marshal: %w", err)
	}
	if err := n.rdb.Publish(ctx, config.AppConfig.ChallengeEventsChannel, data).Err(); err != nil {
		return fmt.Errorf("notifier.PublishChallengeEvent publish: %w", err)
	}
	return nil
}

func (n *Notifier) EnqueueAchievementEval(ctx context.Context, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notifier.EnqueueAchievementEval marshal: %w", err)
	}
	if err := n.rdb.LPush(ctx, config.AppConfig.AchievementQueueName, data).Err(); err != nil {
		return fmt.Errorf("notifier.EnqueueAchievementEval lpush: %w", err)
	}
	return nil
}

// Subscribe returns the raw pub/sub handle for the challenge events channel.
// The realtime hub owns the receive loop.
func (n *Notifier) Subscribe(ctx context.Context) *redis.PubSub {
	return n.rdb.Subscribe(ctx, config.AppConfig.ChallengeEventsChannel)
}
