package redis

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/brightcart/storefront/internal/ports"
	"github.com/redis/go-redis/v9"
)

// noticeTTL bounds how long an undelivered notice survives. Notices are
// one-time hints, not durable state; stale ones should disappear.
const noticeTTL = 10 * time.Minute

// NoticeStore queues one-time user notices per session in Redis.
// Push is best-effort: delivery failures are logged and dropped so a
// broken notice path never fails the operation that produced it.
type NoticeStore struct {
	client redis.UniversalClient
	prefix string
	logger *slog.Logger
}

var _ ports.Notifier = (*NoticeStore)(nil)

// NewNoticeStore creates a Redis-backed notice queue.
func NewNoticeStore(client redis.UniversalClient, logger *slog.Logger) *NoticeStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoticeStore{client: client, prefix: "notice:", logger: logger}
}

func (s *NoticeStore) Push(ctx context.Context, sessionID string, n ports.Notice) {
	if sessionID == "" {
		return
	}

	data, err := json.Marshal(n)
	if err != nil {
		s.logger.DebugContext(ctx, "marshal notice failed", "error", err)
		return
	}

	key := s.prefix + sessionID
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, noticeTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.DebugContext(ctx, "push notice failed", "error", err)
	}
}

func (s *NoticeStore) Drain(ctx context.Context, sessionID string) []ports.Notice {
	if sessionID == "" {
		return nil
	}

	key := s.prefix + sessionID
	pipe := s.client.TxPipeline()
	rangeCmd := pipe.LRange(ctx, key, 0, -1)
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.DebugContext(ctx, "drain notices failed", "error", err)
		return nil
	}

	raw := rangeCmd.Val()
	notices := make([]ports.Notice, 0, len(raw))
	for _, item := range raw {
		var n ports.Notice
		if err := json.Unmarshal([]byte(item), &n); err != nil {
			continue
		}
		notices = append(notices, n)
	}
	return notices
}
