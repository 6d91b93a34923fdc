package display

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Shivanand-hulikatti/guild-roster/internal/logging"
	"github.com/Shivanand-hulikatti/guild-roster/internal/model"
)

// updateScript applies a view only if the artifact exists, is still active
// and the incoming version is newer than the stored one.
// Returns 1 applied, 0 stale, -1 missing, -2 invalidated.
var updateScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
if redis.call('HGET', KEYS[1], 'state') == 'invalidated' then
	return -2
end
local current = tonumber(redis.call('HGET', KEYS[1], 'version') or '0')
if tonumber(ARGV[1]) <= current then
	return 0
end
redis.call('HSET', KEYS[1], 'version', ARGV[1], 'view', ARGV[2], 'updated_at', ARGV[3])
return 1
`)

// RedisSurface stores artifacts as Redis hashes at {prefix}:artifact:{event_id}
// and broadcasts every change on {prefix}:artifact_events.
// It is safe for concurrent use.
type RedisSurface struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisSurface wraps a connected client. prefix namespaces keys and channels.
func NewRedisSurface(rdb *redis.Client, prefix string) *RedisSurface {
	if prefix == "" {
		prefix = "roster"
	}
	return &RedisSurface{rdb: rdb, prefix: prefix, now: time.Now}
}

var (
	_ Surface = (*RedisSurface)(nil)
	_ Watcher = (*RedisSurface)(nil)
)

func (s *RedisSurface) artifactKey(eventID string) string {
	return fmt.Sprintf("%s:artifact:%s", s.prefix, eventID)
}

func (s *RedisSurface) eventsChannel() string {
	return s.prefix + ":artifact_events"
}

// Ping verifies Redis connectivity.
func (s *RedisSurface) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *RedisSurface) Publish(ctx context.Context, view *model.View) error {
	payload, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("failed to marshal view: %w", err)
	}
	key := s.artifactKey(view.EventID)
	err = s.rdb.HSet(ctx, key,
		"event_id", view.EventID,
		"guild_id", view.GuildID,
		"state", string(StateActive),
		"version", view.Version,
		"view", string(payload),
		"notice", "",
		"updated_at", s.now().UTC().Format(time.RFC3339Nano),
	).Err()
	if err != nil {
		return fmt.Errorf("failed to write artifact to Redis: %w", err)
	}
	return s.broadcast(ctx, Event{Kind: EventPublished, EventID: view.EventID, View: view})
}

func (s *RedisSurface) Fetch(ctx context.Context, eventID string) (*Artifact, error) {
	hash, err := s.rdb.HGetAll(ctx, s.artifactKey(eventID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact from Redis: %w", err)
	}
	// HGetAll returns an empty map for non-existent keys
	if len(hash) == 0 {
		return nil, ErrArtifactMissing
	}
	return hashToArtifact(hash)
}

func (s *RedisSurface) Update(ctx context.Context, view *model.View) error {
	payload, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("failed to marshal view: %w", err)
	}
	res, err := updateScript.Run(ctx, s.rdb,
		[]string{s.artifactKey(view.EventID)},
		view.Version, string(payload), s.now().UTC().Format(time.RFC3339Nano),
	).Int()
	if err != nil {
		return fmt.Errorf("failed to update artifact: %w", err)
	}
	switch res {
	case 1:
		return s.broadcast(ctx, Event{Kind: EventUpdated, EventID: view.EventID, View: view})
	case 0:
		logging.FromContext(ctx).Debug("display update skipped, newer view already shown",
			"event_id", view.EventID, "version", view.Version)
		return nil
	case -1:
		return ErrArtifactMissing
	default:
		return ErrArtifactInvalidated
	}
}

func (s *RedisSurface) Invalidate(ctx context.Context, eventID, notice string) error {
	key := s.artifactKey(eventID)
	err := s.rdb.HSet(ctx, key,
		"event_id", eventID,
		"state", string(StateInvalidated),
		"notice", notice,
		"updated_at", s.now().UTC().Format(time.RFC3339Nano),
	).Err()
	if err != nil {
		return fmt.Errorf("failed to invalidate artifact: %w", err)
	}
	// the notice replaces the roster, so drop the view and its affordances
	if err := s.rdb.HDel(ctx, key, "view").Err(); err != nil {
		return fmt.Errorf("failed to strip artifact view: %w", err)
	}
	return s.broadcast(ctx, Event{Kind: EventInvalidated, EventID: eventID, Notice: notice})
}

func (s *RedisSurface) Delete(ctx context.Context, eventID string) error {
	n, err := s.rdb.Del(ctx, s.artifactKey(eventID)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete artifact: %w", err)
	}
	if n == 0 {
		return nil
	}
	return s.broadcast(ctx, Event{Kind: EventDeleted, EventID: eventID})
}

// Watch subscribes to changes of one event's artifact. The returned channel
// is closed when ctx is cancelled.
func (s *RedisSurface) Watch(ctx context.Context, eventID string) (<-chan Event, error) {
	sub := s.rdb.Subscribe(ctx, s.eventsChannel())
	// wait for the subscription to be confirmed so no event is missed
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("failed to subscribe to artifact events: %w", err)
	}

	out := make(chan Event, 16)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var evt Event
				if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
					logging.FromContext(ctx).Warn("dropping malformed artifact event", "error", err)
					continue
				}
				if evt.EventID != eventID {
					continue
				}
				select {
				case out <- evt:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (s *RedisSurface) broadcast(ctx context.Context, evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal artifact event: %w", err)
	}
	if err := s.rdb.Publish(ctx, s.eventsChannel(), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish artifact event: %w", err)
	}
	return nil
}

func hashToArtifact(hash map[string]string) (*Artifact, error) {
	a := &Artifact{
		EventID: hash["event_id"],
		GuildID: hash["guild_id"],
		State:   State(hash["state"]),
		Notice:  hash["notice"],
	}
	if v := hash["version"]; v != "" {
		version, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid artifact version %q: %w", v, err)
		}
		a.Version = version
	}
	if v := hash["view"]; v != "" {
		var view model.View
		if err := json.Unmarshal([]byte(v), &view); err != nil {
			return nil, fmt.Errorf("invalid artifact view: %w", err)
		}
		a.View = &view
	}
	if v := hash["updated_at"]; v != "" {
		ts, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, fmt.Errorf("invalid artifact timestamp: %w", err)
		}
		a.UpdatedAt = ts
	}
	return a, nil
}

// IsMissing reports whether err means the artifact does not exist.
func IsMissing(err error) bool {
	return errors.Is(err, ErrArtifactMissing)
}
