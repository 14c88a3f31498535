// Package presence mirrors the connection registry into Redis so that other
// processes can tell whether a user is online.
package presence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// writeTimeout bounds every Redis call made from a registry callback, which
// runs while the user's slot is held.
const writeTimeout = 500 * time.Millisecond

// Status is stored as JSON under <prefix>:presence:<user id>.
type Status struct {
	Status   string `json:"status"`
	LastSeen int64  `json:"last_seen"`
}

func (s Status) Online() bool { return s.Status == StatusOnline }

// Mirror implements ws.Observer. Online keys expire after ttl unless Run
// keeps refreshing them, so a crashed process does not leave users online.
type Mirror struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

func NewMirror(client *redis.Client, prefix string, ttl time.Duration) *Mirror {
	return &Mirror{client: client, prefix: prefix, ttl: ttl, now: time.Now}
}

func (m *Mirror) key(userID int64) string {
	return fmt.Sprintf("%s:presence:%s", m.prefix, strconv.FormatInt(userID, 10))
}

func (m *Mirror) set(ctx context.Context, userID int64, status string, ttl time.Duration) error {
	data, err := json.Marshal(Status{Status: status, LastSeen: m.now().Unix()})
	if err != nil {
		return err
	}
	return m.client.Set(ctx, m.key(userID), data, ttl).Err()
}

func (m *Mirror) Bound(userID int64, connID string, _ bool) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := m.set(ctx, userID, StatusOnline, m.ttl); err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Str("conn_id", connID).Msg("An error occurred when publishing presence.")
	}
}

// Unbound records the last time the user was seen. The key is kept without
// expiry so it can still answer "last seen".
func (m *Mirror) Unbound(userID int64, connID string) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := m.set(ctx, userID, StatusOffline, 0); err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Str("conn_id", connID).Msg("An error occurred when publishing presence.")
	}
}

func (m *Mirror) Delivered(int64)           {}
func (m *Mirror) Undelivered(int64, string) {}

// Get returns the stored status of userID. A user never seen is offline
// with a zero LastSeen.
func (m *Mirror) Get(ctx context.Context, userID int64) (Status, error) {
	data, err := m.client.Get(ctx, m.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Status{Status: StatusOffline}, nil
	} else if err != nil {
		return Status{}, err
	}
	var st Status
	if err := json.Unmarshal(data, &st); err != nil {
		return Status{}, fmt.Errorf("failed to decode presence of user %d: %w", userID, err)
	}
	return st, nil
}

// Refresh re-publishes every id in onlineIDs as online in one pipeline.
func (m *Mirror) Refresh(ctx context.Context, onlineIDs []int64) error {
	if len(onlineIDs) == 0 {
		return nil
	}
	_, err := m.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for _, id := range onlineIDs {
			data, err := json.Marshal(Status{Status: StatusOnline, LastSeen: m.now().Unix()})
			if err != nil {
				return err
			}
			p.Set(ctx, m.key(id), data, m.ttl)
		}
		return nil
	})
	return err
}

// Run refreshes the keys of the users reported by onlineIDs every interval
// until ctx is done.
func (m *Mirror) Run(ctx context.Context, interval time.Duration, onlineIDs func() []int64) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.Refresh(ctx, onlineIDs()); err != nil && ctx.Err() == nil {
				log.Warn().Err(err).Msg("An error occurred when refreshing presence.")
			}
		}
	}
}
