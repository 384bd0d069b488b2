// Package history keeps per-session chat transcripts in Redis lists.
//
// Each session is a list of JSON-encoded messages under chat:<session>.
// Every append refreshes a sliding expiry, so idle sessions disappear on
// their own. Reads tolerate records that were written by other tools or
// truncated mid-write; see Entry.
package history

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/poiesic/newsrag/core"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultTTL is the idle lifetime of a session.
	DefaultTTL = 24 * time.Hour

	// DefaultKeyPrefix namespaces session lists.
	DefaultKeyPrefix = "chat:"
)

// Store is a Redis-backed chat history.
type Store struct {
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithTTL sets the sliding session expiry.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithKeyPrefix sets the prefix prepended to session IDs.
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore creates a history store over client.
// The caller keeps ownership of the client.
func NewStore(client redis.UniversalClient, opts ...Option) (*Store, error) {
	if client == nil {
		return nil, ErrClientRequired
	}
	s := &Store{
		client: client,
		ttl:    DefaultTTL,
		prefix: DefaultKeyPrefix,
		now:    func() time.Time { return time.Now().UTC() },
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "history")
	return s, nil
}

// Key returns the Redis key holding a session.
func (s *Store) Key(sessionID string) string {
	return s.prefix + sessionID
}

// Ping checks the Redis connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return &SessionStoreError{Op: "ping", Err: err}
	}
	return nil
}

// Append adds msg to the end of the session and refreshes its expiry.
// A zero ID or timestamp is filled in; msg is updated in place.
func (s *Store) Append(ctx context.Context, sessionID string, msg *core.ChatMessage) error {
	if sessionID == "" {
		return &SessionStoreError{Op: "append", Err: ErrSessionRequired}
	}
	if err := core.ValidateChatMessage(msg); err != nil {
		return &SessionStoreError{Op: "append", SessionID: sessionID, Err: err}
	}

	now := s.now()
	if msg.ID == 0 {
		msg.ID = now.UnixMilli()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = now
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return &SessionStoreError{Op: "append", SessionID: sessionID, Err: err}
	}

	key := s.Key(sessionID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, data)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return &SessionStoreError{Op: "append", SessionID: sessionID, Err: err}
	}
	s.logger.Debug("appended message", "session", sessionID, "type", msg.Type)
	return nil
}

// ReadAll returns every record of the session in insertion order.
// A missing or expired session yields an empty slice.
func (s *Store) ReadAll(ctx context.Context, sessionID string) ([]Entry, error) {
	return s.read(ctx, "read", sessionID)
}

func (s *Store) read(ctx context.Context, op, sessionID string) ([]Entry, error) {
	if sessionID == "" {
		return nil, &SessionStoreError{Op: op, Err: ErrSessionRequired}
	}
	raws, err := s.client.LRange(ctx, s.Key(sessionID), 0, -1).Result()
	if err != nil {
		return nil, &SessionStoreError{Op: op, SessionID: sessionID, Err: err}
	}

	now := s.now()
	entries := make([]Entry, len(raws))
	for i, raw := range raws {
		entries[i] = decode(raw, now)
		if entries[i].Kind == Corrupted {
			s.logger.Warn("corrupted history record", "session", sessionID, "index", i, "err", entries[i].Err)
		}
	}
	return entries, nil
}

// Clear deletes the session.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return &SessionStoreError{Op: "clear", Err: ErrSessionRequired}
	}
	if err := s.client.Del(ctx, s.Key(sessionID)).Err(); err != nil {
		return &SessionStoreError{Op: "clear", SessionID: sessionID, Err: err}
	}
	s.logger.Info("cleared session", "session", sessionID)
	return nil
}

// Recover rewrites the session keeping only well-formed messages, and
// returns how many were kept. The rewrite is a single MULTI transaction.
func (s *Store) Recover(ctx context.Context, sessionID string) (int, error) {
	entries, err := s.read(ctx, "recover", sessionID)
	if err != nil {
		return 0, err
	}

	var valid []any
	for _, e := range entries {
		if e.Kind == Parsed {
			valid = append(valid, e.Raw)
		}
	}

	key := s.Key(sessionID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(valid) > 0 {
			pipe.RPush(ctx, key, valid...)
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return 0, &SessionStoreError{Op: "recover", SessionID: sessionID, Err: err}
	}

	s.logger.Info("recovered session", "session", sessionID, "kept", len(valid), "dropped", len(entries)-len(valid))
	return len(valid), nil
}
