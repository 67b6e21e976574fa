package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"mindpattern/internal/config"
	"mindpattern/internal/domain"
)

// ErrNotFound is returned for sessions that never existed or have expired.
var ErrNotFound = errors.New("session not found")

// Session is a short-lived conversation whose analyses are kept newest first.
type Session struct {
	ID        string    `json:"sessionId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Sessions stores sessions and their analyses in Redis. Every access renews
// the TTL.
type Sessions struct {
	rdb         *redis.Client
	ttl         time.Duration
	maxAnalyses int64
}

func New(cfg config.SessionsConfig) (*Sessions, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}

	return NewWithClient(rdb, cfg), nil
}

// NewWithClient uses an existing client; Close closes it.
func NewWithClient(rdb *redis.Client, cfg config.SessionsConfig) *Sessions {
	return &Sessions{rdb: rdb, ttl: cfg.TTL, maxAnalyses: int64(cfg.MaxAnalyses)}
}

func (s *Sessions) Close() error {
	return s.rdb.Close()
}

func sessionKey(id string) string  { return "session:" + id }
func analysesKey(id string) string { return "session:" + id + ":analyses" }

// Create starts a session, or renews it when id names a live one. An empty id
// generates a new one.
func (s *Sessions) Create(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		id = uuid.NewString()
	}

	now := time.Now().UTC()
	created, err := s.rdb.SetNX(ctx, sessionKey(id), now.Format(time.RFC3339Nano), s.ttl).Result()
	if err != nil {
		return nil, err
	}
	if created {
		return &Session{ID: id, CreatedAt: now}, nil
	}

	return s.Touch(ctx, id)
}

// Touch renews a live session.
func (s *Sessions) Touch(ctx context.Context, id string) (*Session, error) {
	raw, err := s.rdb.GetEx(ctx, sessionKey(id), s.ttl).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.rdb.Expire(ctx, analysesKey(id), s.ttl).Err(); err != nil {
		return nil, err
	}

	createdAt, _ := time.Parse(time.RFC3339Nano, raw)
	return &Session{ID: id, CreatedAt: createdAt}, nil
}

// Append records an analysis as the newest entry, dropping the oldest ones
// beyond the cap.
func (s *Sessions) Append(ctx context.Context, id string, a domain.Analysis) error {
	data, err := encodeAnalysis(a)
	if err != nil {
		return err
	}

	exists, err := s.rdb.Exists(ctx, sessionKey(id)).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return ErrNotFound
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, analysesKey(id), data)
		if s.maxAnalyses > 0 {
			pipe.LTrim(ctx, analysesKey(id), 0, s.maxAnalyses-1)
		}
		pipe.Expire(ctx, analysesKey(id), s.ttl)
		pipe.Expire(ctx, sessionKey(id), s.ttl)
		return nil
	})
	return err
}

// History returns up to limit analyses, newest first. limit <= 0 means all.
func (s *Sessions) History(ctx context.Context, id string, limit int) ([]domain.Analysis, error) {
	if _, err := s.Touch(ctx, id); err != nil {
		return nil, err
	}

	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}

	items, err := s.rdb.LRange(ctx, analysesKey(id), 0, stop).Result()
	if err != nil {
		return nil, err
	}

	analyses := make([]domain.Analysis, 0, len(items))
	for _, item := range items {
		a, err := decodeAnalysis([]byte(item))
		if err != nil {
			return nil, err
		}
		analyses = append(analyses, a)
	}

	return analyses, nil
}

// Delete ends a session and drops its analyses.
func (s *Sessions) Delete(ctx context.Context, id string) error {
	n, err := s.rdb.Del(ctx, sessionKey(id), analysesKey(id)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func encodeAnalysis(a domain.Analysis) ([]byte, error) {
	return msgpack.Marshal(&a)
}

func decodeAnalysis(data []byte) (domain.Analysis, error) {
	var a domain.Analysis
	err := msgpack.Unmarshal(data, &a)
	return a, err
}
