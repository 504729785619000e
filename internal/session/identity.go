package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Shivanand-hulikatti/foundation-portal/internal/cms"
	"github.com/Shivanand-hulikatti/foundation-portal/internal/model"
)

// MemberLookup resolves the content store user behind a caller token.
type MemberLookup interface {
	Me(ctx context.Context, userToken string) (model.Member, error)
}

// IdentityResolver maps a principal's bearer token to its backend user id.
// When a Redis client is configured, answers are cached per token.
type IdentityResolver struct {
	lookup MemberLookup
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// NewIdentityResolver constructs a resolver. client may be nil.
func NewIdentityResolver(lookup MemberLookup, client *redis.Client, ttl time.Duration, logger *slog.Logger) *IdentityResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &IdentityResolver{
		lookup: lookup,
		client: client,
		prefix: "identity:",
		ttl:    ttl,
		logger: logger.With("component", "identity"),
	}
}

// Resolve returns the backend user id for p.
func (r *IdentityResolver) Resolve(ctx context.Context, p model.Principal) (int, error) {
	if p.Token == "" {
		return 0, ErrUnauthorized
	}
	key := r.key(p.Token)

	if r.client != nil {
		m, err := r.cached(ctx, key)
		switch {
		case err == nil:
			return m.ID, nil
		case !errors.Is(err, redis.Nil):
			// Cache trouble must not block registration.
			r.logger.Warn("identity cache read failed", "error", err)
		}
	}

	m, err := r.lookup.Me(ctx, p.Token)
	if err != nil {
		var cmsErr *cms.Error
		if errors.As(err, &cmsErr) && (cmsErr.Status == http.StatusUnauthorized || cmsErr.Status == http.StatusForbidden) {
			return 0, fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
		return 0, fmt.Errorf("resolve identity: %w", err)
	}

	if r.client != nil {
		if err := r.store(ctx, key, m); err != nil {
			r.logger.Warn("identity cache write failed", "error", err)
		}
	}
	return m.ID, nil
}

// Forget drops the cached identity of a token.
func (r *IdentityResolver) Forget(ctx context.Context, token string) error {
	if r.client == nil {
		return nil
	}
	if err := r.client.Del(ctx, r.key(token)).Err(); err != nil {
		return fmt.Errorf("forget identity: %w", err)
	}
	return nil
}

func (r *IdentityResolver) cached(ctx context.Context, key string) (model.Member, error) {
	raw, err := r.client.Get(ctx, key).Result()
	if err != nil {
		return model.Member{}, err
	}
	var m model.Member
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return model.Member{}, fmt.Errorf("unmarshal cached identity: %w", err)
	}
	return m, nil
}

func (r *IdentityResolver) store(ctx context.Context, key string, m model.Member) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}
	return r.client.Set(ctx, key, raw, r.ttl).Err()
}

// key never embeds the raw token.
func (r *IdentityResolver) key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return r.prefix + hex.EncodeToString(sum[:])
}

// NewRedisClient parses redisURL and checks connectivity.
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}
