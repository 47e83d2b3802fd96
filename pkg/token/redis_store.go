package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultExpiredRetention keeps expired tokens readable for a while so that
// lookups can report "expired" instead of "absent".
const DefaultExpiredRetention = 24 * time.Hour

// replaceTokenLua drops the current record for an identity together with its
// indexes and writes the new one.
// KEYS[1] = record key
// ARGV[1] = identity, ARGV[2] = value index prefix, ARGV[3] = email index prefix,
// ARGV[4] = ttl ms, ARGV[5] = index value ("1"/"0"), ARGV[6] = index email ("1"/"0"),
// ARGV[7..12] = id, value, email, user_id, expires_at, created_at
var replaceTokenLua = redis.NewScript(`
local old = redis.call('HMGET', KEYS[1], 'value', 'email')
if old[1] then
  local vk = ARGV[2] .. old[1]
  if redis.call('GET', vk) == ARGV[1] then redis.call('DEL', vk) end
end
if old[2] then
  local ek = ARGV[3] .. old[2]
  if redis.call('GET', ek) == ARGV[1] then redis.call('DEL', ek) end
end
redis.call('DEL', KEYS[1])
redis.call('HSET', KEYS[1], 'id', ARGV[7], 'value', ARGV[8], 'email', ARGV[9], 'user_id', ARGV[10], 'expires_at', ARGV[11], 'created_at', ARGV[12])
redis.call('PEXPIRE', KEYS[1], ARGV[4])
if ARGV[5] == '1' then redis.call('SET', ARGV[2] .. ARGV[8], ARGV[1], 'PX', ARGV[4]) end
if ARGV[6] == '1' then redis.call('SET', ARGV[3] .. ARGV[9], ARGV[1], 'PX', ARGV[4]) end
return 1
`)

// consumeTokenLua deletes the record only if it still carries the expected id.
// KEYS[1] = record key
// ARGV[1] = id, ARGV[2] = identity, ARGV[3] = value index prefix, ARGV[4] = email index prefix
//
// Returns 1 when deleted, 0 when the record is gone or was replaced.
var consumeTokenLua = redis.NewScript(`
local cur = redis.call('HMGET', KEYS[1], 'id', 'value', 'email')
if cur[1] ~= ARGV[1] then
  return 0
end
if cur[2] then
  local vk = ARGV[3] .. cur[2]
  if redis.call('GET', vk) == ARGV[2] then redis.call('DEL', vk) end
end
if cur[3] then
  local ek = ARGV[4] .. cur[3]
  if redis.call('GET', ek) == ARGV[2] then redis.call('DEL', ek) end
end
redis.call('DEL', KEYS[1])
return 1
`)

// RedisStore implements Store on redis. Each token is a hash under its
// identity key, with string indexes from value and email back to the identity.
type RedisStore struct {
	redis     redis.UniversalClient
	prefix    string
	retention time.Duration
}

// RedisOption configures a RedisStore
type RedisOption func(*RedisStore)

// WithKeyPrefix sets the key namespace (default "auth")
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithExpiredRetention sets how long a token stays readable after expiry
func WithExpiredRetention(d time.Duration) RedisOption {
	return func(s *RedisStore) {
		if d > 0 {
			s.retention = d
		}
	}
}

// NewRedisStore creates a redis-backed token store
func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		redis:     client,
		prefix:    "auth",
		retention: DefaultExpiredRetention,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) recordKey(kind Kind, identity string) string {
	return s.prefix + ":tok:" + string(kind) + ":i:" + identity
}

func (s *RedisStore) valuePrefix(kind Kind) string {
	return s.prefix + ":tok:" + string(kind) + ":v:"
}

func (s *RedisStore) emailPrefix(kind Kind) string {
	return s.prefix + ":tok:" + string(kind) + ":e:"
}

func (s *RedisStore) Replace(ctx context.Context, t Token) (*Token, error) {
	if !t.Kind.Valid() {
		return nil, ErrInvalidKind
	}
	identity := t.IdentityKey()

	ttl := time.Until(t.ExpiresAt) + s.retention
	if ttl < time.Second {
		ttl = time.Second
	}
	indexValue := "0"
	if t.Kind.UniqueValue() {
		indexValue = "1"
	}
	indexEmail := "0"
	if identity != t.Email {
		indexEmail = "1"
	}
	userID := ""
	if t.UserID != uuid.Nil {
		userID = t.UserID.String()
	}

	err := replaceTokenLua.Run(ctx, s.redis,
		[]string{s.recordKey(t.Kind, identity)},
		identity,
		s.valuePrefix(t.Kind),
		s.emailPrefix(t.Kind),
		ttl.Milliseconds(),
		indexValue,
		indexEmail,
		t.ID.String(),
		t.Value,
		t.Email,
		userID,
		t.ExpiresAt.UTC().Format(time.RFC3339Nano),
		t.CreatedAt.UTC().Format(time.RFC3339Nano),
	).Err()
	if err != nil {
		return nil, fmt.Errorf("replace token: %w", err)
	}
	return &t, nil
}

func (s *RedisStore) FindByValue(ctx context.Context, kind Kind, value string) (*Token, error) {
	if !kind.UniqueValue() {
		return nil, ErrUnsupportedLookup
	}
	identity, err := s.redis.Get(ctx, s.valuePrefix(kind)+value).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}
	t, err := s.load(ctx, kind, identity)
	if err != nil {
		return nil, err
	}
	if t.Value != value {
		return nil, ErrTokenNotFound
	}
	return t, nil
}

func (s *RedisStore) FindByEmail(ctx context.Context, kind Kind, email string) (*Token, error) {
	identity, err := s.redis.Get(ctx, s.emailPrefix(kind)+email).Result()
	switch {
	case errors.Is(err, redis.Nil):
		identity = email
	case err != nil:
		return nil, err
	}
	t, err := s.load(ctx, kind, identity)
	if err != nil {
		return nil, err
	}
	if t.Email != email {
		return nil, ErrTokenNotFound
	}
	return t, nil
}

func (s *RedisStore) FindByUserID(ctx context.Context, kind Kind, userID uuid.UUID) (*Token, error) {
	t, err := s.load(ctx, kind, userID.String())
	if err != nil {
		return nil, err
	}
	if t.UserID != userID {
		return nil, ErrTokenNotFound
	}
	return t, nil
}

func (s *RedisStore) Consume(ctx context.Context, t Token) error {
	identity := t.IdentityKey()
	n, err := consumeTokenLua.Run(ctx, s.redis,
		[]string{s.recordKey(t.Kind, identity)},
		t.ID.String(),
		identity,
		s.valuePrefix(t.Kind),
		s.emailPrefix(t.Kind),
	).Int64()
	if err != nil {
		return fmt.Errorf("consume token: %w", err)
	}
	if n == 0 {
		return ErrTokenNotFound
	}
	return nil
}

func (s *RedisStore) load(ctx context.Context, kind Kind, identity string) (*Token, error) {
	fields, err := s.redis.HGetAll(ctx, s.recordKey(kind, identity)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, ErrTokenNotFound
	}
	return decodeToken(kind, fields)
}

func decodeToken(kind Kind, fields map[string]string) (*Token, error) {
	t := Token{
		Kind:  kind,
		Value: fields["value"],
		Email: fields["email"],
	}
	var err error
	if t.ID, err = uuid.Parse(fields["id"]); err != nil {
		return nil, fmt.Errorf("decode token id: %w", err)
	}
	if raw := fields["user_id"]; raw != "" {
		if t.UserID, err = uuid.Parse(raw); err != nil {
			return nil, fmt.Errorf("decode token user id: %w", err)
		}
	}
	if t.ExpiresAt, err = time.Parse(time.RFC3339Nano, fields["expires_at"]); err != nil {
		return nil, fmt.Errorf("decode token expiry: %w", err)
	}
	if t.CreatedAt, err = time.Parse(time.RFC3339Nano, fields["created_at"]); err != nil {
		return nil, fmt.Errorf("decode token creation time: %w", err)
	}
	return &t, nil
}

// RedisConfirmationStore implements ConfirmationStore with one key per user.
// DEL is atomic, so Consume needs no script.
type RedisConfirmationStore struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisConfirmationStore creates a redis-backed confirmation store. A ttl
// of zero keeps confirmations until consumed.
func NewRedisConfirmationStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisConfirmationStore {
	if prefix == "" {
		prefix = "auth"
	}
	return &RedisConfirmationStore{redis: client, prefix: prefix, ttl: ttl}
}

func (s *RedisConfirmationStore) key(userID uuid.UUID) string {
	return s.prefix + ":2fa_confirm:" + userID.String()
}

func (s *RedisConfirmationStore) Confirm(ctx context.Context, userID uuid.UUID) (*Confirmation, error) {
	c := Confirmation{ID: uuid.New(), UserID: userID, CreatedAt: time.Now().UTC()}
	if err := s.redis.Set(ctx, s.key(userID), c.ID.String(), s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("set 2fa confirmation: %w", err)
	}
	return &c, nil
}

func (s *RedisConfirmationStore) Consume(ctx context.Context, userID uuid.UUID) (bool, error) {
	n, err := s.redis.Del(ctx, s.key(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("delete 2fa confirmation: %w", err)
	}
	return n > 0, nil
}
