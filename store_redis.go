package auth

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Key layout:
//
//	<prefix>token:<value>     JSON record, TTL = token TTL
//	<prefix>identity:<id>     set of token values owned by the identity
//	<prefix>expiry            zset of "<identity>|<token>" scored by expiry
//
// The Lua scripts keep rotation and bulk revocation atomic on a single node.
// Keys are derived inside the scripts, so this store targets standalone
// Redis, not cluster mode.

// rotateScript consumes an Active record and persists its replacement in one
// step. Returns 1 on success, 0 when the record is missing or not Active.
var rotateScript = redis.NewScript(`
	local raw = redis.call('GET', KEYS[1])
	if not raw then return 0 end
	local rec = cjson.decode(raw)
	if rec.status ~= 'active' then return 0 end
	rec.status = 'rotated'
	rec.replaced_by = ARGV[2]
	rec.updated_at = ARGV[3]
	local ttl = redis.call('PTTL', KEYS[1])
	redis.call('SET', KEYS[1], cjson.encode(rec))
	if ttl > 0 then redis.call('PEXPIRE', KEYS[1], ttl) end
	redis.call('SET', KEYS[2], ARGV[1], 'PX', ARGV[4])
	redis.call('SADD', KEYS[3], ARGV[5])
	return 1
`)

// revokeAllScript marks every non-revoked record in the identity set Revoked.
var revokeAllScript = redis.NewScript(`
	local affected = 0
	local members = redis.call('SMEMBERS', KEYS[1])
	for _, token in ipairs(members) do
		local key = ARGV[2] .. token
		local raw = redis.call('GET', key)
		if raw then
			local rec = cjson.decode(raw)
			if rec.status ~= 'revoked' then
				rec.status = 'revoked'
				rec.revoked_at = ARGV[1]
				rec.updated_at = ARGV[1]
				local ttl = redis.call('PTTL', key)
				redis.call('SET', key, cjson.encode(rec))
				if ttl > 0 then redis.call('PEXPIRE', key, ttl) end
				affected = affected + 1
			end
		end
	end
	return affected
`)

// RedisStoreConfig configures the Redis-backed refresh token store.
type RedisStoreConfig struct {
	Address  string
	Password string
	DB       int
	Prefix   string

	PoolSize     int
	MinIdleConns int
	MaxRetries   int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	Logger Logger
}

// DefaultRedisStoreConfig returns a RedisStoreConfig with sane defaults.
func DefaultRedisStoreConfig() *RedisStoreConfig {
	return &RedisStoreConfig{
		Address:      "localhost:6379",
		DB:           0,
		Prefix:       "auth:refresh:",
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// RedisRefreshTokenStore implements RefreshTokenStore on Redis. Expiry is
// delegated to key TTLs; DeleteExpired only sweeps the index entries.
type RedisRefreshTokenStore struct {
	client *redis.Client
	prefix string
	logger Logger
}

var _ RefreshTokenStore = (*RedisRefreshTokenStore)(nil)

// NewRedisRefreshTokenStore connects a store using its own client.
func NewRedisRefreshTokenStore(cfg *RedisStoreConfig) (*RedisRefreshTokenStore, error) {
	if cfg == nil {
		cfg = DefaultRedisStoreConfig()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to connect to redis")
	}

	store := NewRedisRefreshTokenStoreWithClient(client, cfg.Prefix)
	if cfg.Logger != nil {
		store.logger = cfg.Logger
	}
	return store, nil
}

// NewRedisRefreshTokenStoreWithClient wraps an existing client; the caller
// keeps ownership of its lifecycle.
func NewRedisRefreshTokenStoreWithClient(client *redis.Client, prefix string) *RedisRefreshTokenStore {
	if prefix == "" {
		prefix = "auth:refresh:"
	}
	return &RedisRefreshTokenStore{
		client: client,
		prefix: prefix,
		logger: defLogger{},
	}
}

// Close releases the underlying client.
func (s *RedisRefreshTokenStore) Close() error {
	return s.client.Close()
}

func (s *RedisRefreshTokenStore) tokenKey(token string) string {
	return s.prefix + "token:" + token
}

func (s *RedisRefreshTokenStore) identityKey(identityID string) string {
	return s.prefix + "identity:" + identityID
}

func (s *RedisRefreshTokenStore) expiryKey() string {
	return s.prefix + "expiry"
}

func (s *RedisRefreshTokenStore) Insert(ctx context.Context, record *RefreshToken) error {
	payload, err := marshalRedisRecord(record)
	if err != nil {
		return err
	}

	ttl := time.Until(record.ExpiresAt)
	if ttl <= 0 {
		return goerrors.New("refresh token is already expired", goerrors.CategoryBadInput)
	}

	ok, err := s.client.SetNX(ctx, s.tokenKey(record.Token), payload, ttl).Result()
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to store refresh token")
	}
	if !ok {
		return goerrors.New("refresh token value collision", goerrors.CategoryConflict)
	}

	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, s.identityKey(record.IdentityID), record.Token)
	pipe.ZAdd(ctx, s.expiryKey(), redis.Z{
		Score:  float64(record.ExpiresAt.UnixMilli()),
		Member: record.IdentityID + "|" + record.Token,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to index refresh token")
	}

	return nil
}

func (s *RedisRefreshTokenStore) Find(ctx context.Context, token string) (*RefreshToken, error) {
	raw, err := s.client.Get(ctx, s.tokenKey(token)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to load refresh token")
	}
	return unmarshalRedisRecord([]byte(raw))
}

func (s *RedisRefreshTokenStore) Rotate(ctx context.Context, token string, replacement *RefreshToken, at time.Time) (bool, error) {
	payload, err := marshalRedisRecord(replacement)
	if err != nil {
		return false, err
	}

	ttl := time.Until(replacement.ExpiresAt)
	if ttl <= 0 {
		return false, goerrors.New("replacement token is already expired", goerrors.CategoryBadInput)
	}

	keys := []string{
		s.tokenKey(token),
		s.tokenKey(replacement.Token),
		s.identityKey(replacement.IdentityID),
	}
	args := []any{
		string(payload),
		replacement.ID.String(),
		at.UTC().Format(time.RFC3339Nano),
		ttl.Milliseconds(),
		replacement.Token,
	}

	res, err := rotateScript.Run(ctx, s.client, keys, args...).Int()
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryOperation, "refresh token rotation failed")
	}
	if res != 1 {
		return false, nil
	}

	if err := s.client.ZAdd(ctx, s.expiryKey(), redis.Z{
		Score:  float64(replacement.ExpiresAt.UnixMilli()),
		Member: replacement.IdentityID + "|" + replacement.Token,
	}).Err(); err != nil {
		s.logger.Warn("failed to index rotated refresh token: %v", err)
	}

	return true, nil
}

func (s *RedisRefreshTokenStore) RevokeAllForIdentity(ctx context.Context, identityID string, at time.Time) (int64, error) {
	keys := []string{s.identityKey(identityID)}
	args := []any{
		at.UTC().Format(time.RFC3339Nano),
		s.prefix + "token:",
	}

	affected, err := revokeAllScript.Run(ctx, s.client, keys, args...).Int64()
	if err != nil {
		return 0, goerrors.Wrap(err, goerrors.CategoryOperation, "bulk revocation failed")
	}
	return affected, nil
}

func (s *RedisRefreshTokenStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	cutoff := before.UnixMilli()

	members, err := s.client.ZRangeByScore(ctx, s.expiryKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(cutoff, 10),
	}).Result()
	if err != nil {
		return 0, goerrors.Wrap(err, goerrors.CategoryOperation, "expiry sweep query failed")
	}

	var deleted int64
	for _, member := range members {
		identityID, token, ok := strings.Cut(member, "|")
		if !ok {
			continue
		}

		pipe := s.client.TxPipeline()
		pipe.Del(ctx, s.tokenKey(token))
		pipe.SRem(ctx, s.identityKey(identityID), token)
		pipe.ZRem(ctx, s.expiryKey(), member)
		if _, err := pipe.Exec(ctx); err != nil {
			return deleted, goerrors.Wrap(err, goerrors.CategoryOperation, "expiry sweep delete failed")
		}
		deleted++
	}

	return deleted, nil
}

// redisRecord is the JSON shape stored in Redis. Times use RFC3339Nano so the
// Lua scripts can stamp updated_at and revoked_at without date math.
type redisRecord struct {
	ID         string `json:"id"`
	Token      string `json:"token"`
	IdentityID string `json:"identity_id"`
	Status     string `json:"status"`
	ReplacedBy string `json:"replaced_by,omitempty"`
	IssuedAt   string `json:"issued_at"`
	ExpiresAt  string `json:"expires_at"`
	RevokedAt  string `json:"revoked_at,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
	UpdatedAt  string `json:"updated_at,omitempty"`
}

func marshalRedisRecord(record *RefreshToken) ([]byte, error) {
	r := redisRecord{
		ID:         record.ID.String(),
		Token:      record.Token,
		IdentityID: record.IdentityID,
		Status:     record.Status,
		IssuedAt:   record.IssuedAt.UTC().Format(time.RFC3339Nano),
		ExpiresAt:  record.ExpiresAt.UTC().Format(time.RFC3339Nano),
	}
	if record.ReplacedBy != nil {
		r.ReplacedBy = record.ReplacedBy.String()
	}
	if record.RevokedAt != nil {
		r.RevokedAt = record.RevokedAt.UTC().Format(time.RFC3339Nano)
	}
	if record.CreatedAt != nil {
		r.CreatedAt = record.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	if record.UpdatedAt != nil {
		r.UpdatedAt = record.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}

	payload, err := json.Marshal(r)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to serialize refresh token")
	}
	return payload, nil
}

func unmarshalRedisRecord(raw []byte) (*RefreshToken, error) {
	var r redisRecord
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to parse refresh token record")
	}

	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "refresh token record has a bad id")
	}

	record := &RefreshToken{
		ID:         id,
		Token:      r.Token,
		IdentityID: r.IdentityID,
		Status:     r.Status,
	}

	if record.IssuedAt, err = parseRecordTime(r.IssuedAt); err != nil {
		return nil, err
	}
	if record.ExpiresAt, err = parseRecordTime(r.ExpiresAt); err != nil {
		return nil, err
	}

	if r.ReplacedBy != "" {
		replacedBy, err := uuid.Parse(r.ReplacedBy)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "refresh token record has a bad replacement id")
		}
		record.ReplacedBy = &replacedBy
	}
	if r.RevokedAt != "" {
		t, err := parseRecordTime(r.RevokedAt)
		if err != nil {
			return nil, err
		}
		record.RevokedAt = &t
	}
	if r.CreatedAt != "" {
		t, err := parseRecordTime(r.CreatedAt)
		if err != nil {
			return nil, err
		}
		record.CreatedAt = &t
	}
	if r.UpdatedAt != "" {
		t, err := parseRecordTime(r.UpdatedAt)
		if err != nil {
			return nil, err
		}
		record.UpdatedAt = &t
	}

	return record, nil
}

func parseRecordTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, goerrors.Wrap(err, goerrors.CategoryInternal, "refresh token record has a bad timestamp")
	}
	return t, nil
}
