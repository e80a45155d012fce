package dedupe

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisClaimPrefix    = "claim:"
	redisProcessedValue = "processed:"
)

// markScript records a processed delivery unless one is already present, so
// a repeated MarkProcessed never extends the retention window. It returns -1
// when the key holds a claim other than ARGV[3].
var markScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if v then
  if string.sub(v, 1, 10) == 'processed:' then
    return 0
  end
  if v ~= ARGV[3] then
    return -1
  end
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
return 1
`)

// releaseScript deletes the key only while it still holds the caller's claim.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// Redis is a Store shared by every instance pointing at the same server.
// Key expiry implements both retention and the claim lease.
type Redis struct {
	client *redis.Client
	prefix string
	opts   Options
}

// ConnectRedis builds a client from a redis:// URL or a bare host:port.
func ConnectRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	var client *redis.Client
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: redisURL})
	}

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// NewRedis wraps client. Keys are stored as prefix+delivery id.
func NewRedis(client *redis.Client, prefix string, opts Options) *Redis {
	return &Redis{client: client, prefix: prefix, opts: opts.withDefaults()}
}

func (r *Redis) key(id string) string {
	return r.prefix + id
}

func (r *Redis) IsDuplicate(ctx context.Context, id string) (bool, error) {
	id, err := normalizeID(id)
	if err != nil {
		return false, err
	}

	v, err := r.client.Get(ctx, r.key(id)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read delivery record: %w", err)
	}
	return strings.HasPrefix(v, redisProcessedValue), nil
}

func (r *Redis) MarkProcessed(ctx context.Context, id, token string) error {
	id, err := normalizeID(id)
	if err != nil {
		return err
	}

	value := redisProcessedValue + strconv.FormatInt(r.opts.now().Unix(), 10)
	n, err := markScript.Run(ctx, r.client, []string{r.key(id)},
		value, r.opts.Retention.Milliseconds(), redisClaimPrefix+token).Int()
	if err != nil {
		return fmt.Errorf("record processed delivery: %w", err)
	}
	if n < 0 {
		return ErrClaimLost
	}
	return nil
}

func (r *Redis) Claim(ctx context.Context, id string) (string, bool, error) {
	id, err := normalizeID(id)
	if err != nil {
		return "", false, err
	}

	token := newToken()
	ok, err := r.client.SetNX(ctx, r.key(id), redisClaimPrefix+token, r.opts.ClaimLease).Result()
	if err != nil {
		return "", false, fmt.Errorf("claim delivery: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (r *Redis) Release(ctx context.Context, id, token string) error {
	id, err := normalizeID(id)
	if err != nil {
		return err
	}

	if err := releaseScript.Run(ctx, r.client, []string{r.key(id)}, redisClaimPrefix+token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release delivery claim: %w", err)
	}
	return nil
}

func (r *Redis) Lease() time.Duration { return r.opts.ClaimLease }

// Prune is a no-op; Redis expires keys on its own.
func (r *Redis) Prune(context.Context) (int, error) { return 0, nil }

func (r *Redis) Close() error {
	return r.client.Close()
}
