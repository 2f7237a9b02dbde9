package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"crawlqueue/internal/config"
	"crawlqueue/internal/logging"
)

const connectionTimeout = 2 * time.Second

// ErrNotRegistered is returned by Heartbeat for a process with no live key.
var ErrNotRegistered = errors.New("process not registered")

// Options configures a Registry.
type Options struct {
	// KeyPrefix namespaces every key, e.g. "crawlqueue".
	KeyPrefix string
	// TTL is how long a heartbeat stays valid.
	TTL    time.Duration
	Clock  func() time.Time
	Logger *slog.Logger
}

// Registry is a Redis-backed table of worker heartbeats.
type Registry struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// New wraps an existing Redis client.
func New(client *redis.Client, opts Options) *Registry {
	prefix := strings.Trim(opts.KeyPrefix, ":")
	if prefix == "" {
		prefix = "crawlqueue"
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Registry{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		now:    clock,
		logger: logging.NewComponentLogger(opts.Logger, "registry"),
	}
}

// Dial connects to the Redis server named in cfg and verifies it answers.
func Dial(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Registry, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", cfg.Redis.Address, err)
	}

	return New(client, Options{
		KeyPrefix: cfg.Redis.KeyPrefix,
		TTL:       cfg.ProcessTTL(),
		Logger:    logger,
	}), nil
}

// Close releases the Redis connection.
func (r *Registry) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}

// TTL reports how long a heartbeat stays valid.
func (r *Registry) TTL() time.Duration {
	return r.ttl
}

func (r *Registry) processKey(processID string) string {
	return r.prefix + ":process:" + processID
}

func (r *Registry) setKey() string {
	return r.prefix + ":processes"
}

func validateProcessID(processID string) error {
	if strings.TrimSpace(processID) == "" {
		return errors.New("process id is required")
	}
	return nil
}

// Register records processID as alive and lists it in the member set.
func (r *Registry) Register(ctx context.Context, processID string) error {
	if err := validateProcessID(processID); err != nil {
		return err
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.processKey(processID), r.now().Unix(), r.ttl)
		pipe.SAdd(ctx, r.setKey(), processID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("register process %s: %w", processID, err)
	}
	r.logger.Info("process registered", slog.String(logging.FieldProcessID, processID))
	return nil
}

// Heartbeat extends the liveness of a registered process. It returns
// ErrNotRegistered when the key already expired; the caller should Register
// again, since its entries may have been released.
func (r *Registry) Heartbeat(ctx context.Context, processID string) error {
	if err := validateProcessID(processID); err != nil {
		return err
	}
	ok, err := r.client.SetXX(ctx, r.processKey(processID), r.now().Unix(), r.ttl).Result()
	if err != nil {
		return fmt.Errorf("heartbeat process %s: %w", processID, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotRegistered, processID)
	}
	return nil
}

// Deregister removes processID from the registry.
func (r *Registry) Deregister(ctx context.Context, processID string) error {
	if err := validateProcessID(processID); err != nil {
		return err
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.processKey(processID))
		pipe.SRem(ctx, r.setKey(), processID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("deregister process %s: %w", processID, err)
	}
	r.logger.Info("process deregistered", slog.String(logging.FieldProcessID, processID))
	return nil
}

// liveness splits the member set into processes with and without a heartbeat key.
func (r *Registry) liveness(ctx context.Context) (alive, dead []string, err error) {
	members, err := r.client.SMembers(ctx, r.setKey()).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("list processes: %w", err)
	}
	if len(members) == 0 {
		return nil, nil, nil
	}

	pipe := r.client.Pipeline()
	checks := make([]*redis.IntCmd, len(members))
	for i, id := range members {
		checks[i] = pipe.Exists(ctx, r.processKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, nil, fmt.Errorf("check process keys: %w", err)
	}

	for i, id := range members {
		if checks[i].Val() > 0 {
			alive = append(alive, id)
		} else {
			dead = append(dead, id)
		}
	}
	sort.Strings(alive)
	sort.Strings(dead)
	return alive, dead, nil
}

// Active returns the registered processes whose heartbeat is still valid.
func (r *Registry) Active(ctx context.Context) ([]string, error) {
	alive, _, err := r.liveness(ctx)
	if err != nil {
		return nil, err
	}
	return alive, nil
}

// Expired returns processes whose heartbeat lapsed but that are still listed
// in the member set. It does not modify the registry; callers Acknowledge the
// ids once their entries are released, so a failed release is retried on the
// next sweep.
func (r *Registry) Expired(ctx context.Context) ([]string, error) {
	_, dead, err := r.liveness(ctx)
	if err != nil {
		return nil, err
	}
	if len(dead) == 0 {
		return nil, nil
	}
	r.logger.Info("expired processes detected", slog.Any("process_ids", dead))
	return dead, nil
}

// dropIfExpired removes ARGV[1] from the member set only while its heartbeat
// key (KEYS[1]) is absent, so a process that re-registered in the meantime
// stays listed.
var dropIfExpired = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return redis.call('SREM', KEYS[2], ARGV[1])
end
return 0
`)

// Acknowledge drops expired processes from the member set. Ids that have a
// heartbeat key again are kept. It returns the ids that were removed.
func (r *Registry) Acknowledge(ctx context.Context, processIDs []string) ([]string, error) {
	var removed []string
	for _, id := range processIDs {
		n, err := dropIfExpired.Run(ctx, r.client, []string{r.processKey(id), r.setKey()}, id).Int64()
		if err != nil {
			return removed, fmt.Errorf("acknowledge expired process %s: %w", id, err)
		}
		if n > 0 {
			removed = append(removed, id)
		}
	}
	return removed, nil
}
