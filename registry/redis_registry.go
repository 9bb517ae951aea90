package registry

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/meridianlabs/ioa/core"
	"github.com/meridianlabs/ioa/messages"
)

// RedisRegistry is the distributed variant of Registry, for deployments
// running the conductor/orchestrator behind multiple replicas.
// Grounded on the teacher's redis_registry.go: namespaced sets of
// addresses per agent type, refreshed on a TTL so a crashed worker's
// address eventually drops out, narrowed to the spec's contract (no
// health status, no capability indexing — this registry only ever
// answers "who handles this type").
type RedisRegistry struct {
	rdb       *redis.Client
	namespace string
	ttl       time.Duration
	logger    core.Logger
	rng       *rand.Rand
}

// RedisRegistryOptions configures a RedisRegistry.
type RedisRegistryOptions struct {
	Host      string
	Port      string
	Namespace string
	TTL       time.Duration
	Logger    core.Logger
}

// NewRedisRegistry connects to host:port with production-tuned pool
// settings, matching the teacher's connection defaults.
func NewRedisRegistry(opts RedisRegistryOptions) (*RedisRegistry, error) {
	if opts.Namespace == "" {
		opts.Namespace = "ioa"
	}
	if opts.TTL == 0 {
		opts.TTL = 30 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if cal, ok := logger.(core.ComponentAwareLogger); ok {
		logger = cal.WithComponent("registry")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", opts.Host, opts.Port),
		PoolSize:     10,
		MinIdleConns: 5,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, core.NewFrameworkError("registry.NewRedisRegistry", "registry", fmt.Errorf("%w: %v", core.ErrLedger, err))
	}

	return &RedisRegistry{
		rdb:       rdb,
		namespace: opts.Namespace,
		ttl:       opts.TTL,
		logger:    logger,
		rng:       rand.New(rand.NewSource(int64(uuid.New().ID()))),
	}, nil
}

func (r *RedisRegistry) typeKey(agentType messages.AgentType) string {
	return fmt.Sprintf("%s:registry:type:%s", r.namespace, agentType)
}

func (r *RedisRegistry) addrKey(address string) string {
	return fmt.Sprintf("%s:registry:addr:%s", r.namespace, address)
}

// Register adds address to the set for agentType, refreshing the TTL
// on both the set and the reverse-lookup key, via one atomic pipeline.
func (r *RedisRegistry) Register(ctx context.Context, agentType messages.AgentType, address string) error {
	pipe := r.rdb.TxPipeline()
	pipe.SAdd(ctx, r.typeKey(agentType), address)
	pipe.Expire(ctx, r.typeKey(agentType), r.ttl*2)
	pipe.Set(ctx, r.addrKey(address), string(agentType), r.ttl*2)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return core.NewFrameworkError("registry.Register", "registry", fmt.Errorf("%w: %v", core.ErrLedger, err))
	}
	r.logger.Info("agent registered", map[string]interface{}{"type": agentType, "address": address})
	return nil
}

// GetAgent picks one address for agentType uniformly at random.
func (r *RedisRegistry) GetAgent(ctx context.Context, agentType messages.AgentType) (string, bool, error) {
	members, err := r.rdb.SMembers(ctx, r.typeKey(agentType)).Result()
	if err != nil {
		return "", false, core.NewFrameworkError("registry.GetAgent", "registry", fmt.Errorf("%w: %v", core.ErrLedger, err))
	}
	if len(members) == 0 {
		return "", false, nil
	}
	return members[r.rng.Intn(len(members))], true, nil
}

// GetAgentType reverse-looks-up the type registered for address.
func (r *RedisRegistry) GetAgentType(ctx context.Context, address string) (messages.AgentType, bool, error) {
	v, err := r.rdb.Get(ctx, r.addrKey(address)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, core.NewFrameworkError("registry.GetAgentType", "registry", fmt.Errorf("%w: %v", core.ErrLedger, err))
	}
	return messages.AgentType(v), true, nil
}

// Heartbeat refreshes this registration's TTLs; callers run it on a
// jittered ticker at ttl/2, matching the teacher's self-healing pattern.
func (r *RedisRegistry) Heartbeat(ctx context.Context, agentType messages.AgentType, address string) error {
	return r.Register(ctx, agentType, address)
}

// Close releases the underlying connection pool.
func (r *RedisRegistry) Close() error { return r.rdb.Close() }
