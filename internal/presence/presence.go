package presence

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const adminSetKey = "presence:admins"

// Open connects to Redis with short timeouts; a failed ping is logged
// rather than fatal so the server can start without presence.
func Open(addr string) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Printf("Redis ping failed: %v", err)
	}
	return rdb
}

// Registry tracks which admins are online. Membership is a sorted set
// scored by expiry time, so a dead connection ages out after TTL without
// an explicit MarkOffline.
type Registry struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRegistry(rdb *redis.Client, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &Registry{rdb: rdb, ttl: ttl}
}

// MarkOnline registers or refreshes an admin's presence. Called on
// websocket connect and on every heartbeat.
func (r *Registry) MarkOnline(ctx context.Context, adminID int) error {
	score := float64(time.Now().Add(r.ttl).Unix())
	return r.rdb.ZAdd(ctx, adminSetKey, redis.Z{Score: score, Member: strconv.Itoa(adminID)}).Err()
}

func (r *Registry) MarkOffline(ctx context.Context, adminID int) error {
	return r.rdb.ZRem(ctx, adminSetKey, strconv.Itoa(adminID)).Err()
}

func (r *Registry) OnlineAdmins(ctx context.Context) ([]int, error) {
	now := strconv.FormatInt(time.Now().Unix(), 10)

	if err := r.rdb.ZRemRangeByScore(ctx, adminSetKey, "-inf", "("+now).Err(); err != nil {
		log.Printf("Error pruning expired presence entries: %v", err)
	}

	vals, err := r.rdb.ZRangeByScore(ctx, adminSetKey, &redis.ZRangeBy{Min: now, Max: "+inf"}).Result()
	if err != nil {
		return nil, err
	}

	ids := make([]int, 0, len(vals))
	for _, v := range vals {
		id, err := strconv.Atoi(v)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
