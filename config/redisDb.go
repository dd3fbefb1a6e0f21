package config

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

var (
	rdb    *redis.Client
	locker *redislock.Client
)
var redisCtx = context.Background()

func GetRedisDB() *redis.Client {
	return rdb
}

func GetRedisLock() *redislock.Client {
	return locker
}

func GetRedisContext() context.Context {
	return redisCtx
}

// ConnectRedisWithRetry connects to Redis and sets the shared client + lock client.
// Redis is a best-effort optimization here (cached stock map, import-run lock);
// all callers must tolerate rdb == nil.
func ConnectRedisWithRetry() {
	address := os.Getenv("REDIS_ADDRESS")
	if address == "" {
		log.Printf("REDIS_ADDRESS empty; redis disabled")
		return
	}
	client := redis.NewClient(&redis.Options{Addr: address})
	var attempt int
	for {
		attempt++
		if err := client.Ping(redisCtx).Err(); err == nil {
			rdb = client
			locker = redislock.New(client)
			log.Printf("connected to redis (attempt=%d)", attempt)
			return
		} else {
			if attempt >= 5 {
				log.Printf("redis unavailable after %d attempts: %v; continuing without redis", attempt, err)
				return
			}
			time.Sleep(time.Second * time.Duration(attempt))
		}
	}
}

func GetRedisObject(key string, dest interface{}) (bool, error) {
	if rdb == nil {
		return false, nil
	}
	val, err := rdb.Get(redisCtx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	err = json.Unmarshal([]byte(val), &dest)
	if err != nil {
		return false, err
	}
	return true, nil
}

func SetRedisObject(key string, obj interface{}, exp time.Duration) error {
	if rdb == nil {
		return nil
	}
	objInByte, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	if err = rdb.Set(redisCtx, key, objInByte, exp).Err(); err != nil {
		return err
	}
	return nil
}

func RemoveRedisKey(key string) error {
	if rdb == nil {
		return nil
	}
	return rdb.Del(redisCtx, key).Err()
}

// ObtainRunLock takes a best-effort lock for one import run of the given feed source.
// Returns nil lock when redis is unavailable; callers proceed without it because
// row-hash idempotency in the DB is the authoritative guard.
func ObtainRunLock(ctx context.Context, source string, ttl time.Duration) (*redislock.Lock, error) {
	if locker == nil {
		return nil, nil
	}
	lock, err := locker.Obtain(ctx, "import-run:"+source, ttl, nil)
	if err == redislock.ErrNotObtained {
		return nil, err
	}
	if err != nil {
		// treat redis failures as "no lock", not as a run failure
		return nil, nil
	}
	return lock, nil
}
