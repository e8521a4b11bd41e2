// store/redis.go
package store

import (
	"time"

	"github.com/gomodule/redigo/redis"
)

// RedisStore backs the shared state store with a redis instance, so the
// orchestration process can restart without losing in-flight rooms.
type RedisStore struct {
	pool *redis.Pool
}

func NewRedisStore(address, password string, db int) (*RedisStore, error) {
	pool := &redis.Pool{
		MaxIdle:     10,
		MaxActive:   100,
		IdleTimeout: 240 * time.Second,
		Dial: func() (redis.Conn, error) {
			opts := []redis.DialOption{redis.DialDatabase(db)}
			if password != "" {
				opts = append(opts, redis.DialPassword(password))
			}
			return redis.Dial("tcp", address, opts...)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}

	// Fail fast on a bad address instead of at first game action.
	conn := pool.Get()
	defer conn.Close()
	if _, err := conn.Do("PING"); err != nil {
		pool.Close()
		return nil, err
	}

	return &RedisStore{pool: pool}, nil
}

func (s *RedisStore) Get(key string) ([]byte, error) {
	conn := s.pool.Get()
	defer conn.Close()

	value, err := redis.Bytes(conn.Do("GET", key))
	if err == redis.ErrNil {
		return nil, ErrNotFound
	}
	return value, err
}

func (s *RedisStore) Set(key string, value []byte, ttl time.Duration) error {
	conn := s.pool.Get()
	defer conn.Close()

	if ttl <= 0 {
		_, err := conn.Do("SET", key, value)
		return err
	}
	_, err := conn.Do("SET", key, value, "EX", int64(ttl.Seconds()))
	return err
}

func (s *RedisStore) Delete(key string) error {
	conn := s.pool.Get()
	defer conn.Close()

	_, err := conn.Do("DEL", key)
	return err
}

func (s *RedisStore) Close() error {
	return s.pool.Close()
}
