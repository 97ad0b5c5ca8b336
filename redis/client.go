package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/go-redis/redis/v8"
	"github.com/kelseyhightower/envconfig"
)

type DB int
type ReleaseLock func() error

var ErrNotFound = errors.New("redis: key not found")

type Client struct {
	client         redis.UniversalClient
	lockExpiration time.Duration
}

var ctx = context.Background()

type Config struct {
	LockExpirationSeconds   int     `envconfig:"BOTCHECK_REDIS_LOCK_EXPIRATION" default:"3"`
	Host                    string  `envconfig:"BOTCHECK_REDIS_HOST" required:"true"`
	Port                    string  `envconfig:"BOTCHECK_REDIS_PORT" default:"6379"`
	HASentinelPort          string  `envconfig:"BOTCHECK_REDIS_HA_SENTINEL_PORT" default:"26379"`
	HASentinelMasterName    string  `envconfig:"BOTCHECK_REDIS_HA_MASTER_NAME" default:"mymaster"`
	Password                string  `envconfig:"BOTCHECK_REDIS_AUTH_PASSWORD" default:""`
	AuthRequired            bool    `envconfig:"BOTCHECK_REDIS_AUTH_REQUIRED" default:"false"`
	HAMode                  bool    `envconfig:"BOTCHECK_REDIS_HA_MODE" default:"false"`
	HASentinelSocketTimeout float32 `envconfig:"BOTCHECK_REDIS_SOCKET_TIMEOUT" default:"0.5"`
}

func NewClient(db DB) (Client, error) {
	cfg, err := readEnvironment()
	if err != nil {
		return Client{}, err
	}
	var client redis.UniversalClient
	if cfg.HAMode {
		client = CreateFailoverClient(cfg, db)
	} else {
		client = CreateClient(cfg, db)
	}
	return NewClientFrom(client, time.Duration(cfg.LockExpirationSeconds)*time.Second), nil
}

// NewClientFrom wraps an already configured go-redis client.
func NewClientFrom(client redis.UniversalClient, lockExpiration time.Duration) Client {
	return Client{
		client:         client,
		lockExpiration: lockExpiration,
	}
}

func CreateFailoverClient(cfg *Config, db DB) *redis.ClusterClient {
	addr := fmt.Sprintf("%s:%s", cfg.Host, cfg.HASentinelPort)
	timeout := time.Duration(float64(cfg.HASentinelSocketTimeout) * float64(time.Second))
	options := redis.FailoverOptions{
		SentinelAddrs: []string{addr},
		ReadTimeout:   timeout,
		WriteTimeout:  timeout,
		MaxRetries:    6,
		DB:            int(db),
		MasterName:    cfg.HASentinelMasterName,
	}
	if cfg.AuthRequired {
		options.Password = cfg.Password
	}
	return redis.NewFailoverClusterClient(&options)
}

func CreateClient(cfg *Config, db DB) *redis.Client {
	addr := fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)
	options := redis.Options{
		Addr:       addr,
		MaxRetries: 6,
		DB:         int(db),
	}
	if cfg.AuthRequired {
		options.Password = cfg.Password
	}
	return redis.NewClient(&options)
}

// GetDoc decodes the JSON document stored at redisKey into doc.
func (client *Client) GetDoc(redisKey string, doc interface{}) error {
	b, err := client.GetBytes(ctx, redisKey)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, doc)
}

// UpdateDoc loads, mutates and stores a document while holding its lock.
func (client *Client) UpdateDoc(redisKey string, doc interface{}, update func()) (err error) {
	releaseLock, err := client.Lock(redisKey)
	if err != nil {
		return err
	}
	defer func() {
		if releaseErr := releaseLock(); err == nil {
			err = releaseErr
		}
	}()
	if err = client.GetDoc(redisKey, doc); err != nil {
		return err
	}
	update()
	return client.SaveDoc(redisKey, doc)
}

func (client *Client) Lock(redisKey string) (ReleaseLock, error) {
	lockCl := redislock.New(client.client)
	str := redislock.LimitRetry(redislock.LinearBackoff(time.Second), 20)
	lockKey := fmt.Sprintf("lock:%s", redisKey)
	lock, err := lockCl.Obtain(ctx, lockKey, client.lockExpiration, &redislock.Options{RetryStrategy: str})
	if err != nil {
		return nil, err
	}
	return func() error {
		return lock.Release(ctx)
	}, nil
}

func (client *Client) SaveDoc(redisKey string, document interface{}) error {
	b, err := json.Marshal(document)
	if err != nil {
		return err
	}
	return client.SetBytes(ctx, redisKey, b, 0)
}

func (client *Client) GetBytes(c context.Context, redisKey string) ([]byte, error) {
	b, err := client.client.Get(c, redisKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return b, err
}

// SetBytes stores value; a zero ttl keeps the key forever.
func (client *Client) SetBytes(c context.Context, redisKey string, value []byte, ttl time.Duration) error {
	return client.client.Set(c, redisKey, value, ttl).Err()
}

func (client *Client) Close() error {
	return client.client.Close()
}

func readEnvironment() (*Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}
