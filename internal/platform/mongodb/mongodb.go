// Package mongodb connects to MongoDB with bounded retries and a ping check.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Config describes a MongoDB deployment. URI wins over Hosts.
type Config struct {
	URI         string
	Hosts       []string
	Database    string
	Username    string
	Password    string
	AuthSource  string
	MaxPoolSize uint64
	MaxRetry    int
	RetryWait   time.Duration
	AppName     string
}

func (c *Config) setDefaults() error {
	if strings.TrimSpace(c.URI) == "" && len(c.Hosts) == 0 {
		return errors.New("mongo uri or hosts is required")
	}
	if c.Database == "" {
		return errors.New("mongo database is required")
	}
	if c.MaxPoolSize == 0 {
		c.MaxPoolSize = 50
	}
	if c.MaxRetry <= 0 {
		c.MaxRetry = 3
	}
	if c.RetryWait <= 0 {
		c.RetryWait = 500 * time.Millisecond
	}
	if c.Username != "" && c.AuthSource == "" {
		c.AuthSource = "admin"
	}
	return nil
}

func (c *Config) clientOptions() *options.ClientOptions {
	var opts *options.ClientOptions
	if c.URI != "" {
		opts = options.Client().ApplyURI(c.URI)
	} else {
		opts = options.Client().SetHosts(c.Hosts)
	}
	opts.SetMaxPoolSize(c.MaxPoolSize)
	if c.AppName != "" {
		opts.SetAppName(c.AppName)
	}
	if c.Username != "" {
		opts.SetAuth(options.Credential{
			Username:   c.Username,
			Password:   c.Password,
			AuthSource: c.AuthSource,
		})
	}
	return opts
}

// Connect dials MongoDB and returns the configured database handle.
func Connect(ctx context.Context, cfg Config) (*mongo.Database, error) {
	if err := cfg.setDefaults(); err != nil {
		return nil, err
	}
	opts := cfg.clientOptions()

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxRetry; attempt++ {
		cli, err := dial(ctx, opts)
		if err == nil {
			return cli.Database(cfg.Database), nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
		case <-time.After(cfg.RetryWait):
		}
	}
	return nil, fmt.Errorf("mongo connect (database=%s, attempts=%d): %w", cfg.Database, cfg.MaxRetry, lastErr)
}

// Disconnect closes the client behind db.
func Disconnect(ctx context.Context, db *mongo.Database) error {
	if db == nil {
		return nil
	}
	return db.Client().Disconnect(ctx)
}

func dial(ctx context.Context, opts *options.ClientOptions) (*mongo.Client, error) {
	cli, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := cli.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, err
	}
	return cli, nil
}
