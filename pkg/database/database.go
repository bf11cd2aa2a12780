package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

type Clients struct {
	DB    *sqlx.DB
	Redis *redis.Client
}

func NewClients(dbURL, redisAddr string) (*Clients, error) {
	// Connect to PostgreSQL
	db, err := sqlx.Connect("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: "",
		DB:       0,
	})

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Clients{
		DB:    db,
		Redis: redisClient,
	}, nil
}

// CreateTables ensures every table the pipeline touches exists.
func (c *Clients) CreateTables() error {
	schema := `
CREATE TABLE IF NOT EXISTS campaigns (
	id UUID PRIMARY KEY,
	user_id TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'draft',
	lead_count INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS leads (
	id BIGSERIAL PRIMARY KEY,
	user_id TEXT NOT NULL,
	campaign_id UUID REFERENCES campaigns(id),
	name TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL DEFAULT '',
	company TEXT NOT NULL DEFAULT '',
	location TEXT NOT NULL DEFAULT '',
	industry TEXT NOT NULL DEFAULT '',
	email TEXT,
	linkedin_url TEXT,
	profile_data JSONB NOT NULL DEFAULT '{}',
	status TEXT NOT NULL DEFAULT 'new',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS leads_campaign_linkedin_idx ON leads (campaign_id, linkedin_url);
CREATE INDEX IF NOT EXISTS leads_campaign_email_idx ON leads (campaign_id, email);

CREATE TABLE IF NOT EXISTS webset_searches (
	id BIGSERIAL PRIMARY KEY,
	webset_id TEXT NOT NULL UNIQUE,
	campaign_id UUID REFERENCES campaigns(id),
	user_id TEXT NOT NULL,
	query TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'processing',
	items_received INTEGER NOT NULL DEFAULT 0,
	webhook_secret TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS subscriptions (
	id UUID PRIMARY KEY,
	user_id TEXT NOT NULL UNIQUE,
	plan TEXT NOT NULL DEFAULT 'free',
	credits_limit INTEGER NOT NULL DEFAULT 10,
	credits_used INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS credit_usage (
	id UUID PRIMARY KEY,
	subscription_id UUID,
	user_id TEXT NOT NULL,
	amount INTEGER NOT NULL,
	lead_id BIGINT,
	description TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS do_not_contact (
	id BIGSERIAL PRIMARY KEY,
	user_id TEXT NOT NULL,
	email TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (user_id, email)
);`

	if _, err := c.DB.Exec(schema); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	slog.Info("✅ Tables are ready!")
	return nil
}
