package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"scoutlink/internal/config"
)

// NewPool construye y devuelve un pool de conexiones configurado.
func NewPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	// Configuración razonable para ambientes iniciales.
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 1
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 30 * time.Second
	poolCfg.ConnConfig.ConnectTimeout = 5 * time.Second

	return pgxpool.NewWithConfig(ctx, poolCfg)
}

// Ping verifica conectividad con la base de datos.
func Ping(ctx context.Context, pool *pgxpool.Pool) error {
	return pool.Ping(ctx)
}

// Migrate crea el esquema de mensajeria si no existe todavia.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			key              text PRIMARY KEY,
			participant_low  text NOT NULL,
			participant_high text NOT NULL,
			last_seq         bigint NOT NULL DEFAULT 0,
			created_at       timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			conversation_key text NOT NULL REFERENCES conversations(key),
			seq              bigint NOT NULL,
			sender_id        text NOT NULL,
			receiver_id      text NOT NULL,
			content          text NOT NULL,
			read             boolean NOT NULL DEFAULT false,
			created_at       timestamptz NOT NULL DEFAULT now(),
			PRIMARY KEY (conversation_key, seq)
		)`,
		`CREATE INDEX IF NOT EXISTS messages_unread_idx
			ON messages (conversation_key, receiver_id) WHERE read = false`,
		`CREATE TABLE IF NOT EXISTS participant_views (
			owner_id           text NOT NULL,
			conversation_key   text NOT NULL,
			other_user_id      text NOT NULL,
			other_display_name text NOT NULL DEFAULT '',
			other_avatar_url   text NOT NULL DEFAULT '',
			last_content       text NOT NULL DEFAULT '',
			last_sender_id     text NOT NULL DEFAULT '',
			unread             integer NOT NULL DEFAULT 0,
			applied_seq        bigint NOT NULL DEFAULT 0,
			last_activity      timestamptz NOT NULL DEFAULT now(),
			PRIMARY KEY (owner_id, conversation_key)
		)`,
		`CREATE INDEX IF NOT EXISTS participant_views_inbox_idx
			ON participant_views (owner_id, last_activity DESC, conversation_key DESC)`,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate schema: %w", err)
		}
	}
	return nil
}
