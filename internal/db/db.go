package db

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// Options controls how the database is reached.
type Options struct {
	DSN        string
	Namespace  string
	MaxElapsed time.Duration
}

// Connect opens the database, retrying with exponential backoff, and applies
// migrations inside the namespace schema.
func Connect(ctx context.Context, opts Options) (*sqlx.DB, error) {
	dsn, err := WithNamespace(opts.DSN, opts.Namespace)
	if err != nil {
		return nil, err
	}

	policy := backoff.NewExponentialBackOff()
	if opts.MaxElapsed > 0 {
		policy.MaxElapsedTime = opts.MaxElapsed
	}

	var database *sqlx.DB
	err = backoff.RetryNotify(func() error {
		conn, err := open(ctx, "postgres", dsn)
		if err != nil {
			return err
		}
		if err := ensureSchema(ctx, conn, opts.Namespace); err != nil {
			conn.Close()
			return fmt.Errorf("ensure schema: %w", err)
		}
		database = conn
		return nil
	}, backoff.WithContext(policy, ctx), func(err error, wait time.Duration) {
		log.Warn().Err(err).Dur("retry_in", wait).Msg("database not reachable yet")
	})
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(ctx, database, ChannelPrefix(opts.Namespace)); err != nil {
		database.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return database, nil
}

// WithNamespace pins the search_path of every connection to the namespace schema.
func WithNamespace(dsn, namespace string) (string, error) {
	if namespace == "" {
		return dsn, nil
	}
	if !validIdentifier(namespace) {
		return "", fmt.Errorf("invalid namespace %q", namespace)
	}
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("parse dsn: %w", err)
		}
		q := u.Query()
		q.Set("search_path", namespace)
		u.RawQuery = q.Encode()
		return u.String(), nil
	}
	return dsn + " search_path=" + namespace, nil
}

// ChannelPrefix is prepended to notification channel names.
func ChannelPrefix(namespace string) string {
	if namespace == "" {
		return ""
	}
	return namespace + "_"
}

// open is swapped in tests.
var open = sqlx.ConnectContext

// ensureSchema creates the namespace schema. The connection's search_path
// already names it, so a missing schema does not stop the connect.
func ensureSchema(ctx context.Context, conn *sqlx.DB, namespace string) error {
	if namespace == "" {
		return nil
	}
	_, err := conn.ExecContext(ctx, `CREATE SCHEMA IF NOT EXISTS `+namespace)
	return err
}

func validIdentifier(s string) bool {
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r == '_':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return s != ""
}

func runMigrations(ctx context.Context, db *sqlx.DB, prefix string) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS chat_groups (
            id TEXT PRIMARY KEY,
            name_en TEXT NOT NULL,
            name_ar TEXT NOT NULL DEFAULT '',
            name_ur TEXT NOT NULL DEFAULT '',
            description_en TEXT NOT NULL DEFAULT '',
            description_ar TEXT NOT NULL DEFAULT '',
            description_ur TEXT NOT NULL DEFAULT '',
            icon TEXT NOT NULL DEFAULT '',
            color TEXT NOT NULL DEFAULT '',
            member_count INT NOT NULL DEFAULT 0,
            created_by TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            is_default BOOLEAN NOT NULL DEFAULT FALSE
        );`,
		`CREATE TABLE IF NOT EXISTS chat_members (
            id TEXT PRIMARY KEY,
            display_name TEXT NOT NULL,
            photo_url TEXT NOT NULL DEFAULT '',
            role TEXT NOT NULL DEFAULT 'member',
            is_active BOOLEAN NOT NULL DEFAULT TRUE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS chat_messages (
            id TEXT PRIMARY KEY,
            group_id TEXT NOT NULL,
            user_id TEXT NOT NULL,
            display_name TEXT NOT NULL,
            body TEXT NOT NULL,
            text_direction TEXT NOT NULL DEFAULT 'ltr',
            kind TEXT NOT NULL DEFAULT 'text',
            is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
            deleted_by TEXT NOT NULL DEFAULT '',
            reply_to JSONB,
            mentions JSONB NOT NULL DEFAULT '[]',
            reactions JSONB NOT NULL DEFAULT '{}',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE INDEX IF NOT EXISTS chat_messages_group_created_idx ON chat_messages (group_id, created_at);`,
		notifyFunction("chat_notify_messages", prefix+"chat_messages", "COALESCE(NEW.group_id, OLD.group_id)"),
		notifyFunction("chat_notify_groups", prefix+"chat_groups", "''"),
		notifyFunction("chat_notify_members", prefix+"chat_members", "''"),
		notifyTrigger("chat_messages_notify", "chat_messages", "chat_notify_messages"),
		notifyTrigger("chat_groups_notify", "chat_groups", "chat_notify_groups"),
		notifyTrigger("chat_members_notify", "chat_members", "chat_notify_members"),
	}

	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return err
		}
	}
	log.Info().Int("statements", len(migrations)).Msg("database migrations applied")
	return nil
}

func notifyFunction(name, channel, payload string) string {
	return fmt.Sprintf(`CREATE OR REPLACE FUNCTION %s() RETURNS trigger AS $$
        BEGIN
            PERFORM pg_notify('%s', %s);
            RETURN NULL;
        END;
        $$ LANGUAGE plpgsql;`, name, channel, payload)
}

func notifyTrigger(name, table, function string) string {
	return fmt.Sprintf(`DO $$
        BEGIN
            IF NOT EXISTS (
                SELECT 1 FROM pg_trigger
                WHERE tgname = '%s' AND tgrelid = '%s'::regclass
            ) THEN
                CREATE TRIGGER %s AFTER INSERT OR UPDATE OR DELETE ON %s
                    FOR EACH ROW EXECUTE FUNCTION %s();
            END IF;
        END
        $$;`, name, table, name, table, function)
}
