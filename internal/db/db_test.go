package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithNamespaceURL(t *testing.T) {
	dsn, err := WithNamespace("postgres://u:p@localhost:5432/chat?sslmode=disable", "demo1")
	require.NoError(t, err)
	assert.Contains(t, dsn, "search_path=demo1")
	assert.Contains(t, dsn, "sslmode=disable")
}

func TestWithNamespaceKeyValue(t *testing.T) {
	dsn, err := WithNamespace("host=localhost dbname=chat", "demo1")
	require.NoError(t, err)
	assert.Equal(t, "host=localhost dbname=chat search_path=demo1", dsn)
}

func TestWithNamespaceEmpty(t *testing.T) {
	dsn, err := WithNamespace("host=localhost", "")
	require.NoError(t, err)
	assert.Equal(t, "host=localhost", dsn)
}

func TestWithNamespaceRejectsInjection(t *testing.T) {
	_, err := WithNamespace("host=localhost", "demo; DROP TABLE x")
	require.Error(t, err)
	_, err = WithNamespace("host=localhost", "1abc")
	require.Error(t, err)
}

func TestChannelPrefix(t *testing.T) {
	assert.Equal(t, "", ChannelPrefix(""))
	assert.Equal(t, "demo1_", ChannelPrefix("demo1"))
}

func TestNotifyTriggerIsScopedToTable(t *testing.T) {
	sql := notifyTrigger("chat_messages_notify", "chat_messages", "chat_notify_messages")

	assert.Contains(t, sql, "tgname = 'chat_messages_notify' AND tgrelid = 'chat_messages'::regclass")
	assert.Contains(t, sql, "CREATE TRIGGER chat_messages_notify AFTER INSERT OR UPDATE OR DELETE ON chat_messages")
	assert.Contains(t, sql, "EXECUTE FUNCTION chat_notify_messages()")
}

func TestConnectRetriesWithNamespace(t *testing.T) {
	calls := 0
	open = func(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
		calls++
		assert.Contains(t, dsn, "search_path=demo1")
		return nil, errors.New("the database system is starting up")
	}
	t.Cleanup(func() { open = sqlx.ConnectContext })

	_, err := Connect(context.Background(), Options{
		DSN:        "postgres://u:p@localhost:5432/chat",
		Namespace:  "demo1",
		MaxElapsed: 1500 * time.Millisecond,
	})

	require.Error(t, err)
	assert.Greater(t, calls, 1)
}
