package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/safetrip-backend/internal/db"
)

// Интеграционные тесты запускаются только при заданных TEST_DATABASE_URL / TEST_MONGODB_URI.

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL не задан")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := db.NewPostgres(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	_, err = db.RunMigrations(ctx, conn, "../../migrations")
	require.NoError(t, err)

	runStoreSuite(t, func(t *testing.T) AlertStore {
		_, err := conn.ExecContext(ctx, `TRUNCATE alerts, reports`)
		require.NoError(t, err)
		return NewPostgresStore(conn)
	})
}

func TestMongoStore(t *testing.T) {
	uri := os.Getenv("TEST_MONGODB_URI")
	if uri == "" {
		t.Skip("TEST_MONGODB_URI не задан")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := db.NewMongo(ctx, uri)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	runStoreSuite(t, func(t *testing.T) AlertStore {
		name := "safetrip_test_" + uuid.NewString()[:8]
		database := client.Database(name)
		require.NoError(t, db.EnsureMongoIndexes(ctx, database))
		t.Cleanup(func() { _ = database.Drop(context.Background()) })
		return NewMongoStore(client, name)
	})
}
