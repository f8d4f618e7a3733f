package database

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/oklog/ulid"
	"github.com/pkg/errors"
)

// TestPostgresEnvVar must be set for tests that need a real postgres server. Its value is an optional libpq
// connection string; when empty, localhost defaults are used.
const TestPostgresEnvVar = "DROPINGESTER_TEST_POSTGRES"

const defaultTestConnectionString = "host=localhost port=5432 user=postgres password=psw sslmode=disable"

var (
	entropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	entropyMu sync.Mutex
)

// TestPostgresAvailable reports whether tests should run against postgres, and the connection string to use.
func TestPostgresAvailable() (string, bool) {
	value, ok := os.LookupEnv(TestPostgresEnvVar)
	if !ok {
		return "", false
	}
	if value == "" || value == "1" || value == "true" {
		value = defaultTestConnectionString
	}
	return value, true
}

// WithTestDb creates a dedicated database for a test, applies migrations and runs action against it. The
// database is dropped afterwards.
func WithTestDb(connectionString string, migrations []Migration, action func(db *pgxpool.Pool) error) error {
	ctx := context.Background()

	dbName := "test_" + newULID()
	db, err := pgx.Connect(ctx, connectionString)
	if err != nil {
		return errors.WithStack(err)
	}
	defer db.Close(ctx)

	_, err = db.Exec(ctx, "CREATE DATABASE "+dbName)
	if err != nil {
		return errors.WithStack(err)
	}

	// Connect again: this time to the database we just created.  This is the database we use for tests
	testDbPool, err := pgxpool.Connect(ctx, connectionString+" dbname="+dbName)
	if err != nil {
		return errors.WithStack(err)
	}

	defer func() {
		testDbPool.Close()
		// disconnect all db user before cleanup
		_, err = db.Exec(ctx,
			`SELECT pg_terminate_backend(pg_stat_activity.pid)
			 FROM pg_stat_activity WHERE pg_stat_activity.datname = '`+dbName+`';`)
		if err != nil {
			fmt.Println("Failed to disconnect users")
		}

		_, err = db.Exec(ctx, "DROP DATABASE "+dbName)
		if err != nil {
			fmt.Println("Failed to drop database")
		}
	}()

	err = UpdateDatabase(ctx, testDbPool, migrations)
	if err != nil {
		return errors.WithStack(err)
	}

	return action(testDbPool)
}

func newULID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return strings.ToLower(ulid.MustNew(ulid.Now(), entropy).String())
}
