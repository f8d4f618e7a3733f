package database

import "time"

type PostgresConfig struct {
	// Connection parameters in libpq key/value form, e.g. host, port, user, password, dbname, sslmode
	Connection map[string]string
	// Maximum number of connections held by the pool. Zero leaves the pgx default.
	MaxOpenConns int32 `validate:"gte=0"`
	// Upper bound on any single store call
	QueryTimeout time.Duration `validate:"gte=0"`
	// Number of attempts made to open the pool on startup
	ConnectAttempts uint `validate:"gte=0"`
}
