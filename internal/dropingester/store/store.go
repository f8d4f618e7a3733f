package store

import (
	"time"

	"github.com/pkg/errors"

	"github.com/G-Research/dropingester/internal/common/appcontext"
	"github.com/G-Research/dropingester/internal/common/database"
	commonmetrics "github.com/G-Research/dropingester/internal/common/ingest/metrics"
	"github.com/G-Research/dropingester/internal/dropingester/configuration"
	"github.com/G-Research/dropingester/internal/dropingester/metrics"
	"github.com/G-Research/dropingester/internal/dropingester/model"
)

// MetadataStore holds the dispatch metadata of drop files, keyed by file id.
type MetadataStore interface {
	// LookupMetadata returns nil and no error when there is no metadata for id.
	LookupMetadata(ctx *appcontext.Context, id string) (*model.DispatchMetadata, error)
	// MarkArchived records that the file with the given id has been processed and archived.
	MarkArchived(ctx *appcontext.Context, id string) error
}

// MessageStore persists message records.
type MessageStore interface {
	// InsertBatch stores every record or none of them.
	InsertBatch(ctx *appcontext.Context, records []*model.MessageRecord) error
}

// Store is a database backing both metadata and messages.
type Store interface {
	MetadataStore
	MessageStore
	// SaveMetadata inserts or replaces the metadata row for meta.CampaignId.
	SaveMetadata(ctx *appcontext.Context, meta *model.DispatchMetadata) error
	// Check reports whether the database is reachable.
	Check() error
	Close()
}

// Open connects to the store selected by config. Postgres is expected to have been migrated already; the sqlite
// schema is created on open.
func Open(ctx *appcontext.Context, config configuration.DatabaseConfig) (Store, error) {
	switch config.Type {
	case configuration.DatabaseTypePostgres:
		ctx.Log.Infof("Opening connection pool to postgres")
		db, err := database.OpenPgxPool(ctx, config.Postgres)
		if err != nil {
			return nil, errors.WithMessage(err, "error opening connection to postgres")
		}
		return NewPostgresStore(db, config.Postgres.QueryTimeout), nil
	case configuration.DatabaseTypeSqlite:
		ctx.Log.Infof("Opening sqlite database at %s", config.SqlitePath)
		return OpenSqliteStore(ctx, config.SqlitePath, config.SqliteQueryTimeout)
	default:
		return nil, errors.Errorf("unsupported database type %q", config.Type)
	}
}

// BulkPersister writes the records of one file to a MessageStore in a single atomic operation.
type BulkPersister struct {
	store   MessageStore
	metrics *metrics.Metrics
}

func NewBulkPersister(store MessageStore, metrics *metrics.Metrics) *BulkPersister {
	return &BulkPersister{
		store:   store,
		metrics: metrics,
	}
}

// Persist stores records atomically. An empty batch is a no-op and never touches the store.
func (p *BulkPersister) Persist(ctx *appcontext.Context, records []*model.MessageRecord) error {
	if len(records) == 0 {
		return nil
	}
	ctx.Log.Infof("Inserting %d messages into the database", len(records))
	start := time.Now()
	if err := p.store.InsertBatch(ctx, records); err != nil {
		p.metrics.RecordDBError(commonmetrics.DBOperationInsert)
		return errors.WithMessagef(err, "error inserting %d messages", len(records))
	}
	taken := time.Since(start)
	p.metrics.RecordDBOperation(commonmetrics.DBOperationInsert, taken)
	ctx.Log.Infof("Inserted %d messages in %dms", len(records), taken.Milliseconds())
	return nil
}

func withTimeout(ctx *appcontext.Context, timeout time.Duration) (*appcontext.Context, func()) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return appcontext.WithTimeout(ctx, timeout)
}
