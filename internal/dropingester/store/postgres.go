package store

import (
	"context"
	"time"

	"github.com/avast/retry-go"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/pkg/errors"

	"github.com/G-Research/dropingester/internal/common/appcontext"
	"github.com/G-Research/dropingester/internal/common/database"
	"github.com/G-Research/dropingester/internal/dropingester/model"
)

const (
	markArchivedAttempts = 3
	healthCheckTimeout   = 5 * time.Second
)

var readyMessageColumns = []string{
	"customer_id",
	"chat_id",
	"bot_id",
	"phone_number",
	"message_text",
	"message_type",
	"scheduled_send_time",
	"priority",
	"campaign_id",
	"camp_description",
	"is_system_approved",
}

var readyMessageColumnDefs = []string{
	"customer_id integer",
	"chat_id text",
	"bot_id integer",
	"phone_number text",
	"message_text text",
	"message_type text",
	"scheduled_send_time timestamptz",
	"priority smallint",
	"campaign_id text",
	"camp_description text",
	"is_system_approved boolean",
}

// PostgresStore keeps metadata and messages in postgres.
type PostgresStore struct {
	db           *pgxpool.Pool
	queryTimeout time.Duration
}

func NewPostgresStore(db *pgxpool.Pool, queryTimeout time.Duration) *PostgresStore {
	return &PostgresStore{db: db, queryTimeout: queryTimeout}
}

func (s *PostgresStore) LookupMetadata(ctx *appcontext.Context, id string) (*model.DispatchMetadata, error) {
	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()

	meta := &model.DispatchMetadata{}
	err := s.db.QueryRow(ctx, `
		SELECT campaign_id, customer_id, bot_id, COALESCE(msg_text, ''), COALESCE(msg_type, ''), priority,
		       COALESCE(file_path, ''), COALESCE(file_type, ''), COALESCE(camp_desc, ''), scheduled_send_time,
		       is_system_approved, is_admin_approved, is_processed
		FROM dispatch_metadata
		WHERE campaign_id = $1`, id).Scan(
		&meta.CampaignId,
		&meta.CustomerId,
		&meta.BotId,
		&meta.MsgText,
		&meta.MsgType,
		&meta.Priority,
		&meta.FilePath,
		&meta.FileType,
		&meta.CampDesc,
		&meta.ScheduledSend,
		&meta.IsSystemApproved,
		&meta.IsAdminApproved,
		&meta.IsProcessed,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return meta, nil
}

// MarkArchived retries transient failures a few times, since a missed mark leaves the metadata looking unprocessed.
func (s *PostgresStore) MarkArchived(ctx *appcontext.Context, id string) error {
	return retry.Do(
		func() error {
			ctx, cancel := withTimeout(ctx, s.queryTimeout)
			defer cancel()
			_, err := s.db.Exec(ctx,
				`UPDATE dispatch_metadata SET is_processed = true, archived = now() WHERE campaign_id = $1`, id)
			return errors.WithStack(err)
		},
		retry.Context(ctx),
		retry.Attempts(markArchivedAttempts),
		retry.Delay(100*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.RetryIf(database.IsTransient),
	)
}

func (s *PostgresStore) InsertBatch(ctx *appcontext.Context, records []*model.MessageRecord) error {
	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()

	return database.BatchInsert(ctx, s.db, database.StagedInsert{
		Table:      "ready_message",
		ColumnDefs: readyMessageColumnDefs,
		Columns:    readyMessageColumns,
		Rows:       len(records),
		Row: func(i int) ([]interface{}, error) {
			r := records[i]
			return []interface{}{
				r.CustomerId,
				r.ChatId,
				r.BotId,
				r.PhoneNumber,
				r.MessageText,
				r.MessageType,
				r.ScheduledSend,
				r.Priority,
				r.CampaignId,
				r.CampDescription,
				r.IsSystemApproved,
			}, nil
		},
	})
}

func (s *PostgresStore) SaveMetadata(ctx *appcontext.Context, meta *model.DispatchMetadata) error {
	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()

	_, err := s.db.Exec(ctx, `
		INSERT INTO dispatch_metadata (campaign_id, customer_id, bot_id, msg_text, msg_type, priority, file_path,
		                               file_type, camp_desc, scheduled_send_time, is_system_approved,
		                               is_admin_approved, is_processed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (campaign_id) DO UPDATE SET
			customer_id = EXCLUDED.customer_id,
			bot_id = EXCLUDED.bot_id,
			msg_text = EXCLUDED.msg_text,
			msg_type = EXCLUDED.msg_type,
			priority = EXCLUDED.priority,
			file_path = EXCLUDED.file_path,
			file_type = EXCLUDED.file_type,
			camp_desc = EXCLUDED.camp_desc,
			scheduled_send_time = EXCLUDED.scheduled_send_time,
			is_system_approved = EXCLUDED.is_system_approved,
			is_admin_approved = EXCLUDED.is_admin_approved,
			is_processed = EXCLUDED.is_processed,
			archived = NULL`,
		meta.CampaignId, meta.CustomerId, meta.BotId, meta.MsgText, meta.MsgType, meta.Priority, meta.FilePath,
		meta.FileType, meta.CampDesc, meta.ScheduledSend, meta.IsSystemApproved, meta.IsAdminApproved,
		meta.IsProcessed)
	return errors.WithStack(err)
}

func (s *PostgresStore) Check() error {
	ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
	defer cancel()
	return s.db.Ping(ctx)
}

func (s *PostgresStore) Close() {
	s.db.Close()
}
