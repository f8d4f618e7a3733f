package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/pkg/errors"
	"k8s.io/utils/clock"
	_ "modernc.org/sqlite"

	"github.com/G-Research/dropingester/internal/common/appcontext"
	"github.com/G-Research/dropingester/internal/common/util"
	"github.com/G-Research/dropingester/internal/dropingester/model"
)

// Rows per INSERT statement. Keeps each statement well under sqlite's bound parameter limit.
const sqliteInsertChunkSize = 250

var (
	// Tables
	dispatchMetadataTable = goqu.T("dispatch_metadata")
	readyMessageTable     = goqu.T("ready_message")

	// Columns
	col_campaignId       = goqu.C("campaign_id")
	col_customerId       = goqu.C("customer_id")
	col_botId            = goqu.C("bot_id")
	col_msgText          = goqu.C("msg_text")
	col_msgType          = goqu.C("msg_type")
	col_priority         = goqu.C("priority")
	col_filePath         = goqu.C("file_path")
	col_fileType         = goqu.C("file_type")
	col_campDesc         = goqu.C("camp_desc")
	col_scheduledSend    = goqu.C("scheduled_send_time")
	col_isSystemApproved = goqu.C("is_system_approved")
	col_isAdminApproved  = goqu.C("is_admin_approved")
	col_isProcessed      = goqu.C("is_processed")
)

// SqliteStore keeps metadata and messages in a local sqlite database. It holds a single connection, so writers
// are serialized and never see SQLITE_BUSY from each other.
type SqliteStore struct {
	db           *goqu.Database
	sqlDb        *sql.DB
	clock        clock.PassiveClock
	queryTimeout time.Duration
}

func OpenSqliteStore(ctx *appcontext.Context, path string, queryTimeout time.Duration) (*SqliteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.WithMessagef(err, "could not make directory at %s for sqlite db", dir)
		}
	}
	sqlDb, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.WithMessagef(err, "error opening sqlite db from %s", path)
	}
	sqlDb.SetMaxOpenConns(1)

	for _, stmt := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000", sqliteSchema} {
		if _, err := sqlDb.ExecContext(ctx, stmt); err != nil {
			_ = sqlDb.Close()
			return nil, errors.WithMessagef(err, "error setting up sqlite db at %s", path)
		}
	}
	return NewSqliteStore(sqlDb, clock.RealClock{}, queryTimeout), nil
}

// NewSqliteStore wraps an already initialised sqlite database. A positive queryTimeout bounds every call.
func NewSqliteStore(sqlDb *sql.DB, clock clock.PassiveClock, queryTimeout time.Duration) *SqliteStore {
	return &SqliteStore{
		db:           goqu.New("sqlite3", sqlDb),
		sqlDb:        sqlDb,
		clock:        clock,
		queryTimeout: queryTimeout,
	}
}

func (s *SqliteStore) LookupMetadata(ctx *appcontext.Context, id string) (*model.DispatchMetadata, error) {
	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()
	query, args, err := s.db.
		From(dispatchMetadataTable).
		Select(
			col_campaignId,
			col_customerId,
			col_botId,
			goqu.COALESCE(col_msgText, ""),
			goqu.COALESCE(col_msgType, ""),
			col_priority,
			goqu.COALESCE(col_filePath, ""),
			goqu.COALESCE(col_fileType, ""),
			goqu.COALESCE(col_campDesc, ""),
			col_scheduledSend,
			col_isSystemApproved,
			col_isAdminApproved,
			col_isProcessed).
		Where(col_campaignId.Eq(id)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	meta := &model.DispatchMetadata{}
	var scheduled sql.NullString
	err = s.sqlDb.QueryRowContext(ctx, query, args...).Scan(
		&meta.CampaignId,
		&meta.CustomerId,
		&meta.BotId,
		&meta.MsgText,
		&meta.MsgType,
		&meta.Priority,
		&meta.FilePath,
		&meta.FileType,
		&meta.CampDesc,
		&scheduled,
		&meta.IsSystemApproved,
		&meta.IsAdminApproved,
		&meta.IsProcessed,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if meta.ScheduledSend, err = parseTime(scheduled); err != nil {
		return nil, errors.WithMessagef(err, "bad scheduled send time for %s", id)
	}
	return meta, nil
}

func (s *SqliteStore) MarkArchived(ctx *appcontext.Context, id string) error {
	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()
	query, args, err := s.db.
		Update(dispatchMetadataTable).
		Set(goqu.Record{
			"is_processed": true,
			"archived":     formatTime(s.clock.Now()),
		}).
		Where(col_campaignId.Eq(id)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return errors.WithStack(err)
	}
	_, err = s.sqlDb.ExecContext(ctx, query, args...)
	return errors.WithStack(err)
}

func (s *SqliteStore) InsertBatch(ctx *appcontext.Context, records []*model.MessageRecord) error {
	if len(records) == 0 {
		return nil
	}
	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.WithStack(err)
	}
	return tx.Wrap(func() error {
		for _, chunk := range util.Batch(records, sqliteInsertChunkSize) {
			rows := make([]interface{}, len(chunk))
			for i, r := range chunk {
				rows[i] = goqu.Record{
					"customer_id":         r.CustomerId,
					"chat_id":             nullableString(r.ChatId),
					"bot_id":              r.BotId,
					"phone_number":        r.PhoneNumber,
					"message_text":        r.MessageText,
					"message_type":        r.MessageType,
					"scheduled_send_time": nullableTime(r.ScheduledSend),
					"priority":            r.Priority,
					"campaign_id":         nullableString(r.CampaignId),
					"camp_description":    nullableString(r.CampDescription),
					"is_system_approved":  r.IsSystemApproved,
				}
			}
			query, args, err := tx.Insert(readyMessageTable).Rows(rows...).Prepared(true).ToSQL()
			if err != nil {
				return errors.WithStack(err)
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return errors.WithStack(err)
			}
		}
		return nil
	})
}

func (s *SqliteStore) SaveMetadata(ctx *appcontext.Context, meta *model.DispatchMetadata) error {
	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()
	query, args, err := s.db.
		Insert(dispatchMetadataTable).
		Rows(goqu.Record{
			"campaign_id":         meta.CampaignId,
			"customer_id":         meta.CustomerId,
			"bot_id":              meta.BotId,
			"msg_text":            meta.MsgText,
			"msg_type":            meta.MsgType,
			"priority":            meta.Priority,
			"file_path":           meta.FilePath,
			"file_type":           meta.FileType,
			"camp_desc":           meta.CampDesc,
			"scheduled_send_time": nullableTime(meta.ScheduledSend),
			"is_system_approved":  meta.IsSystemApproved,
			"is_admin_approved":   meta.IsAdminApproved,
			"is_processed":        meta.IsProcessed,
		}).
		OnConflict(goqu.DoUpdate("campaign_id", goqu.Record{
			"customer_id":         goqu.I("excluded.customer_id"),
			"bot_id":              goqu.I("excluded.bot_id"),
			"msg_text":            goqu.I("excluded.msg_text"),
			"msg_type":            goqu.I("excluded.msg_type"),
			"priority":            goqu.I("excluded.priority"),
			"file_path":           goqu.I("excluded.file_path"),
			"file_type":           goqu.I("excluded.file_type"),
			"camp_desc":           goqu.I("excluded.camp_desc"),
			"scheduled_send_time": goqu.I("excluded.scheduled_send_time"),
			"is_system_approved":  goqu.I("excluded.is_system_approved"),
			"is_admin_approved":   goqu.I("excluded.is_admin_approved"),
			"is_processed":        goqu.I("excluded.is_processed"),
			"archived":            nil,
		})).
		Prepared(true).
		ToSQL()
	if err != nil {
		return errors.WithStack(err)
	}
	_, err = s.sqlDb.ExecContext(ctx, query, args...)
	return errors.WithStack(err)
}

func (s *SqliteStore) Check() error {
	ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
	defer cancel()
	return s.sqlDb.PingContext(ctx)
}

func (s *SqliteStore) Close() {
	_ = s.sqlDb.Close()
}

func nullableString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &t, nil
}
