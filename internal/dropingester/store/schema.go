package store

import (
	"embed"

	"github.com/G-Research/dropingester/internal/common/database"
)

//go:embed migrations/*.sql
var migrationFs embed.FS

// PostgresMigrations returns the versioned postgres schema.
func PostgresMigrations() ([]database.Migration, error) {
	return database.ReadMigrations(migrationFs, "migrations")
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS dispatch_metadata (
    campaign_id         TEXT PRIMARY KEY,
    customer_id         INTEGER NOT NULL,
    bot_id              INTEGER NOT NULL,
    msg_text            TEXT,
    msg_type            TEXT,
    priority            INTEGER NOT NULL DEFAULT 0,
    file_path           TEXT,
    file_type           TEXT,
    camp_desc           TEXT,
    scheduled_send_time TEXT,
    is_system_approved  INTEGER NOT NULL DEFAULT 0,
    is_admin_approved   INTEGER NOT NULL DEFAULT 0,
    is_processed        INTEGER NOT NULL DEFAULT 0,
    archived            TEXT
);

CREATE TABLE IF NOT EXISTS ready_message (
    id                  INTEGER PRIMARY KEY AUTOINCREMENT,
    customer_id         INTEGER NOT NULL,
    chat_id             TEXT,
    bot_id              INTEGER NOT NULL,
    phone_number        TEXT NOT NULL,
    message_text        TEXT NOT NULL,
    message_type        TEXT NOT NULL,
    scheduled_send_time TEXT,
    priority            INTEGER NOT NULL,
    campaign_id         TEXT,
    camp_description    TEXT,
    is_system_approved  INTEGER NOT NULL,
    enqueued            TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
);

CREATE INDEX IF NOT EXISTS idx_ready_message_campaign_id ON ready_message (campaign_id);
`
