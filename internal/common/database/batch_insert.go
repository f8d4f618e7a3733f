package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/pkg/errors"
)

// TxBeginner is satisfied by *pgxpool.Pool and *pgx.Conn.
type TxBeginner interface {
	BeginTxFunc(ctx context.Context, txOptions pgx.TxOptions, f func(pgx.Tx) error) error
}

// StagedInsert describes a bulk insert that copies rows into a temporary table and then moves them into the
// destination with a single INSERT ... SELECT, all inside one transaction.
type StagedInsert struct {
	// Destination table
	Table string
	// Column definitions of the staging table, e.g. "phone_number text"
	ColumnDefs []string
	// Column names, in the same order as ColumnDefs and the values returned by Row
	Columns []string
	// Number of rows to insert
	Rows int
	// Row returns the values of row i
	Row func(i int) ([]interface{}, error)
}

// BatchInsert runs insert atomically: either every row reaches the destination table or none does.
// An insert with no rows is a no-op.
func BatchInsert(ctx context.Context, db TxBeginner, insert StagedInsert) error {
	if insert.Rows == 0 {
		return nil
	}
	if len(insert.ColumnDefs) != len(insert.Columns) {
		return errors.Errorf("staged insert into %s has %d column definitions for %d columns",
			insert.Table, len(insert.ColumnDefs), len(insert.Columns))
	}
	tmpTable := UniqueTableName(insert.Table)

	return db.BeginTxFunc(ctx, pgx.TxOptions{
		IsoLevel:       pgx.ReadCommitted,
		AccessMode:     pgx.ReadWrite,
		DeferrableMode: pgx.Deferrable,
	}, func(tx pgx.Tx) error {
		// Create a temporary table to hold the staging data
		_, err := tx.Exec(ctx, fmt.Sprintf(
			"CREATE TEMPORARY TABLE %s (%s) ON COMMIT DROP",
			tmpTable, strings.Join(insert.ColumnDefs, ", ")))
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{tmpTable},
			insert.Columns,
			pgx.CopyFromSlice(insert.Rows, insert.Row),
		)
		if err != nil {
			return errors.WithStack(err)
		}

		columns := strings.Join(insert.Columns, ", ")
		_, err = tx.Exec(ctx, fmt.Sprintf(
			"INSERT INTO %s (%s) SELECT %s FROM %s",
			insert.Table, columns, columns, tmpTable))
		return errors.WithStack(err)
	})
}

func UniqueTableName(table string) string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")
	return fmt.Sprintf("%s_tmp_%s", table, suffix)
}
