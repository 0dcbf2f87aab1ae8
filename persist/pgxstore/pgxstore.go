// Package pgxstore implements persist.Inserter against postgres with
// pgx/v5, following the teacher's qry/qrypgx Open/WithTx shape modernized
// to pgxpool and wrapped with github.com/pkg/errors.
package pgxstore

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/daqhub/metriq/persist"
)

// Store is a pgxpool-backed persist.Inserter.
type Store struct {
	pool *pgxpool.Pool
}

var _ persist.Inserter = (*Store)(nil)

// Open connects to dsn and verifies it with a ping, mirroring the
// teacher's qrypgx.Open first-connection check.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "creating pgx connection pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "opening first pgx connection")
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool's connections.
func (s *Store) Close() { s.pool.Close() }

// Insert writes entries, metrics, and attrs inside one transaction, in
// pre-order, building a provisional-to-physical id map as it goes so a
// child row can always resolve its already-inserted parent's physical id
// (persist.Flatten guarantees pre-order).
func (s *Store) Insert(ctx context.Context, entries []persist.EntryRow, metrics []persist.MetricEntryRow, attrs []persist.AttributeEntryRow) (map[int64]int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "beginning transaction")
	}
	defer tx.Rollback(ctx)

	idMap := make(map[int64]int64, len(entries))
	idMap[0] = 0

	metricSet := make(map[int64]bool, len(metrics))
	for _, m := range metrics {
		metricSet[m.Entry] = true
	}
	attrByEntry := make(map[int64]persist.AttributeEntryRow, len(attrs))
	for _, a := range attrs {
		attrByEntry[a.Entry] = a
	}

	for _, row := range entries {
		parent, ok := idMap[row.ParentEntry]
		if !ok {
			return nil, errors.Errorf("entry %d references parent %d before it was inserted", row.ID, row.ParentEntry)
		}
		var parentArg interface{}
		if parent != 0 {
			parentArg = parent
		}
		var physical int64
		err := tx.QueryRow(ctx,
			`INSERT INTO entries (user_id, definition_id, parent_entry_id, ts, subdivision, comments)
			 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
			row.UserID, row.Definition, parentArg, row.Timestamp, row.Subdivision, row.Comments,
		).Scan(&physical)
		if err != nil {
			return nil, errors.Wrapf(err, "inserting entry row %d", row.ID)
		}
		idMap[row.ID] = physical

		if metricSet[row.ID] {
			if _, err := tx.Exec(ctx, `INSERT INTO metric_entries (entry_id) VALUES ($1)`, physical); err != nil {
				return nil, errors.Wrapf(err, "inserting metric_entries row for entry %d", row.ID)
			}
			continue
		}
		if a, ok := attrByEntry[row.ID]; ok {
			if _, err := tx.Exec(ctx,
				`INSERT INTO attribute_entries (entry_id, field_id, value_int, value_float, value_string, value_bool, value_timestamp, value_hierarchy)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				physical, a.Field, a.ValueInt, a.ValueFloat, a.ValueString, a.ValueBool, a.ValueTimestamp, a.ValueHierarchy,
			); err != nil {
				return nil, errors.Wrapf(err, "inserting attribute_entries row for entry %d", row.ID)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "committing transaction")
	}
	return idMap, nil
}
