package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// queryIDsByCatalog runs a query taking (catalog, identifiers) and returning
// (id, catalog_identifier) pairs.
func queryIDsByCatalog(ctx context.Context, db DBTX, query, catalog string, identifiers []string) (map[string]int64, error) {
	keys := uniqueStrings(identifiers)
	if len(keys) == 0 {
		return map[string]int64{}, nil
	}

	rows, err := db.Query(ctx, query, catalog, keys)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectIDsByKey(rows)
}

// batchGetOrCreate queues one get-or-create statement per argument list in a
// single pgx.Batch. The statement must return (id, inserted).
func batchGetOrCreate(ctx context.Context, db DBTX, query string, argLists [][]interface{}) ([]Created, error) {
	if len(argLists) == 0 {
		return []Created{}, nil
	}

	batch := &pgx.Batch{}
	for _, args := range argLists {
		batch.Queue(query, args...)
	}

	br := db.SendBatch(ctx, batch)
	defer br.Close()

	results := make([]Created, len(argLists))
	for i := range argLists {
		if err := br.QueryRow().Scan(&results[i].ID, &results[i].Inserted); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
	}
	return results, nil
}

// batchExec queues one statement per argument list in a single pgx.Batch.
func batchExec(ctx context.Context, db DBTX, query string, argLists [][]interface{}) error {
	if len(argLists) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, args := range argLists {
		batch.Queue(query, args...)
	}

	br := db.SendBatch(ctx, batch)
	defer br.Close()

	for i := range argLists {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("statement %d: %w", i, err)
		}
	}
	return nil
}
