package dbcache

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// txQueries is the concrete query type bound to a single *sql.Tx, created
// fresh by TransactionExecutor for every attempt.
type txQueries struct {
	q *sql.Tx
}

const (
	queryGetExports = `
SELECT content_hash, exports_json FROM module_exports
WHERE module_name = ?;`

	queryUpsertExports = `
INSERT INTO module_exports (module_name, content_hash, exports_json, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(module_name) DO UPDATE SET
	content_hash = excluded.content_hash,
	exports_json = excluded.exports_json,
	updated_at   = excluded.updated_at;`

	queryDeleteExports = `DELETE FROM module_exports WHERE module_name = ?;`
)

// cachedExports is a single row of the module_exports table.
type cachedExports struct {
	ContentHash string
	ExportsJSON []byte
}

func (t *txQueries) getExports(ctx context.Context,
	moduleName string) (*cachedExports, error) {

	row := t.q.QueryRowContext(ctx, queryGetExports, moduleName)

	var entry cachedExports
	err := row.Scan(&entry.ContentHash, &entry.ExportsJSON)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, err
	}

	return &entry, nil
}

func (t *txQueries) putExports(ctx context.Context, moduleName,
	contentHash string, exportsJSON []byte, now time.Time) error {

	_, err := t.q.ExecContext(
		ctx, queryUpsertExports, moduleName, contentHash, exportsJSON, now,
	)
	return err
}

func (t *txQueries) deleteExports(ctx context.Context,
	moduleName string) error {

	_, err := t.q.ExecContext(ctx, queryDeleteExports, moduleName)
	return err
}

// ExportCache memoizes a module's ExportedSymbols (as serialized JSON),
// keyed by module name and the content hash of the module's source files.
// A hit returns the exports stored for an unchanged module; the build
// driver does not call it.
type ExportCache struct {
	store *Store
}

// NewExportCache wraps an opened Store with the cache's query methods.
func NewExportCache(store *Store) *ExportCache {
	return &ExportCache{store: store}
}

// Lookup returns the cached exports JSON for moduleName if present and its
// stored content hash matches contentHash. A mismatched hash is treated as a
// miss: the module's source changed since it was cached.
func (c *ExportCache) Lookup(ctx context.Context, moduleName,
	contentHash string) (exportsJSON []byte, hit bool, err error) {

	err = c.store.exec.ExecTx(ctx, ReadTxOption(),
		func(q *txQueries) error {
			entry, qErr := q.getExports(ctx, moduleName)
			if qErr != nil {
				return qErr
			}

			if entry == nil || entry.ContentHash != contentHash {
				return nil
			}

			exportsJSON = entry.ExportsJSON
			hit = true

			return nil
		},
	)

	return exportsJSON, hit, err
}

// Store records the exports computed for moduleName at contentHash,
// replacing any previously cached entry for that module.
func (c *ExportCache) Store(ctx context.Context, moduleName, contentHash string,
	exportsJSON []byte, now time.Time) error {

	return c.store.exec.ExecTx(ctx, WriteTxOption(),
		func(q *txQueries) error {
			return q.putExports(
				ctx, moduleName, contentHash, exportsJSON, now,
			)
		},
	)
}

// Invalidate removes any cached entry for moduleName, forcing the next
// lookup to miss regardless of content hash.
func (c *ExportCache) Invalidate(ctx context.Context, moduleName string) error {
	return c.store.exec.ExecTx(ctx, WriteTxOption(),
		func(q *txQueries) error {
			return q.deleteExports(ctx, moduleName)
		},
	)
}
