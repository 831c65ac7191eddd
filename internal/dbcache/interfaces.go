// Package dbcache implements an export cache for the build driver (§4.I):
// compiled modules' ExportedSymbols, serialized as JSON, are stored in a
// small on-disk SQLite database keyed by module name and content hash.
// internal/builddriver.Build does not use this package; every build
// type-checks every module. This is purely additive to the build driver's
// semantics; a cache hit must be indistinguishable from a freshly computed
// check_with_imports call.
//
// The package structure (BaseDB/TransactionExecutor/TxOptions) mirrors the
// teacher's internal/db package, generalized to a hand-rolled query layer
// since this cache has a single, narrow table rather than a generated sqlc
// schema.
package dbcache

import (
	"context"
	"database/sql"
	"time"
)

// DefaultStoreTimeout is the default timeout used for any interaction
// with the cache database.
var DefaultStoreTimeout = 10 * time.Second

const (
	// DefaultNumTxRetries is the default number of times we'll retry a
	// transaction if it fails with an error that permits repetition.
	DefaultNumTxRetries = 10

	// DefaultInitialRetryDelay is the default initial delay between
	// retries; doubled after each attempt until DefaultMaxRetryDelay.
	DefaultInitialRetryDelay = 40 * time.Millisecond

	// DefaultMaxRetryDelay is the default maximum delay between retries.
	DefaultMaxRetryDelay = 3 * time.Second
)

// TxOptions represents a set of options one can use to control what type of
// database transaction is created. Transactions can either be read or
// write.
type TxOptions interface {
	ReadOnly() bool
}

// BaseTxOptions defines the set of db txn options the database understands.
type BaseTxOptions struct {
	readOnly bool
}

// ReadOnly returns true if the transaction should be read only.
func (a *BaseTxOptions) ReadOnly() bool { return a.readOnly }

// ReadTxOption returns a TxOptions that indicates a read-only transaction.
func ReadTxOption() *BaseTxOptions { return &BaseTxOptions{readOnly: true} }

// WriteTxOption returns a TxOptions that indicates a write transaction.
func WriteTxOption() *BaseTxOptions { return &BaseTxOptions{readOnly: false} }

// QueryCreator is a generic function used to create a concrete query type
// bound to a particular *sql.Tx. TransactionExecutor calls this once per
// attempt to bind the query object to the transaction it just opened.
type QueryCreator[Q any] func(*sql.Tx) Q

// BatchedQuerier allows callers to create a new database transaction given
// a set of TxOptions.
type BatchedQuerier interface {
	BeginTx(ctx context.Context, options TxOptions) (*sql.Tx, error)
}

// BaseDB is the base database struct the cache embeds for common
// functionality.
type BaseDB struct {
	*sql.DB
}

// NewBaseDB creates a new BaseDB instance from a sql.DB connection.
func NewBaseDB(db *sql.DB) *BaseDB { return &BaseDB{DB: db} }

// BeginTx wraps sql.DB.BeginTx with the TxOptions interface.
func (s *BaseDB) BeginTx(ctx context.Context, opts TxOptions) (*sql.Tx, error) {
	return s.DB.BeginTx(ctx, &sql.TxOptions{ReadOnly: opts.ReadOnly()})
}
