// Package database carries a gorm transaction through context.Context so that
// repositories joined in one unit of work share the same tx.
package database

import (
	"context"
	"database/sql"

	"gorm.io/gorm"
)

type TransactionManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

type TxManager struct {
	db   *gorm.DB
	opts *sql.TxOptions
}

func NewTxManager(db *gorm.DB) *TxManager {
	tm := &TxManager{db: db}
	// sqlite has no per-transaction isolation levels
	if db.Dialector != nil && db.Dialector.Name() == "postgres" {
		tm.opts = &sql.TxOptions{Isolation: sql.LevelReadCommitted}
	}
	return tm
}

// RunInTx commits when fn returns nil and rolls back on error or panic.
// Nested calls join the outer transaction.
func (tm *TxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}

	var opts []*sql.TxOptions
	if tm.opts != nil {
		opts = append(opts, tm.opts)
	}

	return tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	}, opts...)
}

// Conn returns the transaction bound to ctx, or db scoped to ctx when none is active.
func Conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return db.WithContext(ctx)
}
