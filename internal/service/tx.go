package service

import (
	"context"

	"gorm.io/gorm"
)

// TxManager runs a function inside one database transaction. The repositories
// used within must be rebound to the transaction handle via WithTx.
type TxManager interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// GormTxManager adapts *gorm.DB to TxManager.
type GormTxManager struct {
	DB *gorm.DB
}

func (m GormTxManager) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return m.DB.WithContext(ctx).Transaction(fn)
}
