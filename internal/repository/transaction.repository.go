package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/retailpoint/pos-gateway/internal/model"
	"github.com/retailpoint/pos-gateway/pkg/pg"
)

var ErrTransactionNotFound = errors.New("transaction not found")

// Public sort keys mapped to columns; "date" and "total" are the names the
// UI sends.
var allowedTxSortFields = map[string]string{
	"id":    "id",
	"date":  "created_at",
	"total": "total_amount",
}

type TransactionRepository struct {
	*pg.DB
}

func NewTransactionRepository(db *pg.DB) *TransactionRepository {
	return &TransactionRepository{
		db,
	}
}

// Create persists the transaction row and all of its items in one insert
// batch. Callers run it inside WithinTransaction so the rows land atomically
// with the stock decrements of the same checkout.
func (r *TransactionRepository) Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	entity := toTransactionEntity(txn)

	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toTransactionModel(entity), nil
}

// GetByID returns the transaction hydrated with its items and each item's
// product display fields.
func (r *TransactionRepository) GetByID(ctx context.Context, id int64) (*model.Transaction, error) {
	var entity TransactionEntity
	err := r.Read(ctx).
		Preload("Items").
		Preload("Items.Product").
		Where("id = ?", id).
		First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return toTransactionModel(&entity), nil
}

func (r *TransactionRepository) List(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, int64, error) {
	q := r.Read(ctx).Model(&TransactionEntity{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	sortKey, ok := allowedTxSortFields[f.SortBy]
	if !ok {
		sortKey = "created_at"
	}
	order := sortKey + " ASC"
	if f.Desc {
		order = sortKey + " DESC"
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*TransactionEntity
	err := q.Preload("Items").
		Preload("Items.Product").
		Order(order).
		Limit(limit).
		Offset(offset).
		Find(&entities).Error
	if err != nil {
		return nil, 0, err
	}

	return toTransactionModels(entities), total, nil
}
