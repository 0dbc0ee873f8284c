package repository

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/retailpoint/pos-gateway/internal/model"
)

type TransactionEntity struct {
	ID          int64                    `db:"id"           gorm:"primaryKey;autoIncrement;column:id"`
	TotalAmount decimal.Decimal          `db:"total_amount" gorm:"column:total_amount;type:decimal(10,2);not null"`
	CreatedAt   time.Time                `db:"created_at"   gorm:"column:created_at;autoCreateTime"`
	Items       []*TransactionItemEntity `gorm:"foreignKey:TransactionID"`
}

func (TransactionEntity) TableName() string {
	return "transactions"
}

type TransactionItemEntity struct {
	ID            int64           `db:"id"             gorm:"primaryKey;autoIncrement;column:id"`
	TransactionID int64           `db:"transaction_id" gorm:"column:transaction_id;not null;index"`
	ProductID     int64           `db:"product_id"     gorm:"column:product_id;not null;index"`
	Quantity      int             `db:"quantity"       gorm:"column:quantity;not null"`
	PriceAtSale   decimal.Decimal `db:"price_at_sale"  gorm:"column:price_at_sale;type:decimal(10,2);not null"`
	Product       *ProductEntity  `gorm:"foreignKey:ProductID;references:ID;constraint:OnDelete:RESTRICT"`
}

func (TransactionItemEntity) TableName() string {
	return "transaction_items"
}

func toTransactionEntity(m *model.Transaction) *TransactionEntity {
	if m == nil {
		return nil
	}
	e := &TransactionEntity{
		ID:          m.ID,
		TotalAmount: m.TotalAmount,
		CreatedAt:   m.CreatedAt,
	}
	for i := range m.Items {
		e.Items = append(e.Items, toTransactionItemEntity(&m.Items[i]))
	}
	return e
}

func toTransactionItemEntity(m *model.TransactionItem) *TransactionItemEntity {
	if m == nil {
		return nil
	}
	return &TransactionItemEntity{
		ID:            m.ID,
		TransactionID: m.TransactionID,
		ProductID:     m.ProductID,
		Quantity:      m.Quantity,
		PriceAtSale:   m.PriceAtSale,
	}
}

func toTransactionModel(e *TransactionEntity) *model.Transaction {
	if e == nil {
		return nil
	}
	m := &model.Transaction{
		ID:          e.ID,
		TotalAmount: e.TotalAmount,
		CreatedAt:   e.CreatedAt,
	}
	for _, item := range e.Items {
		m.Items = append(m.Items, *toTransactionItemModel(item))
	}
	return m
}

func toTransactionItemModel(e *TransactionItemEntity) *model.TransactionItem {
	if e == nil {
		return nil
	}
	m := &model.TransactionItem{
		ID:            e.ID,
		TransactionID: e.TransactionID,
		ProductID:     e.ProductID,
		Quantity:      e.Quantity,
		PriceAtSale:   e.PriceAtSale,
	}
	if e.Product != nil {
		m.Product = &model.ProductRef{
			Name:    e.Product.Name,
			Barcode: e.Product.Barcode,
		}
	}
	return m
}

func toTransactionModels(entities []*TransactionEntity) []*model.Transaction {
	if entities == nil {
		return nil
	}
	models := make([]*model.Transaction, len(entities))
	for i, e := range entities {
		models[i] = toTransactionModel(e)
	}
	return models
}
