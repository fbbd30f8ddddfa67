package domain

import (
	"fmt"
	"time"
)

// Transaction is a cash movement against a portfolio. Amount is always
// stored positive; the direction comes from Type. Transactions are
// immutable once created — corrections are compensating entries, never
// in-place edits.
type Transaction struct {
	ID          int64           // Unique identifier (assigned by the repository)
	PortfolioID int64           // Owning portfolio
	Type        TransactionType // deposit or withdrawal
	Amount      float64         // Always positive
	Note        string          // Optional free-form note
	CreatedAt   time.Time       // Creation timestamp
}

// NewTransaction validates and builds a cash transaction.
func NewTransaction(portfolioID int64, txType TransactionType, amount float64, note string, at time.Time) (*Transaction, error) {
	if portfolioID <= 0 {
		return nil, fmt.Errorf("portfolio id must be positive, got %d", portfolioID)
	}
	if !txType.IsValid() {
		return nil, fmt.Errorf("invalid transaction type %q", txType)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("amount must be positive, got %v", amount)
	}
	if at.IsZero() {
		at = time.Now()
	}
	return &Transaction{
		PortfolioID: portfolioID,
		Type:        txType,
		Amount:      amount,
		Note:        note,
		CreatedAt:   at,
	}, nil
}
