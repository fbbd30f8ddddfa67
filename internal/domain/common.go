package domain

// TradeSide represents the direction of a trade (long or short).
type TradeSide string

const (
	Long  TradeSide = "long"
	Short TradeSide = "short"
)

// IsValid reports whether the side is one of the known values.
func (s TradeSide) IsValid() bool {
	return s == Long || s == Short
}

// TradeStatus represents the lifecycle state of a trade.
type TradeStatus string

const (
	StatusOpen   TradeStatus = "open"
	StatusClosed TradeStatus = "closed"
)

// TransactionType represents the direction of a cash movement.
type TransactionType string

const (
	Deposit    TransactionType = "deposit"
	Withdrawal TransactionType = "withdrawal"
)

// IsValid reports whether the transaction type is one of the known values.
func (t TransactionType) IsValid() bool {
	return t == Deposit || t == Withdrawal
}

// HistoryEvent identifies an entry in the append-only trade history log.
type HistoryEvent string

const (
	EventOpen         HistoryEvent = "open"
	EventClose        HistoryEvent = "close"
	EventPartialClose HistoryEvent = "partial_close"
	EventAddPosition  HistoryEvent = "add_position"
	EventRemark       HistoryEvent = "remark"
)
