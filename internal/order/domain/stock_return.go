package domain

import "time"

// StockReturn is stock owed back to the ledger by a placement that failed
// before its line items were stored. Key is the order's release key for the
// product, so whichever path returns the stock first wins.
type StockReturn struct {
	Key       string
	OrderID   string
	ProductID string
	Quantity  int64
	CreatedAt time.Time
}
