package models

import "fmt"

// IntegrityError reports a dangling reference in the snapshot. It is fatal
// for the whole run: downstream revenue figures would otherwise be silently
// wrong.
type IntegrityError struct {
	Table string // table holding the bad row
	RowID uint64 // offending row (order id for order_items)
	Ref   string // referenced table
	RefID uint64 // missing id
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity: %s row %d references missing %s %d", e.Table, e.RowID, e.Ref, e.RefID)
}
