package core

import "time"

// TransactionFilter narrows a ledger listing. Zero-valued fields do not
// filter.
type TransactionFilter struct {
	Kind     TransactionKind
	Status   TransactionStatus
	Category string
	MemberID string
	From     time.Time
	To       time.Time
}
