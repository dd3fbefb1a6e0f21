package models

// Order lifecycle. An order is never hard-deleted: resolved duplicates are
// pointed at their survivor via MergedIntoId with status "merged".
type OrderStatus string

const (
	OrderStatusOpen        OrderStatus = "open"
	OrderStatusPlaceholder OrderStatus = "placeholder"
	OrderStatusMerged      OrderStatus = "merged"
	OrderStatusPaid        OrderStatus = "paid"
	OrderStatusPartial     OrderStatus = "partial"
	OrderStatusRefunded    OrderStatus = "refunded"
	OrderStatusSwitched    OrderStatus = "switched"
	OrderStatusCancelled   OrderStatus = "cancelled"
)

// Feed that created or most recently enriched a record.
type OrderSource string

const (
	OrderSourceBizim OrderSource = "bizim"
	OrderSourceKargo OrderSource = "kargo"
)

type ClientStatus string

const (
	// seen only in the courier feed so far; origin-feed counterpart pending
	ClientStatusMissingBizim ClientStatus = "missing-bizim"
	// seen only in the origin feed so far; courier settlement pending
	ClientStatusMissingKargo ClientStatus = "missing-kargo"
	ClientStatusMerged       ClientStatus = "merged"
)

type MovementDirection string

const (
	MovementIn  MovementDirection = "in"
	MovementOut MovementDirection = "out"
)

type MatchMode string

const (
	MatchModeExact     MatchMode = "exact"
	MatchModeIContains MatchMode = "icontains"
	MatchModeRegex     MatchMode = "regex"
)

type ImportRowStatus string

const (
	ImportRowCreated   ImportRowStatus = "created"
	ImportRowUpdated   ImportRowStatus = "updated"
	ImportRowSkipped   ImportRowStatus = "skipped"
	ImportRowUnmatched ImportRowStatus = "unmatched"
	ImportRowError     ImportRowStatus = "error"
	ImportRowDuplicate ImportRowStatus = "duplicate"
)

// IsTerminalForDuplicateCheck reports whether a prior row outcome makes a
// re-submitted identical row a duplicate. Unmatched counts: it created an
// order on the fallback item. Error and skipped rows stay retryable.
func (s ImportRowStatus) IsTerminalForDuplicateCheck() bool {
	switch s {
	case ImportRowCreated, ImportRowUpdated, ImportRowUnmatched, ImportRowDuplicate:
		return true
	}
	return false
}

// statuses whose orders report zero cost and may be vacated by the rehomer
var cancelLikeStatuses = []OrderStatus{OrderStatusRefunded, OrderStatusSwitched, OrderStatusCancelled}

func IsCancelLike(s OrderStatus) bool {
	for _, c := range cancelLikeStatuses {
		if s == c {
			return true
		}
	}
	return false
}
