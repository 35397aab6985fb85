package events

import "strings"

// paidStatuses is the closed set of status values that denote a successfully
// paid transaction. This is an allow-list, not a deny-list: unknown provider
// statuses (PIX_EXPIRED, pending, future lifecycle codes) classify as not
// paid, so a new status can never credit a payment by accident.
var paidStatuses = map[string]struct{}{
	"PAID":      {},
	"PIX_PAID":  {},
	"CONFIRMED": {},
	"COMPLETED": {},
	"SUCCESS":   {},
}

// IsPaid reports whether a raw status string denotes a paid transaction.
// Comparison is case-insensitive; an empty status is never paid.
func IsPaid(status string) bool {
	_, ok := paidStatuses[strings.ToUpper(status)]
	return ok
}
