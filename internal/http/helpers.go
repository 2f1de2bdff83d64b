package http

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"coopledger/internal/core"
)

const dateLayout = "2006-01-02"

// parseDate parses a calendar date in YYYY-MM-DD form as UTC midnight.
func parseDate(value string) (time.Time, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", value)
	}
	return t, nil
}

// actingUser identifies who performed the request, from the
// X-Acting-User header. Unauthenticated callers are recorded as "api".
func actingUser(r *http.Request) string {
	if user := strings.TrimSpace(r.Header.Get("X-Acting-User")); user != "" {
		return user
	}
	return "api"
}

// parseTransactionFilter builds a ledger filter from query parameters.
// Absent parameters do not filter.
func parseTransactionFilter(r *http.Request) (core.TransactionFilter, error) {
	q := r.URL.Query()
	filter := core.TransactionFilter{
		Kind:     core.TransactionKind(q.Get("kind")),
		Status:   core.TransactionStatus(q.Get("status")),
		Category: q.Get("category"),
		MemberID: q.Get("member"),
	}
	if filter.Kind != "" && !filter.Kind.Valid() {
		return core.TransactionFilter{}, fmt.Errorf("unknown kind %q", filter.Kind)
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return core.TransactionFilter{}, fmt.Errorf("unknown status %q", filter.Status)
	}
	if v := q.Get("from"); v != "" {
		from, err := parseDate(v)
		if err != nil {
			return core.TransactionFilter{}, err
		}
		filter.From = from
	}
	if v := q.Get("to"); v != "" {
		to, err := parseDate(v)
		if err != nil {
			return core.TransactionFilter{}, err
		}
		filter.To = to
	}
	return filter, nil
}

// parsePaymentStatuses maps repeated status query parameters to
// collective payment statuses.
func parsePaymentStatuses(r *http.Request) ([]core.CollectivePaymentStatus, error) {
	values := r.URL.Query()["status"]
	statuses := make([]core.CollectivePaymentStatus, 0, len(values))
	for _, v := range values {
		status := core.CollectivePaymentStatus(v)
		if !status.Valid() {
			return nil, fmt.Errorf("unknown payment status %q", v)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}
