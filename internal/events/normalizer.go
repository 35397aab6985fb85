// Package events normalizes and classifies inbound 3xpay webhook payloads.
//
// 3xpay has shipped several webhook schema generations: flat fields,
// fields nested under "transaction", and fields nested under "data" (with
// further "transaction"/"payment" nesting). Payloads are treated as untrusted
// JSON trees; extraction is a set of safe optional-path lookups that never
// fail, they just yield empty fields.
package events

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Candidate extraction paths, one list per field. Order matters: the first
// non-falsy candidate in list order wins, so flat current-generation fields
// shadow the nested historical ones.
var (
	referenceIDPaths = []string{
		"referenceId",
		"reference_id",
		"externalId",
		"external_id",
		"transaction.external_id",
		"transaction.externalId",
		"data.external_id",
		"data.transaction.external_id",
		"data.transaction.externalId",
		"data.payment.external_id",
		"data.payment.externalId",
	}

	transactionIDPaths = []string{
		"transaction_id",
		"transactionId",
		"id",
		"transaction.id",
		"data.transaction_id",
		"data.transactionId",
		"data.transaction.id",
		"data.payment.transaction_id",
		"data.payment.transactionId",
	}

	statusPaths = []string{
		"status",
		"event",
		"type",
		"event_type",
		"payment_status",
		"transaction.status",
		"data.status",
		"data.payment.status",
		"data.event",
		"data.type",
	}
)

// Normalized is the flattened view of an inbound webhook event.
// An empty string means the field could not be extracted.
type Normalized struct {
	ReferenceID   string
	TransactionID string
	Status        string
}

// Actionable reports whether the event carries enough information to be
// relayed downstream: both a reference id and a status.
func (n Normalized) Actionable() bool {
	return n.ReferenceID != "" && n.Status != ""
}

// Normalize extracts the reference id, transaction id, and status from an
// arbitrarily shaped webhook event. Pure function of its input.
func Normalize(event any) Normalized {
	return Normalized{
		ReferenceID:   firstScalar(event, referenceIDPaths),
		TransactionID: firstScalar(event, transactionIDPaths),
		Status:        firstScalar(event, statusPaths),
	}
}

// Decode parses a raw webhook body into an untyped event tree, using
// json.Number so numeric ids keep their exact textual form. A body that is
// not valid JSON yields nil, which normalizes to an event with no
// extractable fields.
func Decode(body []byte) any {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var event any
	if err := dec.Decode(&event); err != nil {
		return nil
	}
	return event
}

// firstScalar evaluates candidate paths in order and returns the first
// non-falsy scalar value, coerced to string. Returns "" when no candidate
// matches.
func firstScalar(event any, paths []string) string {
	for _, path := range paths {
		v, ok := lookup(event, path)
		if !ok {
			continue
		}
		if s, ok := coerce(v); ok {
			return s
		}
	}
	return ""
}

// lookup walks a dot-separated path through nested JSON objects. Only object
// nodes can be descended into; any other node terminates the walk.
func lookup(event any, path string) (any, bool) {
	cur := event
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// coerce converts a scalar JSON value to its string form. Falsy values
// ("", 0, false, null) and non-scalar values (objects, arrays) are rejected
// so extraction moves on to the next candidate.
func coerce(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, t != ""
	case json.Number:
		if f, err := t.Float64(); err == nil && f == 0 {
			return "", false
		}
		return t.String(), true
	case float64:
		// Decode uses json.Number, but events built programmatically (tests,
		// callers holding pre-decoded maps) may carry plain floats.
		if t == 0 {
			return "", false
		}
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		if !t {
			return "", false
		}
		return "true", true
	default:
		return "", false
	}
}
