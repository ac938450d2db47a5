// Copyright 2026 The Cavok Authors
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cavok-dev/cavok/internal/cavok-api/models"
)

// writeResult writes a successful RPC envelope.
func writeResult(w http.ResponseWriter, result any, correlationID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(models.RPCSuccess{Result: result, CorrelationID: correlationID})
}

// writeRPCError writes an error RPC envelope.
func writeRPCError(w http.ResponseWriter, statusCode int, message, correlationID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(models.RPCError{Error: message, CorrelationID: correlationID})
}

// badRequestError marks caller mistakes so the dispatcher maps them to 400.
type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

func badRequestf(format string, args ...any) error {
	return &badRequestError{msg: fmt.Sprintf(format, args...)}
}

// unknownMethodError reports an unrecognized RPC method name.
type unknownMethodError struct {
	method string
}

func (e *unknownMethodError) Error() string {
	return fmt.Sprintf("unknown method %q", e.method)
}

// decodeParams unmarshals the raw params into the method's param struct.
// Absent params decode to the zero value.
func decodeParams(raw json.RawMessage, into any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return badRequestf("malformed params: %v", err)
	}
	return nil
}

// parseDate accepts an RFC 3339 timestamp or a bare YYYY-MM-DD day. dayOnly
// reports which form matched.
func parseDate(value string) (parsed time.Time, dayOnly bool, err error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, false, nil
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, true, nil
	}
	return time.Time{}, false, fmt.Errorf("invalid date %q, want RFC 3339 or YYYY-MM-DD", value)
}
