package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
)

const maxBodyBytes = 1 << 20

var errInvalidPayload = errors.New("invalid payload")

// rawAmount accepts an amount sent either as a JSON number or a string, so
// form values can be passed through untouched and parsed by the ledger.
type rawAmount string

func (a *rawAmount) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	switch {
	case trimmed == "null":
		*a = ""
	case strings.HasPrefix(trimmed, `"`):
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = rawAmount(s)
	default:
		*a = rawAmount(trimmed)
	}
	return nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dest any) error {
	return decodeJSONLimit(w, r, dest, maxBodyBytes)
}

func decodeJSONLimit(w http.ResponseWriter, r *http.Request, dest any, limit int64) error {
	body := http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(body).Decode(dest); err != nil {
		return errInvalidPayload
	}
	return nil
}

func parsePagination(r *http.Request, defaultLimit, maxLimit int) (int, int) {
	limit := defaultLimit
	offset := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}
