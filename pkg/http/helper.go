package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"minidoodle/pkg/config"
	apperrors "minidoodle/pkg/errors"
)

func ExtractLimitOffset(r *http.Request) (int, int64, error) {
	query := r.URL.Query()

	limit := 0
	if s := query.Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, 0, apperrors.InvalidInput("invalid limit parameter: " + s)
		}
		limit = v
	}

	var offset int64
	if s := query.Get("offset"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, 0, apperrors.InvalidInput("invalid offset parameter: " + s)
		}
		offset = v
	}

	return config.NormalizePaginationLimit(limit), config.NormalizeOffset(offset), nil
}

// DecodeJSON decodes the request body into dst and rejects unknown fields.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperrors.New(apperrors.CodeBadRequest, "Request body too large", http.StatusRequestEntityTooLarge)
		}
		if errors.Is(err, io.EOF) {
			return apperrors.InvalidInput("Request body is empty")
		}
		return apperrors.InvalidInput("Invalid request body: " + err.Error())
	}
	return nil
}

// ExtractTimeRange reads the required RFC3339 "from" and "to" query parameters.
func ExtractTimeRange(r *http.Request) (time.Time, time.Time, error) {
	query := r.URL.Query()

	from, err := parseRequiredTime(query.Get("from"), "from")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := parseRequiredTime(query.Get("to"), "to")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !from.Before(to) {
		return time.Time{}, time.Time{}, apperrors.InvalidInput("'from' must be before 'to'")
	}
	return from, to, nil
}

// ExtractVersion reads the optional expected version from the If-Match header
// or the "version" query parameter. Absent means no caller expectation.
func ExtractVersion(r *http.Request) (*int64, error) {
	raw := r.Header.Get("If-Match")
	if raw == "" {
		raw = r.URL.Query().Get("version")
	}
	if raw == "" {
		return nil, nil
	}
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		raw = raw[1 : len(raw)-1]
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return nil, apperrors.InvalidInput("invalid version: " + raw)
	}
	return &v, nil
}

func parseRequiredTime(raw, name string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, apperrors.InvalidInput(fmt.Sprintf("'%s' query parameter is required", name))
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, apperrors.InvalidInput(fmt.Sprintf("invalid %s format, must be RFC3339", name))
	}
	return t.UTC(), nil
}
