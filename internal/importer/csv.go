// Package importer turns password-manager exports into import records.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dtroode/credsync/internal/model"
)

// ErrNoURLColumn is returned when a CSV header has no recognizable URL column.
var ErrNoURLColumn = errors.New("csv header has no url column")

// Header aliases used by common browser and password-manager exports.
var columns = map[string][]string{
	"url":      {"url", "login_uri", "website", "origin", "web site"},
	"username": {"username", "login_username", "login", "user", "email"},
	"password": {"password", "login_password"},
	"notes":    {"notes", "note", "extra", "comments"},
}

// ParseCSV reads a header-led CSV export and returns one record per row.
// Rows without a URL are skipped.
func ParseCSV(r io.Reader) ([]model.ImportRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	idx := mapHeader(header)
	if _, ok := idx["url"]; !ok {
		return nil, ErrNoURLColumn
	}

	var out []model.ImportRecord
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv line %d: %w", line, err)
		}

		rec := model.ImportRecord{
			URL:      field(row, idx, "url"),
			Username: field(row, idx, "username"),
			Password: field(row, idx, "password"),
			Notes:    field(row, idx, "notes"),
		}
		if rec.URL == "" {
			continue
		}
		out = append(out, rec)
	}
}

func mapHeader(header []string) map[string]int {
	idx := make(map[string]int)
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		for name, aliases := range columns {
			if _, seen := idx[name]; seen {
				continue
			}
			for _, a := range aliases {
				if h == a {
					idx[name] = i
					break
				}
			}
		}
	}
	return idx
}

func field(row []string, idx map[string]int, name string) string {
	i, ok := idx[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
