package cadastre

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/a-ayari03/POOL-AI/internal/core/domain"
)

// ReadLabels parses a semicolon-separated labelling sheet with the columns
// id (or parcel_id), zipcode and havepool. Column order is free; extra
// columns are ignored. havepool accepts 1/0, true/false and yes/no.
func ReadLabels(r io.Reader) ([]domain.ParcelLabel, error) {
	cr := csv.NewReader(r)
	cr.Comma = ';'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty labels file", domain.ErrInvalidRequest)
		}
		return nil, fmt.Errorf("read labels header: %w", err)
	}
	cols := indexColumns(header)
	idCol, ok := cols["id"]
	if !ok {
		if idCol, ok = cols["parcel_id"]; !ok {
			return nil, fmt.Errorf("%w: labels file has no id column", domain.ErrInvalidRequest)
		}
	}

	var labels []domain.ParcelLabel
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read labels line %d: %w", line, err)
		}
		id := field(rec, idCol)
		if id == "" {
			continue
		}
		pool, err := parseBool(field(rec, colOr(cols, "havepool", "has_pool")))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", domain.ErrInvalidRequest, line, err)
		}
		labels = append(labels, domain.ParcelLabel{
			ParcelID: id,
			Zipcode:  field(rec, colOr(cols, "zipcode", "code_postal")),
			HasPool:  pool,
		})
	}
	return labels, nil
}

func indexColumns(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, col := range header {
		col = strings.TrimPrefix(col, "\xef\xbb\xbf")
		m[strings.ToLower(strings.TrimSpace(col))] = i
	}
	return m
}

func colOr(cols map[string]int, names ...string) int {
	for _, n := range names {
		if i, ok := cols[n]; ok {
			return i
		}
	}
	return -1
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "oui":
		return true, nil
	case "", "0", "false", "no", "non":
		return false, nil
	default:
		return false, fmt.Errorf("invalid havepool value %q", s)
	}
}
