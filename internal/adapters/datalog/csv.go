// Package datalog keeps the picture catalog in a semicolon-separated file,
// for runs without a database.
package datalog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/a-ayari03/POOL-AI/internal/core/domain"
)

var header = []string{
	"id", "parcel_id", "zipcode", "havepool", "filepath",
	"mode", "address", "width", "height", "zoom", "format", "bytes", "created_at",
}

// Log is a PictureRepository backed by one CSV file.
type Log struct {
	mu   sync.Mutex
	fs   afero.Fs
	path string
}

// New creates a Log writing to path on fs.
func New(fs afero.Fs, path string) *Log {
	return &Log{fs: fs, path: path}
}

// Record appends one row, writing the header first when the file is new.
func (l *Log) Record(ctx context.Context, p *domain.Picture) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if dir := filepath.Dir(l.path); dir != "." {
		if err := l.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create datalog dir: %w", err)
		}
	}

	fresh := false
	if fi, err := l.fs.Stat(l.path); errors.Is(err, os.ErrNotExist) || (err == nil && fi.Size() == 0) {
		fresh = true
	}

	f, err := l.fs.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open datalog: %w", err)
	}
	defer f.Close()

	w := newWriter(f)
	if fresh {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("write datalog header: %w", err)
		}
	}
	if err := w.Write(toRow(p)); err != nil {
		return fmt.Errorf("write datalog: %w", err)
	}
	w.Flush()
	return w.Error()
}

// List returns rows in file order, filtered on parcelID when non-empty.
func (l *Log) List(ctx context.Context, parcelID string, limit, offset int) ([]domain.Picture, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := l.fs.Open(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return []domain.Picture{}, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("open datalog: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = ';'
	r.FieldsPerRecord = len(header)

	var all []domain.Picture
	for line := 1; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("read datalog: %w", err)
		}
		if line == 1 && row[0] == header[0] {
			continue
		}
		p, err := fromRow(row)
		if err != nil {
			return nil, 0, fmt.Errorf("datalog line %d: %w", line, err)
		}
		if parcelID == "" || p.ParcelID == parcelID {
			all = append(all, p)
		}
	}

	total := len(all)
	if offset >= total {
		return []domain.Picture{}, total, nil
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return all[offset:end], total, nil
}

func newWriter(w io.Writer) *csv.Writer {
	cw := csv.NewWriter(w)
	cw.Comma = ';'
	return cw
}

func toRow(p *domain.Picture) []string {
	pool := "0"
	if p.HasPool {
		pool = "1"
	}
	return []string{
		p.ID, p.ParcelID, p.Zipcode, pool, p.Path,
		p.Mode, p.Address,
		strconv.Itoa(p.Width), strconv.Itoa(p.Height), strconv.Itoa(p.Zoom),
		p.Format, strconv.Itoa(p.Bytes), p.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func fromRow(row []string) (domain.Picture, error) {
	var p domain.Picture
	var err error
	p.ID, p.ParcelID, p.Zipcode = row[0], row[1], row[2]
	p.HasPool = row[3] == "1"
	p.Path = row[4]
	p.Filename = filepath.Base(row[4])
	p.Mode, p.Address = row[5], row[6]
	if p.Width, err = strconv.Atoi(row[7]); err != nil {
		return p, fmt.Errorf("width: %w", err)
	}
	if p.Height, err = strconv.Atoi(row[8]); err != nil {
		return p, fmt.Errorf("height: %w", err)
	}
	if p.Zoom, err = strconv.Atoi(row[9]); err != nil {
		return p, fmt.Errorf("zoom: %w", err)
	}
	p.Format = row[10]
	if p.Bytes, err = strconv.Atoi(row[11]); err != nil {
		return p, fmt.Errorf("bytes: %w", err)
	}
	if p.CreatedAt, err = time.Parse(time.RFC3339, row[12]); err != nil {
		return p, fmt.Errorf("created_at: %w", err)
	}
	return p, nil
}
