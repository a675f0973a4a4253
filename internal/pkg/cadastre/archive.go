// Package cadastre reads the archives published by the open-data cadastre portal.
package cadastre

import (
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// ExtractedName returns the file name an archive expands to ("x.json.gz" -> "x.json").
func ExtractedName(archive string) string {
	base := path.Base(strings.ReplaceAll(archive, "\\", "/"))
	return strings.TrimSuffix(base, ".gz")
}

// Gunzip decompresses src into dst. limit caps the decompressed size; zero
// means no cap.
func Gunzip(dst io.Writer, src io.Reader, limit int64) (int64, error) {
	zr, err := gzip.NewReader(src)
	if err != nil {
		return 0, fmt.Errorf("open gzip: %w", err)
	}
	defer zr.Close()

	var r io.Reader = zr
	if limit > 0 {
		r = io.LimitReader(zr, limit+1)
	}
	n, err := io.Copy(dst, r)
	if err != nil {
		return n, fmt.Errorf("gunzip: %w", err)
	}
	if limit > 0 && n > limit {
		return n, fmt.Errorf("gunzip: archive expands beyond %d bytes", limit)
	}
	return n, nil
}
