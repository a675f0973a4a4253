// Package staticmap composes static-map API requests. Everything here is pure:
// the same inputs always produce the same URL and filename.
package staticmap

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/a-ayari03/POOL-AI/internal/core/domain"
	"github.com/twpayne/go-geom"
)

// Options are the request parts that do not vary per picture.
type Options struct {
	BaseURL   string
	APIKey    string
	Format    string
	MapType   string
	PathStyle string // prefix of the path overlay, e.g. "color:0xff0000ff|weight:0|"
}

// PathString renders the polygon's exterior ring as "lat,lon|lat,lon|...".
// Vertices are stored as (lon, lat); the API expects latitude first.
func PathString(p *geom.Polygon) (string, error) {
	ring, err := domain.ExteriorRing(p)
	if err != nil {
		return "", err
	}
	tokens := make([]string, len(ring))
	for i, pt := range ring {
		tokens[i] = formatCoord(pt.Lat) + "," + formatCoord(pt.Lon)
	}
	return strings.Join(tokens, "|"), nil
}

// BuildRequestURL formats the request URL. Query segments are always in the
// order format, path|center, size, zoom, maptype, key.
func BuildRequestURL(o Options, r domain.PictureRequest) (string, error) {
	var b strings.Builder
	b.WriteString(o.BaseURL)
	switch {
	case !strings.Contains(o.BaseURL, "?"):
		b.WriteByte('?')
	case !strings.HasSuffix(o.BaseURL, "?") && !strings.HasSuffix(o.BaseURL, "&"):
		b.WriteByte('&')
	}

	b.WriteString("format=")
	b.WriteString(o.Format)

	switch r.Target.Kind {
	case domain.TargetPolygon:
		path, err := PathString(r.Target.Polygon)
		if err != nil {
			return "", err
		}
		b.WriteString("&path=")
		b.WriteString(o.PathStyle)
		b.WriteString(path)
	case domain.TargetAddress:
		if r.Target.Address == "" {
			return "", fmt.Errorf("%w: address is empty", domain.ErrInvalidRequest)
		}
		b.WriteString("&center=")
		b.WriteString(url.QueryEscape(r.Target.Address))
	default:
		return "", fmt.Errorf("%w: unknown target", domain.ErrInvalidRequest)
	}

	fmt.Fprintf(&b, "&size=%dx%d&zoom=%d&maptype=%s&key=%s", r.Width, r.Height, r.Zoom, o.MapType, o.APIKey)
	return b.String(), nil
}

// Filename encodes the identifying attributes of a request.
// Polygon mode: <hasPool 0|1>_<parcelID>_<W>x<H>.<format>.
// Address mode: <address>_<W>x<H>.<format>.
func Filename(r domain.PictureRequest, format string) string {
	if r.Target.Kind == domain.TargetAddress {
		return fmt.Sprintf("%s_%dx%d.%s", sanitize(r.Target.Address), r.Width, r.Height, format)
	}
	pool := 0
	if r.HasPool {
		pool = 1
	}
	return fmt.Sprintf("%d_%s_%dx%d.%s", pool, sanitize(r.ParcelID), r.Width, r.Height, format)
}

// CacheKey identifies a rendered image independently of the credential.
func CacheKey(o Options, r domain.PictureRequest) (string, error) {
	o.APIKey = ""
	u, err := BuildRequestURL(o, r)
	if err != nil {
		return "", err
	}
	h := sha256.Sum256([]byte(u))
	return "staticmap:" + hex.EncodeToString(h[:]), nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var filenameReplacer = strings.NewReplacer("/", "-", "\\", "-", "\x00", "")

func sanitize(s string) string {
	return filenameReplacer.Replace(s)
}
