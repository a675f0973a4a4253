package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidRequest is the parent of every validation failure on a picture request.
	ErrInvalidRequest = errors.New("invalid picture request")

	ErrNoExteriorRing = fmt.Errorf("%w: polygon has no exterior ring", ErrInvalidRequest)
	ErrTooFewVertices = fmt.Errorf("%w: exterior ring needs at least 3 vertices", ErrInvalidRequest)

	ErrInvalidRatio        = errors.New("invalid split ratio")
	ErrOverlappingDirs     = errors.New("split destination overlaps source")
	ErrMissingAPIKey       = errors.New("missing static map api key")
	ErrUnexpectedContent   = errors.New("unexpected content type")
	ErrImageTooLarge       = errors.New("image exceeds size limit")
	ErrLinkNotFound        = errors.New("no link matches keyword")
	ErrNotFound            = errors.New("not found")
	ErrUnsupportedGeometry = errors.New("unsupported geometry")
)

// UpstreamError is returned when a remote endpoint answers with a non-200 status.
type UpstreamError struct {
	URL    string
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream %s returned HTTP %d", e.URL, e.Status)
	}
	return fmt.Sprintf("upstream %s returned HTTP %d: %s", e.URL, e.Status, e.Body)
}

// PairingError reports image/label files that could not be matched by base name.
type PairingError struct {
	MissingLabels []string // images without a label
	MissingImages []string // labels without an image
	Duplicates    []string // base names present twice in one listing
}

func (e *PairingError) Error() string {
	var parts []string
	if len(e.MissingLabels) > 0 {
		parts = append(parts, "images without label: "+strings.Join(e.MissingLabels, ", "))
	}
	if len(e.MissingImages) > 0 {
		parts = append(parts, "labels without image: "+strings.Join(e.MissingImages, ", "))
	}
	if len(e.Duplicates) > 0 {
		parts = append(parts, "duplicate names: "+strings.Join(e.Duplicates, ", "))
	}
	return "dataset pairing failed: " + strings.Join(parts, "; ")
}

// CopyError identifies the pair whose copy aborted a split.
type CopyError struct {
	Entry DatasetEntry
	Split Split
	Err   error
}

func (e *CopyError) Error() string {
	return fmt.Sprintf("copy %s to %s: %v", e.Entry.Name, e.Split, e.Err)
}

func (e *CopyError) Unwrap() error { return e.Err }

// BatchError identifies the request that stopped a fail-fast batch.
type BatchError struct {
	Index int
	Label string
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch item %d (%s): %v", e.Index, e.Label, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }
