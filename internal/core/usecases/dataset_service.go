package usecases

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/a-ayari03/POOL-AI/internal/core/domain"
	"github.com/a-ayari03/POOL-AI/internal/core/ports"
	"github.com/a-ayari03/POOL-AI/internal/pkg/metrics"
	"github.com/a-ayari03/POOL-AI/internal/pkg/telemetry"
)

const (
	imagesDir = "images"
	labelsDir = "labels"
)

// DatasetService splits labelled image/label pairs into train/val/test folders.
type DatasetService struct {
	fs     afero.Fs
	events ports.EventPublisher
}

// NewDatasetService creates a new DatasetService. events may be nil.
func NewDatasetService(fs afero.Fs, events ports.EventPublisher) *DatasetService {
	return &DatasetService{fs: fs, events: events}
}

// ListPairs matches sourceDir/images and sourceDir/labels by base name.
// Entries come back sorted by name.
func (s *DatasetService) ListPairs(sourceDir string) ([]domain.DatasetEntry, error) {
	images, imgDups, err := s.listByBase(filepath.Join(sourceDir, imagesDir))
	if err != nil {
		return nil, err
	}
	labels, lblDups, err := s.listByBase(filepath.Join(sourceDir, labelsDir))
	if err != nil {
		return nil, err
	}

	perr := &domain.PairingError{Duplicates: append(imgDups, lblDups...)}
	entries := make([]domain.DatasetEntry, 0, len(images))
	for _, name := range slices.Sorted(maps.Keys(images)) {
		label, ok := labels[name]
		if !ok {
			perr.MissingLabels = append(perr.MissingLabels, name)
			continue
		}
		entries = append(entries, domain.DatasetEntry{
			Name:      name,
			ImagePath: images[name],
			LabelPath: label,
		})
	}
	for _, name := range slices.Sorted(maps.Keys(labels)) {
		if _, ok := images[name]; !ok {
			perr.MissingImages = append(perr.MissingImages, name)
		}
	}

	if len(perr.MissingLabels)+len(perr.MissingImages)+len(perr.Duplicates) > 0 {
		return nil, perr
	}
	return entries, nil
}

// listByBase returns base name -> path for the regular, non-hidden files of dir.
func (s *DatasetService) listByBase(dir string) (map[string]string, []string, error) {
	infos, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		return nil, nil, fmt.Errorf("list %s: %w", dir, err)
	}
	out := make(map[string]string, len(infos))
	var dups []string
	for _, fi := range infos {
		name := fi.Name()
		if fi.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		base := strings.TrimSuffix(name, filepath.Ext(name))
		if _, seen := out[base]; seen {
			dups = append(dups, filepath.Join(dir, base))
			continue
		}
		out[base] = filepath.Join(dir, name)
	}
	return out, dups, nil
}

// Partition computes split sizes: train = floor(n*trainRatio),
// val = floor(n*validRatio), test takes the remainder.
func Partition(n int, trainRatio, validRatio float64) (domain.SplitCounts, error) {
	if n < 0 {
		return domain.SplitCounts{}, fmt.Errorf("%w: negative item count %d", domain.ErrInvalidRatio, n)
	}
	if !inUnitRange(trainRatio) || !inUnitRange(validRatio) {
		return domain.SplitCounts{}, fmt.Errorf("%w: ratios must be in [0,1], got %g and %g", domain.ErrInvalidRatio, trainRatio, validRatio)
	}
	if trainRatio+validRatio > 1 {
		return domain.SplitCounts{}, fmt.Errorf("%w: train + valid ratio exceeds 1", domain.ErrInvalidRatio)
	}

	train := int(float64(n) * trainRatio)
	val := int(float64(n) * validRatio)
	return domain.SplitCounts{Train: train, Val: val, Test: n - train - val}, nil
}

// inUnitRange is false for NaN and the infinities.
func inUnitRange(r float64) bool {
	return r >= 0 && r <= 1
}

// MaterializeSplit rebuilds destRoot/{images,labels}/{train,val,test} and
// copies entries in order: the first counts.Train go to train, the next
// counts.Val to val, the rest to test. With no entries nothing is touched.
func (s *DatasetService) MaterializeSplit(ctx context.Context, entries []domain.DatasetEntry, counts domain.SplitCounts, destRoot string) error {
	if len(entries) == 0 {
		return nil
	}
	if counts.Train < 0 || counts.Val < 0 || counts.Test < 0 || counts.Total() != len(entries) {
		return fmt.Errorf("split counts %d/%d/%d do not cover %d entries", counts.Train, counts.Val, counts.Test, len(entries))
	}
	if err := checkDisjoint(destRoot, entryDirs(entries)...); err != nil {
		return err
	}

	for _, top := range []string{imagesDir, labelsDir} {
		if err := s.fs.RemoveAll(filepath.Join(destRoot, top)); err != nil {
			return fmt.Errorf("clear %s: %w", top, err)
		}
		for _, split := range domain.Splits {
			if err := s.fs.MkdirAll(filepath.Join(destRoot, top, string(split)), 0o755); err != nil {
				return fmt.Errorf("create %s/%s: %w", top, split, err)
			}
		}
	}

	i := 0
	for _, split := range domain.Splits {
		for n := counts.Of(split); n > 0; n-- {
			if err := ctx.Err(); err != nil {
				return err
			}
			e := entries[i]
			if err := s.copyPair(e, split, destRoot); err != nil {
				return &domain.CopyError{Entry: e, Split: split, Err: err}
			}
			metrics.DatasetFilesCopied.WithLabelValues(string(split)).Inc()
			i++
		}
	}
	return nil
}

func entryDirs(entries []domain.DatasetEntry) []string {
	seen := make(map[string]struct{})
	for _, e := range entries {
		seen[filepath.Dir(e.ImagePath)] = struct{}{}
		seen[filepath.Dir(e.LabelPath)] = struct{}{}
	}
	return slices.Sorted(maps.Keys(seen))
}

func (s *DatasetService) copyPair(e domain.DatasetEntry, split domain.Split, destRoot string) error {
	img := filepath.Join(destRoot, imagesDir, string(split), filepath.Base(e.ImagePath))
	if err := s.copyFile(e.ImagePath, img); err != nil {
		return err
	}
	lbl := filepath.Join(destRoot, labelsDir, string(split), filepath.Base(e.LabelPath))
	return s.copyFile(e.LabelPath, lbl)
}

func (s *DatasetService) copyFile(src, dst string) error {
	in, err := s.fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := s.fs.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Split runs ListPairs, Partition and MaterializeSplit.
func (s *DatasetService) Split(ctx context.Context, sourceDir, destRoot string, trainRatio, validRatio float64) (*domain.SplitReport, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "DatasetService.Split")
	defer span.End()

	if err := checkDisjoint(destRoot, filepath.Join(sourceDir, imagesDir), filepath.Join(sourceDir, labelsDir)); err != nil {
		span.RecordError(err)
		return nil, err
	}
	report, entries, err := s.plan(sourceDir, trainRatio, validRatio)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	report.DestRoot = destRoot

	if err := s.MaterializeSplit(ctx, entries, report.Counts, destRoot); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("materialize split: %w", err)
	}
	report.Duration = time.Since(report.StartedAt)
	metrics.DatasetSplits.Inc()

	slog.Info("dataset split",
		"run_id", report.RunID,
		"source", sourceDir,
		"dest", destRoot,
		"train", report.Counts.Train,
		"val", report.Counts.Val,
		"test", report.Counts.Test,
	)

	if s.events != nil {
		if err := s.events.PublishSplitCompleted(ctx, report); err != nil {
			slog.Warn("publish split event failed", "run_id", report.RunID, "error", err)
		}
	}
	return report, nil
}

// checkDisjoint rejects a destination whose images or labels folder, which
// MaterializeSplit clears, is or contains one of the folders read from.
func checkDisjoint(destRoot string, readDirs ...string) error {
	dst, err := filepath.Abs(destRoot)
	if err != nil {
		return fmt.Errorf("resolve destination %s: %w", destRoot, err)
	}
	for _, dir := range readDirs {
		src, err := filepath.Abs(dir)
		if err != nil {
			return fmt.Errorf("resolve source %s: %w", dir, err)
		}
		for _, cleared := range []string{imagesDir, labelsDir} {
			if within(filepath.Join(dst, cleared), src) {
				return fmt.Errorf("%w: clearing %s would remove %s", domain.ErrOverlappingDirs,
					filepath.Join(destRoot, cleared), dir)
			}
		}
	}
	return nil
}

// within reports whether path equals parent or lies below it.
func within(parent, path string) bool {
	rel, err := filepath.Rel(parent, path)
	return err == nil && (rel == "." || filepath.IsLocal(rel))
}

// Preview returns what Split would do without writing anything.
func (s *DatasetService) Preview(sourceDir string, trainRatio, validRatio float64) (*domain.SplitReport, error) {
	report, _, err := s.plan(sourceDir, trainRatio, validRatio)
	if err != nil {
		return nil, err
	}
	report.Duration = time.Since(report.StartedAt)
	return report, nil
}

func (s *DatasetService) plan(sourceDir string, trainRatio, validRatio float64) (*domain.SplitReport, []domain.DatasetEntry, error) {
	started := time.Now()
	entries, err := s.ListPairs(sourceDir)
	if err != nil {
		return nil, nil, err
	}
	counts, err := Partition(len(entries), trainRatio, validRatio)
	if err != nil {
		return nil, nil, err
	}

	names := make(map[domain.Split][]string, len(domain.Splits))
	i := 0
	for _, split := range domain.Splits {
		names[split] = []string{}
		for n := counts.Of(split); n > 0; n-- {
			names[split] = append(names[split], entries[i].Name)
			i++
		}
	}

	return &domain.SplitReport{
		RunID:      uuid.NewString(),
		SourceDir:  sourceDir,
		TrainRatio: trainRatio,
		ValidRatio: validRatio,
		Counts:     counts,
		Entries:    names,
		StartedAt:  started,
	}, entries, nil
}
