package usecases_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"testing"

	"github.com/spf13/afero"

	"github.com/a-ayari03/POOL-AI/internal/core/domain"
	"github.com/a-ayari03/POOL-AI/internal/core/usecases"
)

// seedPairs writes n image/label pairs named img_000..img_{n-1}.
func seedPairs(t *testing.T, fs afero.Fs, src string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("img_%03d", i)
		if err := afero.WriteFile(fs, filepath.Join(src, "images", name+".png"), []byte("image "+name), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := afero.WriteFile(fs, filepath.Join(src, "labels", name+".txt"), []byte("0 0.5 0.5 0.1 0.1"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func listDir(t *testing.T, fs afero.Fs, dir string) []string {
	t.Helper()
	infos, err := afero.ReadDir(fs, dir)
	if err != nil {
		t.Fatalf("read %s: %v", dir, err)
	}
	names := make([]string, 0, len(infos))
	for _, fi := range infos {
		names = append(names, fi.Name())
	}
	return names
}

func TestPartition(t *testing.T) {
	tests := []struct {
		n      int
		tr, vr float64
		want   domain.SplitCounts
	}{
		{100, 0.85, 0.10, domain.SplitCounts{Train: 85, Val: 10, Test: 5}},
		{20, 0.85, 0.10, domain.SplitCounts{Train: 17, Val: 2, Test: 1}},
		{0, 0.85, 0.10, domain.SplitCounts{}},
		{7, 0.85, 0.10, domain.SplitCounts{Train: 5, Val: 0, Test: 2}},
		{10, 1, 0, domain.SplitCounts{Train: 10}},
		{10, 0, 0, domain.SplitCounts{Test: 10}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_%g_%g", tt.n, tt.tr, tt.vr), func(t *testing.T) {
			got, err := usecases.Partition(tt.n, tt.tr, tt.vr)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
			if got.Total() != tt.n {
				t.Errorf("counts do not sum to %d", tt.n)
			}
		})
	}
}

func TestPartition_SumsForAllSizes(t *testing.T) {
	for n := 0; n <= 250; n++ {
		c, err := usecases.Partition(n, 0.7, 0.2)
		if err != nil {
			t.Fatal(err)
		}
		if c.Total() != n || c.Train < 0 || c.Val < 0 || c.Test < 0 {
			t.Fatalf("n=%d: bad counts %+v", n, c)
		}
	}
}

func TestPartition_InvalidRatio(t *testing.T) {
	nan, inf := math.NaN(), math.Inf(1)
	for _, r := range [][2]float64{
		{-0.1, 0.1}, {0.5, 1.1}, {0.8, 0.3},
		{nan, 0.1}, {0.85, nan}, {inf, 0}, {0.5, -inf},
	} {
		if _, err := usecases.Partition(10, r[0], r[1]); !errors.Is(err, domain.ErrInvalidRatio) {
			t.Errorf("ratios %v: expected ErrInvalidRatio, got %v", r, err)
		}
	}
}

func TestDatasetService_ListPairs(t *testing.T) {
	fs := afero.NewMemMapFs()
	seedPairs(t, fs, "src", 3)
	_ = afero.WriteFile(fs, "src/images/.DS_Store", []byte{}, 0o644)
	_ = fs.MkdirAll("src/labels/classes", 0o755)

	svc := usecases.NewDatasetService(fs, nil)
	entries, err := svc.ListPairs("src")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 pairs, got %d", len(entries))
	}
	if entries[0].Name != "img_000" || entries[0].ImagePath != filepath.Join("src", "images", "img_000.png") {
		t.Errorf("unexpected first entry %+v", entries[0])
	}
	if !sort.SliceIsSorted(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name }) {
		t.Errorf("expected entries sorted by name")
	}
}

func TestDatasetService_ListPairs_Unmatched(t *testing.T) {
	fs := afero.NewMemMapFs()
	seedPairs(t, fs, "src", 2)
	_ = afero.WriteFile(fs, "src/images/orphan.png", []byte("x"), 0o644)
	_ = afero.WriteFile(fs, "src/labels/lonely.txt", []byte("x"), 0o644)
	_ = afero.WriteFile(fs, "src/images/img_000.jpg", []byte("x"), 0o644)

	svc := usecases.NewDatasetService(fs, nil)
	_, err := svc.ListPairs("src")

	var perr *domain.PairingError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PairingError, got %v", err)
	}
	if len(perr.MissingLabels) != 1 || perr.MissingLabels[0] != "orphan" {
		t.Errorf("unexpected missing labels %v", perr.MissingLabels)
	}
	if len(perr.MissingImages) != 1 || perr.MissingImages[0] != "lonely" {
		t.Errorf("unexpected missing images %v", perr.MissingImages)
	}
	if len(perr.Duplicates) != 1 {
		t.Errorf("expected one duplicate, got %v", perr.Duplicates)
	}
}

func TestDatasetService_ListPairs_MissingDir(t *testing.T) {
	svc := usecases.NewDatasetService(afero.NewMemMapFs(), nil)
	if _, err := svc.ListPairs("nowhere"); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestDatasetService_Split_EndToEnd(t *testing.T) {
	fs := afero.NewMemMapFs()
	seedPairs(t, fs, "src", 20)
	events := &mockPublisher{}
	svc := usecases.NewDatasetService(fs, events)

	report, err := svc.Split(context.Background(), "src", "dst", 0.85, 0.10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Counts != (domain.SplitCounts{Train: 17, Val: 2, Test: 1}) {
		t.Fatalf("unexpected counts %+v", report.Counts)
	}

	for _, top := range []string{"images", "labels"} {
		train := listDir(t, fs, filepath.Join("dst", top, "train"))
		val := listDir(t, fs, filepath.Join("dst", top, "val"))
		test := listDir(t, fs, filepath.Join("dst", top, "test"))
		if len(train) != 17 || len(val) != 2 || len(test) != 1 {
			t.Fatalf("%s: unexpected layout %d/%d/%d", top, len(train), len(val), len(test))
		}
	}

	// first 17 by name go to train, next 2 to val, the last to test
	if got := listDir(t, fs, "dst/images/val"); got[0] != "img_017.png" || got[1] != "img_018.png" {
		t.Errorf("unexpected val images %v", got)
	}
	if got := listDir(t, fs, "dst/labels/test"); got[0] != "img_019.txt" {
		t.Errorf("unexpected test labels %v", got)
	}
	data, _ := afero.ReadFile(fs, "dst/images/train/img_003.png")
	if string(data) != "image img_003" {
		t.Errorf("unexpected copied content %q", data)
	}

	if len(events.splits) != 1 || events.splits[0].RunID != report.RunID {
		t.Errorf("expected split event")
	}
	if len(report.Entries[domain.SplitTest]) != 1 || report.Entries[domain.SplitTest][0] != "img_019" {
		t.Errorf("unexpected report entries %v", report.Entries)
	}
}

func TestDatasetService_Split_Idempotent(t *testing.T) {
	fs := afero.NewMemMapFs()
	seedPairs(t, fs, "src", 20)
	svc := usecases.NewDatasetService(fs, nil)
	ctx := context.Background()

	if _, err := svc.Split(ctx, "src", "dst", 0.85, 0.10); err != nil {
		t.Fatal(err)
	}
	// stale file from an older run must disappear
	_ = afero.WriteFile(fs, "dst/images/train/stale.png", []byte("old"), 0o644)

	first := map[string][]string{}
	for _, d := range []string{"images/train", "images/val", "images/test", "labels/train", "labels/val", "labels/test"} {
		first[d] = listDir(t, fs, filepath.Join("dst", d))
	}

	if _, err := svc.Split(ctx, "src", "dst", 0.85, 0.10); err != nil {
		t.Fatal(err)
	}
	for d, before := range first {
		after := listDir(t, fs, filepath.Join("dst", d))
		want := before
		if d == "images/train" {
			want = before[:0:0]
			for _, n := range before {
				if n != "stale.png" {
					want = append(want, n)
				}
			}
		}
		if fmt.Sprint(after) != fmt.Sprint(want) {
			t.Errorf("%s: expected %v after rerun, got %v", d, want, after)
		}
	}
}

func TestDatasetService_MaterializeSplit_NoEntriesNoWrites(t *testing.T) {
	fs := afero.NewMemMapFs()
	_ = afero.WriteFile(fs, "dst/images/train/keep.png", []byte("x"), 0o644)
	svc := usecases.NewDatasetService(fs, nil)

	if err := svc.MaterializeSplit(context.Background(), nil, domain.SplitCounts{}, "dst"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok, _ := afero.Exists(fs, "dst/images/train/keep.png"); !ok {
		t.Errorf("expected existing files untouched")
	}
	if ok, _ := afero.DirExists(fs, "dst/labels"); ok {
		t.Errorf("expected no directories created")
	}
}

func TestDatasetService_MaterializeSplit_CopyError(t *testing.T) {
	fs := afero.NewMemMapFs()
	seedPairs(t, fs, "src", 3)
	svc := usecases.NewDatasetService(fs, nil)
	entries, err := svc.ListPairs("src")
	if err != nil {
		t.Fatal(err)
	}
	entries[1].LabelPath = "src/labels/gone.txt"

	err = svc.MaterializeSplit(context.Background(), entries, domain.SplitCounts{Train: 2, Val: 1}, "dst")
	var cerr *domain.CopyError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected CopyError, got %v", err)
	}
	if cerr.Entry.Name != "img_001" || cerr.Split != domain.SplitTrain {
		t.Errorf("unexpected copy error %+v", cerr)
	}
}

func TestDatasetService_MaterializeSplit_CountMismatch(t *testing.T) {
	svc := usecases.NewDatasetService(afero.NewMemMapFs(), nil)
	err := svc.MaterializeSplit(context.Background(), []domain.DatasetEntry{{Name: "a"}}, domain.SplitCounts{Train: 2}, "dst")
	if err == nil {
		t.Fatal("expected mismatch error")
	}
}

func TestDatasetService_MaterializeSplit_NegativeCounts(t *testing.T) {
	fs := afero.NewMemMapFs()
	seedPairs(t, fs, "src", 3)
	svc := usecases.NewDatasetService(fs, nil)
	entries, err := svc.ListPairs("src")
	if err != nil {
		t.Fatal(err)
	}

	err = svc.MaterializeSplit(context.Background(), entries, domain.SplitCounts{Train: -1, Val: 2, Test: 2}, "dst")
	if err == nil {
		t.Fatal("expected error for negative counts")
	}
	if ok, _ := afero.DirExists(fs, "dst"); ok {
		t.Errorf("expected nothing written")
	}
}

func TestDatasetService_Split_NaNRatioWritesNothing(t *testing.T) {
	fs := afero.NewMemMapFs()
	seedPairs(t, fs, "src", 20)
	svc := usecases.NewDatasetService(fs, nil)

	_, err := svc.Split(context.Background(), "src", "dst", math.NaN(), 0.10)
	if !errors.Is(err, domain.ErrInvalidRatio) {
		t.Fatalf("expected ErrInvalidRatio, got %v", err)
	}
	if ok, _ := afero.DirExists(fs, "dst"); ok {
		t.Errorf("expected nothing written")
	}
}

func TestDatasetService_Split_OverlappingDirs(t *testing.T) {
	for _, tt := range []struct{ src, dst string }{
		{"/data", "/data"},
		{"/data/labelised", "/data/labelised/"},
		{"/data/images/raw", "/data"},
		{"labelised", "./labelised"},
	} {
		t.Run(tt.src+"->"+tt.dst, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			seedPairs(t, fs, tt.src, 20)
			svc := usecases.NewDatasetService(fs, nil)

			_, err := svc.Split(context.Background(), tt.src, tt.dst, 0.85, 0.10)
			if !errors.Is(err, domain.ErrOverlappingDirs) {
				t.Fatalf("expected ErrOverlappingDirs, got %v", err)
			}
			if got := listDir(t, fs, filepath.Join(tt.src, "images")); len(got) != 20 {
				t.Errorf("expected source images intact, got %d", len(got))
			}
			if got := listDir(t, fs, filepath.Join(tt.src, "labels")); len(got) != 20 {
				t.Errorf("expected source labels intact, got %d", len(got))
			}
		})
	}
}

func TestDatasetService_Split_NestedDestAllowed(t *testing.T) {
	fs := afero.NewMemMapFs()
	seedPairs(t, fs, "/data", 20)
	svc := usecases.NewDatasetService(fs, nil)

	report, err := svc.Split(context.Background(), "/data", "/data/split", 0.85, 0.10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Counts.Train != 17 {
		t.Errorf("unexpected counts %+v", report.Counts)
	}
	if got := listDir(t, fs, "/data/images"); len(got) != 20 {
		t.Errorf("expected source images intact, got %d", len(got))
	}
}

func TestDatasetService_MaterializeSplit_OverlappingDirs(t *testing.T) {
	fs := afero.NewMemMapFs()
	seedPairs(t, fs, "/data", 3)
	svc := usecases.NewDatasetService(fs, nil)
	entries, err := svc.ListPairs("/data")
	if err != nil {
		t.Fatal(err)
	}

	err = svc.MaterializeSplit(context.Background(), entries, domain.SplitCounts{Train: 3}, "/data")
	if !errors.Is(err, domain.ErrOverlappingDirs) {
		t.Fatalf("expected ErrOverlappingDirs, got %v", err)
	}
	if got := listDir(t, fs, "/data/images"); len(got) != 3 {
		t.Errorf("expected source images intact, got %d", len(got))
	}
}

func TestDatasetService_Preview_NoWrites(t *testing.T) {
	fs := afero.NewMemMapFs()
	seedPairs(t, fs, "src", 20)
	svc := usecases.NewDatasetService(fs, nil)

	report, err := svc.Preview("src", 0.85, 0.10)
	if err != nil {
		t.Fatal(err)
	}
	if report.Counts.Train != 17 {
		t.Errorf("unexpected counts %+v", report.Counts)
	}
	if ok, _ := afero.DirExists(fs, "dst"); ok {
		t.Errorf("preview must not write")
	}
}
