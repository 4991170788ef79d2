package ml

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// fitSmallEnsemble fits a single ridge pipeline on the synthetic table
// and wraps it as a one-member serving ensemble.
func fitSmallEnsemble(t *testing.T) *VotingEnsemble {
	t.Helper()
	obs := syntheticTable()
	rows := DeriveTrainingFeatures(obs)
	y := make([]float64, len(obs))
	for i, o := range obs {
		y[i] = o.Price
	}

	pre := &Preprocessor{}
	if err := pre.Fit(rows); err != nil {
		t.Fatalf("fit preprocessor: %v", err)
	}
	encoded, err := pre.TransformAll(rows)
	if err != nil {
		t.Fatalf("encode rows: %v", err)
	}
	selector := NewKBestSelector(15)
	if err := selector.Fit(encoded, y); err != nil {
		t.Fatalf("fit selector: %v", err)
	}

	p := &Pipeline{
		ModelType:    "Ridge",
		Preprocessor: pre,
		Selector:     selector,
		Model:        NewRidge(1.0),
	}
	if err := p.Fit(rows, y); err != nil {
		t.Fatalf("fit pipeline: %v", err)
	}
	return &VotingEnsemble{MemberNames: []string{"Ridge"}, Members: []*Pipeline{p}}
}

func TestWatchModelDirSwapsOnRewrite(t *testing.T) {
	dir := t.TempDir()
	ensemble := fitSmallEnsemble(t)

	swapped := make(chan PriceEstimator, 4)
	w, err := WatchModelDir(dir, func(est PriceEstimator) { swapped <- est }, nil)
	if err != nil {
		t.Fatalf("watch failed: %v", err)
	}
	defer w.Close()

	if err := ensemble.Save(filepath.Join(dir, EnsembleFile)); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	var est PriceEstimator
	select {
	case est = <-swapped:
	case <-time.After(5 * time.Second):
		t.Fatal("no swap after artifact rewrite")
	}

	fs := DeriveFeatures(sampleInput())
	want, err := ensemble.Estimate(fs)
	if err != nil {
		t.Fatalf("estimate failed: %v", err)
	}
	got, err := est.Estimate(fs)
	if err != nil {
		t.Fatalf("swapped estimate failed: %v", err)
	}
	if math.Abs(got-want) > 1e-6 {
		t.Fatalf("swapped estimator diverged: %v vs %v", got, want)
	}
}

func TestWatchModelDirReportsBadArtifact(t *testing.T) {
	dir := t.TempDir()

	swapped := make(chan PriceEstimator, 4)
	errs := make(chan error, 4)
	w, err := WatchModelDir(dir,
		func(est PriceEstimator) { swapped <- est },
		func(err error) { errs <- err })
	if err != nil {
		t.Fatalf("watch failed: %v", err)
	}
	defer w.Close()

	path := filepath.Join(dir, EnsembleFile)
	if err := os.WriteFile(path, []byte("not json"), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	select {
	case <-errs:
	case <-time.After(5 * time.Second):
		t.Fatal("no error for a corrupt artifact")
	}
	select {
	case <-swapped:
		t.Fatal("corrupt artifact must not swap the estimator")
	default:
	}
}

func TestWatchModelDirIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()

	swapped := make(chan PriceEstimator, 4)
	w, err := WatchModelDir(dir, func(est PriceEstimator) { swapped <- est }, nil)
	if err != nil {
		t.Fatalf("watch failed: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	select {
	case <-swapped:
		t.Fatal("unrelated files must not trigger a reload")
	case <-time.After(200 * time.Millisecond):
	}
}
