package test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"sparkviz/internal/analyzer"
	"sparkviz/internal/metrics"
	"sparkviz/internal/model"
	"sparkviz/internal/parser"
)

var (
	rootPath string
	once     sync.Once
)

// RootPath resolves a path relative to the repository rootPath (where go.mod resides).
func RootPath(t *testing.T) string {
	t.Helper()
	once.Do(func() {
		wd, err := os.Getwd()
		if err != nil {
			t.Fatalf("getwd: %v", err)
		}
		for {
			if _, err := os.Stat(filepath.Join(wd, "go.mod")); err == nil {
				rootPath = wd
				break
			}
			next := filepath.Dir(wd)
			if next == wd {
				t.Fatalf("go.mod not found from %s", wd)
			}
			wd = next
		}
	})
	return rootPath
}

// ReadSample returns the contents of a file under samples/.
func ReadSample(t *testing.T, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(RootPath(t), "samples", rel))
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	return string(data)
}

// LoadSampleTree parses a plan text under samples/, optionally merging a
// metrics JSON file (pass "" to skip).
func LoadSampleTree(t *testing.T, planRel, metricsRel string) *model.PlanTree {
	t.Helper()
	tree, err := parser.Parse(ReadSample(t, planRel))
	if err != nil {
		t.Fatalf("parse plan: %v", err)
	}
	if metricsRel != "" {
		f, err := os.Open(filepath.Join(RootPath(t), "samples", metricsRel))
		if err != nil {
			t.Fatalf("open metrics: %v", err)
		}
		defer func() { _ = f.Close() }()

		source, err := metrics.ParseJSON(f)
		if err != nil {
			t.Fatalf("parse metrics: %v", err)
		}
		metrics.Merge(tree, source)
	}
	return tree
}

// LoadSampleAnalysis parses and analyzes a plan text under samples/.
func LoadSampleAnalysis(t *testing.T, planRel, metricsRel string) *analyzer.PlanAnalysis {
	t.Helper()
	tree := LoadSampleTree(t, planRel, metricsRel)
	analysis, err := analyzer.Analyze(tree)
	if err != nil {
		t.Fatalf("analyze plan: %v", err)
	}
	return analysis
}
