package artifact

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir, err := os.MkdirTemp("", "artifact_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	s, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return s
}

func TestStore_NoArtifact(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.CurrentVersion(); !errors.Is(err, ErrNoArtifact) {
		t.Errorf("Expected ErrNoArtifact, got: %v", err)
	}
	if _, err := s.LoadCurrent(); !errors.Is(err, ErrNoArtifact) {
		t.Errorf("Expected ErrNoArtifact from LoadCurrent, got: %v", err)
	}
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)

	manifest := Manifest{
		Features:      []string{"src_port", "dst_port"},
		TrainedAt:     time.Now().UTC(),
		SampleCount:   1000,
		Contamination: 0.1,
		AnomalyCount:  100,
	}
	scaler := []byte("scaler-blob")
	modelBlob := []byte("model-blob")

	version, err := s.Save(manifest, scaler, modelBlob)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if version == "" {
		t.Fatal("Save returned empty version")
	}

	art, err := s.LoadCurrent()
	if err != nil {
		t.Fatalf("LoadCurrent failed: %v", err)
	}

	if art.Manifest.Version != version {
		t.Errorf("Expected version %s, got %s", version, art.Manifest.Version)
	}
	if !reflect.DeepEqual(art.Manifest.Features, manifest.Features) {
		t.Errorf("Feature list mismatch: %v vs %v", art.Manifest.Features, manifest.Features)
	}
	if string(art.Scaler) != string(scaler) || string(art.Model) != string(modelBlob) {
		t.Error("Loaded blobs do not match saved blobs")
	}
	if art.Manifest.SampleCount != 1000 || art.Manifest.Contamination != 0.1 {
		t.Errorf("Manifest metadata not preserved: %+v", art.Manifest)
	}
}

func TestStore_CurrentPointerMovesOnSave(t *testing.T) {
	s := newTestStore(t)

	v1, err := s.Save(Manifest{Version: "v1", Features: []string{"a"}}, []byte("s1"), []byte("m1"))
	if err != nil {
		t.Fatalf("First save failed: %v", err)
	}
	v2, err := s.Save(Manifest{Version: "v2", Features: []string{"a"}}, []byte("s2"), []byte("m2"))
	if err != nil {
		t.Fatalf("Second save failed: %v", err)
	}

	current, err := s.CurrentVersion()
	if err != nil {
		t.Fatalf("CurrentVersion failed: %v", err)
	}
	if current != v2 {
		t.Errorf("Expected current version %s, got %s", v2, current)
	}

	// Older versions remain loadable.
	old, err := s.Load(v1)
	if err != nil {
		t.Fatalf("Loading old version failed: %v", err)
	}
	if string(old.Model) != "m1" {
		t.Errorf("Old version content wrong: %q", old.Model)
	}

	versions, err := s.ListVersions()
	if err != nil {
		t.Fatalf("ListVersions failed: %v", err)
	}
	if len(versions) != 2 {
		t.Errorf("Expected 2 versions, got %d: %v", len(versions), versions)
	}
}

func TestStore_AutoVersionNamesAreUnique(t *testing.T) {
	s := newTestStore(t)

	v1, err := s.Save(Manifest{Features: []string{"a"}}, []byte("s1"), []byte("m1"))
	if err != nil {
		t.Fatalf("First save failed: %v", err)
	}
	v2, err := s.Save(Manifest{Features: []string{"a"}}, []byte("s2"), []byte("m2"))
	if err != nil {
		t.Fatalf("Second save failed: %v", err)
	}
	if v1 == v2 {
		t.Fatalf("Back-to-back saves produced the same version %s", v1)
	}

	// The first version's blobs must survive the second save.
	old, err := s.Load(v1)
	if err != nil {
		t.Fatalf("Loading first version failed: %v", err)
	}
	if string(old.Model) != "m1" {
		t.Errorf("First version overwritten: model is %q", old.Model)
	}
}

func TestStore_DetectsCorruptedBlob(t *testing.T) {
	s := newTestStore(t)

	version, err := s.Save(Manifest{Version: "v1", Features: []string{"a"}}, []byte("scaler"), []byte("model"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	modelPath := filepath.Join(s.root, versionsDir, version, modelFile)
	if err := os.WriteFile(modelPath, []byte("tampered"), 0644); err != nil {
		t.Fatalf("Failed to tamper with model file: %v", err)
	}

	if _, err := s.LoadCurrent(); err == nil {
		t.Error("Expected hash mismatch error for tampered model, got nil")
	}
}
