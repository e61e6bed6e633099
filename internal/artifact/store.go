package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNoArtifact is returned when no trained artifact has been published yet.
var ErrNoArtifact = errors.New("no current model artifact")

const (
	scalerFile   = "scaler.gob"
	modelFile    = "model.bin"
	manifestFile = "manifest.json"
	currentFile  = "CURRENT"
	versionsDir  = "versions"
)

// Manifest records everything needed to reproduce predictions with a saved
// Scaler+Model pair. Features lists the feature schema in training order.
type Manifest struct {
	Version       string    `json:"version"`
	Features      []string  `json:"features"`
	TrainedAt     time.Time `json:"trained_at"`
	SampleCount   int       `json:"sample_count"`
	Synthetic     bool      `json:"synthetic"`
	Contamination float64   `json:"contamination"`
	AnomalyCount  int       `json:"anomaly_count"`
	ScalerHash    string    `json:"scaler_hash"`
	ModelHash     string    `json:"model_hash"`
}

// Artifact is a loaded Scaler+Model pair with its manifest.
type Artifact struct {
	Manifest Manifest
	Scaler   []byte
	Model    []byte
}

// Store keeps model artifacts in timestamped version directories under a
// root path. The active version is named by a CURRENT pointer file which is
// replaced by atomic rename, so a failed or partial training run can never
// corrupt the artifact in use.
type Store struct {
	root string
}

// NewStore creates an artifact store rooted at the given directory.
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(root, versionsDir), 0755); err != nil {
		return nil, fmt.Errorf("failed to create artifact root: %w", err)
	}
	return &Store{root: root}, nil
}

// Save writes a new artifact version and atomically repoints CURRENT at it.
// The version directory is fully written before the pointer moves.
func (s *Store) Save(m Manifest, scaler, modelBlob []byte) (string, error) {
	if m.Version == "" {
		// Random suffix keeps two saves within the same second from
		// sharing a version directory.
		m.Version = fmt.Sprintf("iforest_%s_%s",
			time.Now().UTC().Format("20060102T150405"), uuid.NewString()[:8])
	}
	m.ScalerHash = hashBytes(scaler)
	m.ModelHash = hashBytes(modelBlob)

	dir := filepath.Join(s.root, versionsDir, m.Version)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create version directory: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, scalerFile), scaler, 0644); err != nil {
		return "", fmt.Errorf("failed to write scaler: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, modelFile), modelBlob, 0644); err != nil {
		return "", fmt.Errorf("failed to write model: %w", err)
	}

	manifestBytes, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, manifestFile), manifestBytes, 0644); err != nil {
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}

	// Point CURRENT at the new version only after the version directory is
	// complete. Rename is atomic on the same filesystem.
	tmp, err := os.CreateTemp(s.root, currentFile+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create pointer temp file: %w", err)
	}
	if _, err := tmp.WriteString(m.Version + "\n"); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write pointer temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to close pointer temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.root, currentFile)); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to publish version pointer: %w", err)
	}

	return m.Version, nil
}

// CurrentVersion returns the version named by the CURRENT pointer.
func (s *Store) CurrentVersion() (string, error) {
	data, err := os.ReadFile(filepath.Join(s.root, currentFile))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoArtifact
		}
		return "", fmt.Errorf("failed to read version pointer: %w", err)
	}
	version := strings.TrimSpace(string(data))
	if version == "" {
		return "", ErrNoArtifact
	}
	return version, nil
}

// LoadCurrent loads the active artifact and verifies its blob hashes against
// the manifest. A hash mismatch means the version directory was tampered
// with or partially written and is reported as an error, not tolerated.
func (s *Store) LoadCurrent() (*Artifact, error) {
	version, err := s.CurrentVersion()
	if err != nil {
		return nil, err
	}
	return s.Load(version)
}

// Load loads a specific artifact version.
func (s *Store) Load(version string) (*Artifact, error) {
	dir := filepath.Join(s.root, versionsDir, version)

	manifestBytes, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest for version %s: %w", version, err)
	}
	var m Manifest
	if err := json.Unmarshal(manifestBytes, &m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest for version %s: %w", version, err)
	}

	scaler, err := os.ReadFile(filepath.Join(dir, scalerFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read scaler for version %s: %w", version, err)
	}
	modelBlob, err := os.ReadFile(filepath.Join(dir, modelFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read model for version %s: %w", version, err)
	}

	if got := hashBytes(scaler); got != m.ScalerHash {
		return nil, fmt.Errorf("scaler hash mismatch for version %s: manifest %s, file %s", version, m.ScalerHash, got)
	}
	if got := hashBytes(modelBlob); got != m.ModelHash {
		return nil, fmt.Errorf("model hash mismatch for version %s: manifest %s, file %s", version, m.ModelHash, got)
	}

	return &Artifact{Manifest: m, Scaler: scaler, Model: modelBlob}, nil
}

// ListVersions returns the names of all saved versions, oldest first.
func (s *Store) ListVersions() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, versionsDir))
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	var versions []string
	for _, e := range entries {
		if e.IsDir() {
			versions = append(versions, e.Name())
		}
	}
	return versions, nil
}

func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
