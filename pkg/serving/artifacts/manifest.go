package artifacts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/synaptica-ai/healthrisk/pkg/ml/linear"
	"gopkg.in/yaml.v3"
)

const ManifestFile = "manifest.yaml"

// Manifest describes one artifact bundle: the fitted preprocessing state and
// the model file for every risk category.
type Manifest struct {
	Version  string              `yaml:"version" json:"version"`
	Columns  []string            `yaml:"columns" json:"columns"`
	Encoders map[string][]string `yaml:"encoders" json:"encoders"`
	Scaler   ScalerParams        `yaml:"scaler" json:"scaler"`
	Models   []ModelRef          `yaml:"models" json:"models"`
}

type ScalerParams struct {
	Mean  []float64 `yaml:"mean" json:"mean"`
	Scale []float64 `yaml:"scale" json:"scale"`
}

type ModelRef struct {
	Category string `yaml:"category" json:"category"`
	File     string `yaml:"file" json:"file"`
}

// ModelArtifact is the on-disk format of a single trained model.
type ModelArtifact struct {
	Model ModelSpec `json:"model"`
}

type ModelSpec struct {
	Type         string         `json:"type"`
	Algorithm    string         `json:"algorithm"`
	FeatureNames []string       `json:"feature_names"`
	Weights      linear.Weights `json:"weights"`
}

// ReadManifest parses the manifest in dir and returns it with its raw bytes.
// Unknown keys are rejected so typos never silently drop configuration.
func ReadManifest(dir string) (Manifest, []byte, error) {
	path := filepath.Join(dir, ManifestFile)
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Manifest{}, nil, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)
	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return Manifest{}, nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if m.Version == "" {
		return Manifest{}, nil, fmt.Errorf("%s has no version", path)
	}
	return m, content, nil
}

func readModel(dir, file string) (ModelArtifact, []byte, error) {
	if file == "" || !filepath.IsLocal(file) {
		return ModelArtifact{}, nil, fmt.Errorf("model file %q must be a path inside the bundle", file)
	}
	content, err := os.ReadFile(filepath.Join(dir, file))
	if err != nil {
		return ModelArtifact{}, nil, err
	}
	var artifact ModelArtifact
	if err := json.Unmarshal(content, &artifact); err != nil {
		return ModelArtifact{}, nil, fmt.Errorf("parse %s: %w", file, err)
	}
	return artifact, content, nil
}
