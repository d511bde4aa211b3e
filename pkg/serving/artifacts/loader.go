package artifacts

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/synaptica-ai/healthrisk/pkg/common/models"
	"github.com/synaptica-ai/healthrisk/pkg/ml/linear"
	"github.com/synaptica-ai/healthrisk/pkg/serving/predictor"
)

// Load reads the bundle in dir and returns it ready to serve. Any
// disagreement between columns, encoders, scaler and models rejects the whole
// bundle.
func Load(dir string) (*predictor.Bundle, error) {
	manifest, raw, err := ReadManifest(dir)
	if err != nil {
		return nil, err
	}
	digest := sha256.New()
	digest.Write(raw)

	encoders := make(map[string]*predictor.LabelEncoder, len(manifest.Encoders))
	for column, labels := range manifest.Encoders {
		enc, err := predictor.NewLabelEncoder(labels)
		if err != nil {
			return nil, fmt.Errorf("encoder %s: %w", column, err)
		}
		encoders[column] = enc
	}
	scaler, err := predictor.NewStandardScaler(manifest.Scaler.Mean, manifest.Scaler.Scale)
	if err != nil {
		return nil, fmt.Errorf("scaler: %w", err)
	}
	schema := predictor.NewSchema(manifest.Columns, encoders, scaler)
	if err := schema.Validate(); err != nil {
		return nil, err
	}

	refs, err := modelRefs(manifest.Models)
	if err != nil {
		return nil, err
	}

	members := make([]predictor.Member, 0, len(models.RiskCategories))
	infos := make([]models.ModelInfo, 0, len(models.RiskCategories))
	for _, category := range models.RiskCategories {
		artifact, content, err := readModel(dir, refs[category])
		if err != nil {
			return nil, fmt.Errorf("%s model: %w", category, err)
		}
		digest.Write(content)

		if !sameColumns(artifact.Model.FeatureNames, manifest.Columns) {
			return nil, predictor.SchemaMismatchError{
				Reason: fmt.Sprintf("%s model was trained on %v, bundle columns are %v", category, artifact.Model.FeatureNames, manifest.Columns),
			}
		}
		model, err := linear.NewModel(artifact.Model.Type, artifact.Model.Weights)
		if err != nil {
			return nil, fmt.Errorf("%s model: %w", category, err)
		}
		if model.Width() != schema.Width() {
			return nil, predictor.SchemaMismatchError{
				Reason: fmt.Sprintf("%s model has %d coefficients for %d columns", category, model.Width(), schema.Width()),
			}
		}

		members = append(members, predictor.Member{Category: category, Model: model})
		infos = append(infos, models.ModelInfo{
			Category:  category,
			Type:      model.Kind,
			Algorithm: artifact.Model.Algorithm,
			Features:  model.Width(),
		})
	}

	ensemble, err := predictor.NewEnsemble(members...)
	if err != nil {
		return nil, err
	}
	return predictor.NewBundle(schema, ensemble, models.BundleInfo{
		Version:  manifest.Version,
		Checksum: hex.EncodeToString(digest.Sum(nil)),
		Columns:  schema.Columns(),
		Models:   infos,
		LoadedAt: time.Now().UTC(),
	})
}

// modelRefs requires exactly one model file for each risk category.
func modelRefs(refs []ModelRef) (map[string]string, error) {
	known := make(map[string]struct{}, len(models.RiskCategories))
	for _, category := range models.RiskCategories {
		known[category] = struct{}{}
	}
	out := make(map[string]string, len(refs))
	for _, ref := range refs {
		if _, ok := known[ref.Category]; !ok {
			return nil, fmt.Errorf("unknown risk category %q", ref.Category)
		}
		if _, dup := out[ref.Category]; dup {
			return nil, fmt.Errorf("risk category %q listed twice", ref.Category)
		}
		out[ref.Category] = ref.File
	}
	var missing []string
	for category := range known {
		if _, ok := out[category]; !ok {
			missing = append(missing, category)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("no model for %s", strings.Join(missing, ", "))
	}
	return out, nil
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
