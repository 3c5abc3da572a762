package model

import (
	"encoding/json"
	"fmt"
	"os"
)

// Artifact is the on-disk representation of a trained model: metadata plus
// the parameters of exactly one classifier kind. Produced by the offline
// training pipeline; this package only ever reads it.
type Artifact struct {
	Metadata Metadata        `json:"metadata"`
	Kind     string          `json:"kind"` // "logistic" or "gbdt"
	Logistic *LogisticParams `json:"logistic,omitempty"`
	GBDT     *GBDTParams     `json:"gbdt,omitempty"`
}

// LoadArtifact reads and decodes a model artifact from disk. Failures wrap
// ErrModelUnavailable so callers can treat them as fatal boot errors.
func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from operator configuration
	if err != nil {
		return nil, fmt.Errorf("%w: read artifact %s: %v", ErrModelUnavailable, path, err)
	}
	var art Artifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("%w: decode artifact %s: %v", ErrModelUnavailable, path, err)
	}
	if err := art.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	return &art, nil
}

func (a *Artifact) validate() error {
	if a.Metadata.Version == "" {
		return fmt.Errorf("artifact has no model version")
	}
	if a.Metadata.SchemaFingerprint == "" {
		return fmt.Errorf("artifact has no schema fingerprint")
	}
	if len(a.Metadata.Features) == 0 {
		return fmt.Errorf("artifact has no feature list")
	}
	switch a.Kind {
	case "logistic":
		if a.Logistic == nil {
			return fmt.Errorf("logistic artifact missing parameters")
		}
		if len(a.Logistic.Coefficients) != len(a.Metadata.Features) {
			return fmt.Errorf("logistic artifact has %d coefficients for %d features",
				len(a.Logistic.Coefficients), len(a.Metadata.Features))
		}
	case "gbdt":
		if a.GBDT == nil {
			return fmt.Errorf("gbdt artifact missing parameters")
		}
	default:
		return fmt.Errorf("unknown model kind %q", a.Kind)
	}
	return nil
}
