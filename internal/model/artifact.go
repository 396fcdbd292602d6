package model

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/mounikasaka1/hackai/internal/domain"
	"github.com/mounikasaka1/hackai/internal/features"
)

// FormatVersion is bumped whenever the on-disk layout changes.
const FormatVersion = 1

// Artifact file names inside the artifact directory.
const (
	ModelFile     = "model.json.gz"
	EncodingsFile = "encodings.json"
)

// Artifact is a trained vectorizer plus model, immutable after load.
type Artifact struct {
	Version    string
	CreatedAt  time.Time
	Params     Params
	Vectorizer *features.Vectorizer
	Model      *MultiLabel
}

type modelFile struct {
	ArtifactVersion string               `json:"artifact_version"`
	FormatVersion   int                  `json:"format_version"`
	CreatedAt       time.Time            `json:"created_at"`
	Params          Params               `json:"params"`
	Vectorizer      *features.Vectorizer `json:"vectorizer"`
	Model           *MultiLabel          `json:"model"`
}

type encodingsFile struct {
	ArtifactVersion string                    `json:"artifact_version"`
	FormatVersion   int                       `json:"format_version"`
	Encodings       map[string]*LabelEncoding `json:"encodings"`
}

// NewArtifact stamps a freshly trained model with a new version.
func NewArtifact(vec *features.Vectorizer, m *MultiLabel, params Params) *Artifact {
	return &Artifact{
		Version:    uuid.NewString(),
		CreatedAt:  time.Now().UTC(),
		Params:     params,
		Vectorizer: vec,
		Model:      m,
	}
}

// Predict vectorizes text and runs the multi-target model.
func (a *Artifact) Predict(text string) (Prediction, error) {
	return a.Model.Predict(a.Vectorizer.Transform(text))
}

// Save writes the artifact into dir. Files are written to a sibling temp
// directory that replaces dir with a rename, so dir never holds a partially
// written artifact.
func (a *Artifact) Save(dir string) error {
	parent := filepath.Dir(filepath.Clean(dir))
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("create artifact parent: %w", err)
	}
	tmp, err := os.MkdirTemp(parent, ".artifact-*")
	if err != nil {
		return fmt.Errorf("create temp artifact dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(tmp) }()

	if err := a.writeModel(filepath.Join(tmp, ModelFile)); err != nil {
		return err
	}
	if err := a.writeEncodings(filepath.Join(tmp, EncodingsFile)); err != nil {
		return err
	}

	return publish(tmp, dir)
}

// rename is swapped in tests.
var rename = os.Rename

// publish moves staged into place at dir. A previous artifact is renamed
// aside and only removed once staged is in place; if the final rename
// fails it is moved back.
func publish(staged, dir string) error {
	prev := staged + ".prev"
	hadPrev := false
	if _, err := os.Stat(dir); err == nil {
		if err = rename(dir, prev); err != nil {
			return fmt.Errorf("move previous artifact aside: %w", err)
		}
		hadPrev = true
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat artifact dir: %w", err)
	}

	if err := rename(staged, dir); err != nil {
		if hadPrev {
			if rerr := rename(prev, dir); rerr != nil {
				return fmt.Errorf("publish artifact: %w (restore previous: %v)", err, rerr)
			}
		}
		return fmt.Errorf("publish artifact: %w", err)
	}

	if hadPrev {
		_ = os.RemoveAll(prev)
	}
	return nil
}

func (a *Artifact) writeModel(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", ModelFile, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	zw := gzip.NewWriter(f)
	if err := json.NewEncoder(zw).Encode(modelFile{
		ArtifactVersion: a.Version,
		FormatVersion:   FormatVersion,
		CreatedAt:       a.CreatedAt,
		Params:          a.Params,
		Vectorizer:      a.Vectorizer,
		Model:           a.Model,
	}); err != nil {
		return fmt.Errorf("encode %s: %w", ModelFile, err)
	}
	return zw.Close()
}

func (a *Artifact) writeEncodings(path string) error {
	data, err := json.MarshalIndent(encodingsFile{
		ArtifactVersion: a.Version,
		FormatVersion:   FormatVersion,
		Encodings:       a.Model.Encodings,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", EncodingsFile, err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Load reads an artifact directory. Every failure is a *domain.ModelLoadError.
func Load(dir string) (*Artifact, error) {
	var mf modelFile
	if err := readModel(filepath.Join(dir, ModelFile), &mf); err != nil {
		return nil, loadError(dir, ModelFile, err)
	}

	var ef encodingsFile
	data, err := os.ReadFile(filepath.Join(dir, EncodingsFile))
	if err != nil {
		return nil, loadError(dir, EncodingsFile, err)
	}
	if err := json.Unmarshal(data, &ef); err != nil {
		return nil, loadError(dir, EncodingsFile, err)
	}

	switch {
	case mf.FormatVersion != FormatVersion:
		return nil, &domain.ModelLoadError{Path: dir,
			Reason: fmt.Sprintf("format version %d, expected %d", mf.FormatVersion, FormatVersion)}
	case ef.FormatVersion != mf.FormatVersion:
		return nil, &domain.ModelLoadError{Path: dir,
			Reason: fmt.Sprintf("encodings format version %d does not match model %d", ef.FormatVersion, mf.FormatVersion)}
	case ef.ArtifactVersion != mf.ArtifactVersion:
		return nil, &domain.ModelLoadError{Path: dir,
			Reason: fmt.Sprintf("encodings version %q does not match model %q", ef.ArtifactVersion, mf.ArtifactVersion)}
	case mf.Vectorizer == nil || mf.Model == nil:
		return nil, &domain.ModelLoadError{Path: dir, Reason: "model file is incomplete"}
	}

	for _, target := range []string{TargetIncidentType, TargetEmotionalState, TargetPotentialCrime} {
		if _, ok := ef.Encodings[target]; !ok {
			return nil, &domain.ModelLoadError{Path: dir, Reason: "missing encoding for " + target}
		}
	}
	mf.Model.Encodings = ef.Encodings

	return &Artifact{
		Version:    mf.ArtifactVersion,
		CreatedAt:  mf.CreatedAt,
		Params:     mf.Params,
		Vectorizer: mf.Vectorizer,
		Model:      mf.Model,
	}, nil
}

func readModel(path string, out *modelFile) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer zr.Close()

	return json.NewDecoder(zr).Decode(out)
}

func loadError(dir, file string, err error) error {
	reason := "read " + file
	if errors.Is(err, fs.ErrNotExist) {
		reason = file + " not found"
	}
	return &domain.ModelLoadError{Path: dir, Reason: reason, Err: err}
}
