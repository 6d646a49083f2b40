package model

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/Brownie44l1/leaf-api/internal/config"
	"github.com/Brownie44l1/leaf-api/internal/preprocess"
)

// Registry owns the ONNX environment and every loaded model. It is built once
// at startup and shared read-only by all requests.
type Registry struct {
	Gatekeeper *LabelClassifier
	Diseases   []*DiseaseClassifier

	GatekeeperMetadata Metadata
	DiseaseLayout      preprocess.Layout
	DiseaseImageSize   int

	// Load failures, kept so the caller can decide how to degrade.
	GatekeeperErr error
	DiseaseErr    error

	sessions []*Session
}

// Load initializes onnxruntime and loads the gatekeeper and the three
// disease classifiers. Individual model failures are recorded on the
// registry; only an environment failure is returned as an error.
func Load(cfg config.ModelsConfig, classes int) (*Registry, error) {
	if cfg.SharedLibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.SharedLibraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}

	r := &Registry{}
	r.loadGatekeeper(cfg)
	r.loadDiseases(cfg, classes)
	return r, nil
}

func (r *Registry) loadGatekeeper(cfg config.ModelsConfig) {
	modelPath := filepath.Join(cfg.Dir, cfg.Gatekeeper)
	log.Info().Str("path", modelPath).Msg("loading gatekeeper model")

	session, err := r.open(modelPath, cfg.PoolSize)
	if err != nil {
		r.GatekeeperErr = err
		log.Error().Err(err).Msg("gatekeeper model unavailable")
		return
	}

	labels, err := LoadLabels(filepath.Join(cfg.Dir, cfg.GatekeeperLabels))
	if err != nil {
		r.GatekeeperErr = err
		log.Error().Err(err).Msg("gatekeeper labels unavailable")
		return
	}
	if len(labels) != session.Metadata.OutputSize() {
		r.GatekeeperErr = fmt.Errorf("gatekeeper has %d outputs but %d labels",
			session.Metadata.OutputSize(), len(labels))
		log.Error().Err(r.GatekeeperErr).Msg("gatekeeper labels mismatch")
		return
	}

	r.Gatekeeper = NewLabelClassifier(session, labels)
	r.GatekeeperMetadata = session.Metadata
	log.Info().Int("labels", len(labels)).Msg("gatekeeper model loaded")
}

func (r *Registry) loadDiseases(cfg config.ModelsConfig, classes int) {
	files := []struct {
		name string
		file string
	}{
		{"MobileNetV2", cfg.MobileNet},
		{"EfficientNetV2M", cfg.EfficientNet},
		{"ResNet101", cfg.ResNet},
	}

	var loaded []*DiseaseClassifier
	for _, f := range files {
		modelPath := filepath.Join(cfg.Dir, f.file)
		log.Info().Str("model", f.name).Str("path", modelPath).Msg("loading disease model")

		session, err := r.open(modelPath, cfg.PoolSize)
		if err != nil {
			r.DiseaseErr = fmt.Errorf("%s: %w", f.name, err)
			log.Error().Err(err).Str("model", f.name).Msg("disease model unavailable")
			return
		}
		meta := session.Metadata
		if meta.OutputSize() != classes {
			r.DiseaseErr = fmt.Errorf("%s has %d outputs, taxonomy has %d classes", f.name, meta.OutputSize(), classes)
			log.Error().Err(r.DiseaseErr).Msg("disease model mismatch")
			return
		}
		if r.DiseaseLayout == "" {
			r.DiseaseLayout, r.DiseaseImageSize = meta.Layout, meta.ImageSize
		} else if meta.Layout != r.DiseaseLayout || meta.ImageSize != r.DiseaseImageSize {
			r.DiseaseErr = fmt.Errorf("%s expects %s/%d input, ensemble uses %s/%d",
				f.name, meta.Layout, meta.ImageSize, r.DiseaseLayout, r.DiseaseImageSize)
			log.Error().Err(r.DiseaseErr).Msg("disease models disagree on input")
			return
		}
		loaded = append(loaded, NewDiseaseClassifier(f.name, session, meta.Layout))
	}

	r.Diseases = loaded
	log.Info().Int("models", len(loaded)).Msg("disease models loaded")
}

// open loads <model>.onnx together with its <model>.json metadata.
func (r *Registry) open(modelPath string, poolSize int) (*Session, error) {
	metadataPath := strings.TrimSuffix(modelPath, filepath.Ext(modelPath)) + ".json"
	metadata, err := LoadMetadata(metadataPath)
	if err != nil {
		return nil, err
	}
	if metadata.Name == "" {
		metadata.Name = filepath.Base(modelPath)
	}

	session, err := NewSession(modelPath, metadata, poolSize)
	if err != nil {
		return nil, err
	}
	r.sessions = append(r.sessions, session)
	return session, nil
}

func (r *Registry) Close() {
	for _, s := range r.sessions {
		s.Close()
	}
	r.sessions = nil
	ort.DestroyEnvironment()
}
