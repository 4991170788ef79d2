package ml

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

const (
	EnsembleFile = "crop_price_ensemble.json"
	MetadataFile = "model_metadata.json"
)

func candidateFile(name string) string {
	return strings.ToLower(name) + "_model.json"
}

func decodeModel(modelType string, payload []byte) (Regressor, error) {
	var model Regressor
	switch modelType {
	case "RandomForest", "ExtraTrees":
		model = &RandomForest{}
	case "GradientBoosting":
		model = &GradientBoosting{}
	case "Ridge":
		model = &Ridge{}
	case "Lasso", "ElasticNet":
		model = &ElasticNet{}
	case "SVR":
		model = &SVR{}
	case "Linear":
		model = &OLS{}
	default:
		return nil, fmt.Errorf("unsupported model type %q", modelType)
	}
	if err := json.Unmarshal(payload, model); err != nil {
		return nil, err
	}
	return model, nil
}

func pipelineFromArtifact(art pipelineArtifact) (*Pipeline, error) {
	model, err := decodeModel(art.ModelType, art.Model)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		ModelType:    art.ModelType,
		Preprocessor: art.Preprocessor,
		Selector:     art.Selector,
		Model:        model,
	}, nil
}

// LoadPipeline reads one persisted candidate pipeline.
func LoadPipeline(path string) (*Pipeline, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var art pipelineArtifact
	if err := json.Unmarshal(payload, &art); err != nil {
		return nil, fmt.Errorf("decode pipeline artifact: %w", err)
	}
	return pipelineFromArtifact(art)
}

// LoadEnsemble reads the serving artifact written by the trainer.
func LoadEnsemble(path string) (*VotingEnsemble, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var art ensembleArtifact
	if err := json.Unmarshal(payload, &art); err != nil {
		return nil, fmt.Errorf("decode ensemble artifact: %w", err)
	}
	ensemble := &VotingEnsemble{MemberNames: art.MemberNames}
	for _, ma := range art.Members {
		member, err := pipelineFromArtifact(ma)
		if err != nil {
			return nil, err
		}
		ensemble.Members = append(ensemble.Members, member)
	}
	return ensemble, nil
}

// LoadServingModel loads the ensemble from the model directory.
func LoadServingModel(dir string) (PriceEstimator, error) {
	return LoadEnsemble(filepath.Join(dir, EnsembleFile))
}

// LoadReport reads the training report written alongside the artifacts.
func LoadReport(dir string) (*TrainingReport, error) {
	payload, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	if err != nil {
		return nil, fmt.Errorf("read training report: %w", err)
	}
	var report TrainingReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, fmt.Errorf("decode training report: %w", err)
	}
	return &report, nil
}

// ReloadWatcher watches the model directory and hands a freshly loaded
// estimator to onSwap whenever the offline trainer rewrites the ensemble
// artifact. The swap itself is the caller's concern; the loaded artifact
// stays immutable after the handoff.
type ReloadWatcher struct {
	watcher *fsnotify.Watcher
	done    chan struct{}
}

func WatchModelDir(dir string, onSwap func(PriceEstimator), onErr func(error)) (*ReloadWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	w := &ReloadWatcher{watcher: watcher, done: make(chan struct{})}
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != EnsembleFile {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				est, err := LoadServingModel(dir)
				if err != nil {
					if onErr != nil {
						onErr(err)
					}
					continue
				}
				onSwap(est)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				if onErr != nil {
					onErr(err)
				}
			case <-w.done:
				return
			}
		}
	}()
	return w, nil
}

func (w *ReloadWatcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
