package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/synaptica-ai/cardiorisk/pkg/features"
	"github.com/synaptica-ai/cardiorisk/pkg/ml/codec"
	"github.com/synaptica-ai/cardiorisk/pkg/ml/preprocess"
)

const (
	pointerFile = "LATEST"
	runsDir     = "runs"
	modelFile   = "model.json"
	schemaFile  = "schema.json"
)

type candidateDoc struct {
	Name  string         `json:"name"`
	Model codec.Envelope `json:"model"`
}

type modelDoc struct {
	RunID       string                     `json:"run_id"`
	Pipeline    string                     `json:"pipeline"`
	CreatedAt   time.Time                  `json:"created_at"`
	Winner      string                     `json:"winner"`
	Scaler      *preprocess.StandardScaler `json:"scaler"`
	Model       codec.Envelope             `json:"model"`
	Candidates  []candidateDoc             `json:"candidates"`
	Summaries   []CandidateSummary         `json:"summaries"`
	Importances []Importance               `json:"importances,omitempty"`
	TrainRows   int                        `json:"train_rows"`
	TestRows    int                        `json:"test_rows"`
}

// Store keeps one directory per pipeline. Every run is written under
// runs/<run-id>/ and becomes current only when the LATEST pointer is
// atomically replaced with its id.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) PointerPath(pipeline string) string {
	return filepath.Join(s.dir, pipeline, pointerFile)
}

func (s *Store) RunDir(pipeline, runID string) string {
	return filepath.Join(s.dir, pipeline, runsDir, runID)
}

// Save writes the schema and model of a run and then publishes it. It
// returns the run directory.
func (s *Store) Save(a *Artifact) (string, error) {
	if a == nil || a.Schema == nil || a.Scaler == nil || a.Model == nil {
		return "", fmt.Errorf("incomplete artifact")
	}
	if a.RunID == "" || a.Pipeline == "" {
		return "", fmt.Errorf("artifact needs a run id and pipeline")
	}
	if a.Schema.RunID != a.RunID {
		return "", fmt.Errorf("schema run id %q does not match artifact run id %q", a.Schema.RunID, a.RunID)
	}

	doc := modelDoc{
		RunID:       a.RunID,
		Pipeline:    a.Pipeline,
		CreatedAt:   a.CreatedAt,
		Winner:      a.Winner,
		Scaler:      a.Scaler,
		Summaries:   a.Summaries,
		Importances: a.Importances,
		TrainRows:   a.TrainRows,
		TestRows:    a.TestRows,
	}
	env, err := codec.Encode(a.Model)
	if err != nil {
		return "", err
	}
	doc.Model = env
	for _, c := range a.Candidates {
		env, err := codec.Encode(c.Model)
		if err != nil {
			return "", fmt.Errorf("candidate %s: %w", c.Name, err)
		}
		doc.Candidates = append(doc.Candidates, candidateDoc{Name: c.Name, Model: env})
	}

	schemaBytes, err := json.MarshalIndent(a.Schema, "", "  ")
	if err != nil {
		return "", err
	}
	modelBytes, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}

	runDir := s.RunDir(a.Pipeline, a.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}
	if err := writeFileAtomic(filepath.Join(runDir, schemaFile), schemaBytes); err != nil {
		return "", fmt.Errorf("write schema: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(runDir, modelFile), modelBytes); err != nil {
		return "", fmt.Errorf("write model: %w", err)
	}
	if err := writeFileAtomic(s.PointerPath(a.Pipeline), []byte(a.RunID+"\n")); err != nil {
		return "", fmt.Errorf("publish run: %w", err)
	}
	return runDir, nil
}

// Load returns the run the pipeline's LATEST pointer names.
func (s *Store) Load(pipeline string) (*Artifact, error) {
	runID, err := s.Latest(pipeline)
	if err != nil {
		return nil, err
	}
	return s.LoadRun(pipeline, runID)
}

func (s *Store) Latest(pipeline string) (string, error) {
	pointer := s.PointerPath(pipeline)
	content, err := os.ReadFile(pointer)
	if err != nil {
		return "", missing(pointer, err)
	}
	runID := strings.TrimSpace(string(content))
	if runID == "" {
		return "", &MissingArtifactError{Path: pointer}
	}
	return runID, nil
}

// Modified reports when the pipeline's pointer last changed.
func (s *Store) Modified(pipeline string) (time.Time, error) {
	pointer := s.PointerPath(pipeline)
	info, err := os.Stat(pointer)
	if err != nil {
		return time.Time{}, missing(pointer, err)
	}
	return info.ModTime(), nil
}

func (s *Store) LoadRun(pipeline, runID string) (*Artifact, error) {
	runDir := s.RunDir(pipeline, runID)

	schemaPath := filepath.Join(runDir, schemaFile)
	schemaBytes, err := os.ReadFile(schemaPath)
	if err != nil {
		return nil, missing(schemaPath, err)
	}
	var schema features.Schema
	if err := json.Unmarshal(schemaBytes, &schema); err != nil {
		return nil, fmt.Errorf("decode %s: %w", schemaPath, err)
	}
	if err := schema.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", schemaPath, err)
	}

	modelPath := filepath.Join(runDir, modelFile)
	modelBytes, err := os.ReadFile(modelPath)
	if err != nil {
		return nil, missing(modelPath, err)
	}
	var doc modelDoc
	if err := json.Unmarshal(modelBytes, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", modelPath, err)
	}
	if doc.RunID != schema.RunID {
		return nil, fmt.Errorf("%s: model run %q paired with schema run %q", runDir, doc.RunID, schema.RunID)
	}
	if doc.Scaler == nil || len(doc.Scaler.Mean) != len(schema.Slots) {
		return nil, fmt.Errorf("%s: scaler width does not match %d schema slots", runDir, len(schema.Slots))
	}

	model, err := codec.Decode(doc.Model)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", modelPath, err)
	}
	a := &Artifact{
		RunID:       doc.RunID,
		Pipeline:    doc.Pipeline,
		CreatedAt:   doc.CreatedAt,
		Winner:      doc.Winner,
		Schema:      &schema,
		Scaler:      doc.Scaler,
		Model:       model,
		Summaries:   doc.Summaries,
		Importances: doc.Importances,
		TrainRows:   doc.TrainRows,
		TestRows:    doc.TestRows,
	}
	for _, c := range doc.Candidates {
		m, err := codec.Decode(c.Model)
		if err != nil {
			return nil, fmt.Errorf("candidate %s: %w", c.Name, err)
		}
		a.Candidates = append(a.Candidates, FittedCandidate{Name: c.Name, Model: m})
	}
	return a, nil
}

// Runs lists the stored run ids of a pipeline, oldest directory name first.
func (s *Store) Runs(pipeline string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, pipeline, runsDir))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var runs []string
	for _, e := range entries {
		if e.IsDir() {
			runs = append(runs, e.Name())
		}
	}
	sort.Strings(runs)
	return runs, nil
}

func missing(path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return &MissingArtifactError{Path: path}
	}
	return err
}

// writeFileAtomic writes data beside path and renames it into place so
// readers never observe a partial file.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return nil
}
