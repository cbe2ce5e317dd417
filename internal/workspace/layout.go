package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"coursepipe/internal/fileutil"
)

// Layout resolves paths inside one task workspace.
type Layout struct {
	root string
}

// New returns the layout for taskID under tasksDir.
func New(tasksDir, taskID string) Layout {
	return Layout{root: filepath.Join(tasksDir, taskID)}
}

// Root returns the task workspace directory.
func (l Layout) Root() string {
	return l.root
}

// Ensure creates the workspace directories.
func (l Layout) Ensure() error {
	for _, dir := range []string{l.root, l.ArtifactsRoot(), l.HITLDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ensure workspace %s: %w", dir, err)
		}
	}
	return nil
}

// ArtifactsRoot returns the directory holding per-lesson artifacts.
func (l Layout) ArtifactsRoot() string {
	return filepath.Join(l.root, "artifacts")
}

// ArtifactsDir returns the artifact directory for lesson key.
func (l Layout) ArtifactsDir(key string) string {
	return filepath.Join(l.ArtifactsRoot(), key)
}

// HITLDir returns the directory holding HITL triples.
func (l Layout) HITLDir() string {
	return filepath.Join(l.root, "hitl")
}

// PackageDir returns the packaged course tree root.
func (l Layout) PackageDir() string {
	return filepath.Join(l.root, "package")
}

// ZipPath returns the archive path for courseID.
func (l Layout) ZipPath(courseID string) string {
	return filepath.Join(l.root, courseID+".zip")
}

// StepOutputPath returns the execution record path for step.
func (l Layout) StepOutputPath(step string) string {
	return filepath.Join(l.root, "output_"+step+".json")
}

// HITL names the three artifacts of a gated step for one lesson.
type HITL struct {
	Input     string
	Override  string
	Effective string
}

// HITLPaths returns the triple for lesson key and step.
func (l Layout) HITLPaths(key, step string) HITL {
	prefix := filepath.Join(l.HITLDir(), key+"_"+step)
	return HITL{
		Input:     prefix + "_input.json",
		Override:  prefix + "_output.json",
		Effective: prefix + "_effective.json",
	}
}

// HasOverride reports whether an operator override exists.
func (h HITL) HasOverride() bool {
	return fileutil.Exists(h.Override)
}

// StepRecord is the execution record written after a successful step run.
type StepRecord struct {
	TaskID      string    `json:"task_id"`
	Step        string    `json:"step"`
	HITL        bool      `json:"hitl"`
	GeneratedAt time.Time `json:"generated_at"`
	Payload     any       `json:"payload"`
}

// WriteStepRecord persists record, replacing any earlier run of the step.
func (l Layout) WriteStepRecord(record StepRecord) (string, error) {
	if strings.TrimSpace(record.Step) == "" {
		return "", fmt.Errorf("write step record: step required")
	}
	if record.GeneratedAt.IsZero() {
		record.GeneratedAt = time.Now().UTC()
	}
	path := l.StepOutputPath(record.Step)
	if err := fileutil.WriteJSONAtomic(path, record); err != nil {
		return "", fmt.Errorf("write step record: %w", err)
	}
	return path, nil
}

// ReadStepRecord loads the record for step into record. Payload decodes
// into whatever record.Payload points at.
func (l Layout) ReadStepRecord(step string, record *StepRecord) error {
	return fileutil.ReadJSON(l.StepOutputPath(step), record)
}
