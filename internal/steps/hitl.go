package steps

import (
	"fmt"
	"os"
	"path/filepath"

	"coursepipe/internal/fileutil"
	"coursepipe/internal/subtitles"
	"coursepipe/internal/workspace"
)

// readOverride decodes the operator override for a gated step. ok is false
// when no override file exists.
func readOverride[T any](paths workspace.HITL) (T, bool, error) {
	var doc T
	if !paths.HasOverride() {
		return doc, false, nil
	}
	if err := fileutil.ReadJSON(paths.Override, &doc); err != nil {
		return doc, false, fmt.Errorf("read override %s: %w", filepath.Base(paths.Override), err)
	}
	return doc, true, nil
}

func writeHITL(path string, doc any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return fileutil.WriteJSONAtomic(path, doc)
}

// readSubtitle parses an SRT artifact, treating a missing file as empty.
func readSubtitle(path string) ([]subtitles.Cue, error) {
	if !fileutil.Exists(path) {
		return nil, nil
	}
	return subtitles.ParseFile(path)
}

// loadTranslateEffective returns the translate effective document for key.
func loadTranslateEffective(layout workspace.Layout, key string) (TranslateResult, bool, error) {
	var doc TranslateResult
	path := layout.HITLPaths(key, "translate").Effective
	if !fileutil.Exists(path) {
		return doc, false, nil
	}
	if err := fileutil.ReadJSON(path, &doc); err != nil {
		return doc, false, err
	}
	return doc, true, nil
}
