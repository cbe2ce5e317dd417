package steps

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"coursepipe/internal/fileutil"
	"coursepipe/internal/logging"
	"coursepipe/internal/services"
	"coursepipe/internal/stage"
	"coursepipe/internal/tasks"
	"coursepipe/internal/textutil"
	"coursepipe/internal/workspace"
)

const (
	manifestFileName = "course_manifest.json"
	lessonFileName   = "lesson.json"

	lessonStatusReady      = "ready"
	lessonStatusProcessing = "processing"
)

// Package assembles the distributable course package and its zip archive.
type Package struct {
	logger *slog.Logger
}

func (p *Package) Step() tasks.Step { return tasks.StepPackage }

func (p *Package) Execute(_ context.Context, req stage.Request) (stage.Result, error) {
	step := string(tasks.StepPackage)
	packageDir := req.Workspace.PackageDir()
	lessonsDir := filepath.Join(packageDir, "lessons")
	// Lessons are rebuilt from scratch so removed media never lingers.
	if err := os.RemoveAll(lessonsDir); err != nil {
		return stage.Result{}, services.StepError(step, "", "reset package lessons", err)
	}
	if err := os.MkdirAll(lessonsDir, 0o755); err != nil {
		return stage.Result{}, services.StepError(step, "", "create package lessons", err)
	}

	lessonStatus := lessonStatusProcessing
	if upstreamComplete(req.Task) {
		lessonStatus = lessonStatusReady
	}

	var result stage.Result
	manifest := CourseManifest{
		SchemaVersion: CourseManifestSchemaVersion,
		CourseID:      req.Task.CourseID,
		Title:         ResolveTitle(req.Task, packageDir),
		Lessons:       make([]ManifestLesson, 0, len(req.Task.LessonKeys)),
	}
	for _, key := range req.Task.LessonKeys {
		lesson, err := buildLesson(req.Workspace, key, filepath.Join(lessonsDir, key))
		if err != nil {
			return stage.Result{}, services.StepError(step, "", "package lesson "+key, err)
		}
		lessonPath := filepath.Join(lessonsDir, key, lessonFileName)
		if err := fileutil.WriteJSONAtomic(lessonPath, lesson); err != nil {
			return stage.Result{}, services.StepError(step, "", "write lesson.json "+key, err)
		}
		manifest.Lessons = append(manifest.Lessons, ManifestLesson{
			LessonID: key,
			Path:     "lessons/" + key + "/" + lessonFileName,
			Status:   lessonStatus,
		})
		result.Lessons = append(result.Lessons, stage.LessonOutcome{
			LessonID:  key,
			Source:    stage.SourcePackaged,
			Artifacts: map[string]string{"lesson": lessonPath},
			Sentences: len(lesson.Sentences),
		})
	}
	manifest.LessonCount = len(manifest.Lessons)

	manifestPath := filepath.Join(packageDir, manifestFileName)
	if err := fileutil.WriteJSONAtomic(manifestPath, manifest); err != nil {
		return stage.Result{}, services.StepError(step, "", "write course manifest", err)
	}
	zipPath, err := BuildPackageZip(req.Workspace, req.Task.CourseID)
	if err != nil {
		return stage.Result{}, services.StepError(step, "", "build package zip", err)
	}
	p.logger.Info("course packaged",
		logging.String(logging.FieldCourseID, req.Task.CourseID),
		logging.Int("lessons", manifest.LessonCount),
		logging.String("zip", zipPath),
	)
	result.Extra = map[string]any{
		"package_dir": packageDir,
		"manifest":    manifestPath,
		"zip":         zipPath,
	}
	return result, nil
}

// BuildPackageZip archives the task's package directory into
// <workspace>/<course_id>.zip. The package must already carry a course manifest.
func BuildPackageZip(layout workspace.Layout, courseID string) (string, error) {
	packageDir := layout.PackageDir()
	if !fileutil.Exists(filepath.Join(packageDir, manifestFileName)) {
		return "", fmt.Errorf("package %s has no %s", packageDir, manifestFileName)
	}
	zipPath := layout.ZipPath(courseID)
	if err := fileutil.ZipDir(packageDir, zipPath); err != nil {
		return "", err
	}
	return zipPath, nil
}

// upstreamComplete reports whether every step before package is done.
func upstreamComplete(task *tasks.Task) bool {
	for _, step := range tasks.StepOrder {
		if step == tasks.StepPackage {
			continue
		}
		if task.StateOf(step) != tasks.StateDone {
			return false
		}
	}
	return true
}

func buildLesson(layout workspace.Layout, key, dst string) (Lesson, error) {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return Lesson{}, err
	}
	src := layout.ArtifactsDir(key)
	for _, name := range []string{mediaMP4, mediaMP3, subtitleEN, subtitleZH} {
		from := filepath.Join(src, name)
		if !fileutil.Exists(from) {
			continue
		}
		if err := fileutil.CopyFileVerified(from, filepath.Join(dst, name)); err != nil {
			return Lesson{}, err
		}
	}

	translation, _, err := loadTranslateEffective(layout, key)
	if err != nil {
		return Lesson{}, err
	}
	var grammar GrammarResult
	if path := layout.HITLPaths(key, string(tasks.StepGrammar)).Effective; fileutil.Exists(path) {
		if err := fileutil.ReadJSON(path, &grammar); err != nil {
			return Lesson{}, err
		}
	}
	summary := SummaryResult{Summary: textutil.PendingMarker, GrammarHighlights: []string{textutil.PendingMarker}}
	if path := layout.HITLPaths(key, string(tasks.StepSummarize)).Effective; fileutil.Exists(path) {
		if err := fileutil.ReadJSON(path, &summary); err != nil {
			return Lesson{}, err
		}
	}

	order, _ := strconv.Atoi(key)
	lesson := Lesson{
		LessonID:          key,
		Order:             order,
		Title:             "Lesson " + key,
		Media:             LessonMedia{Type: "audio", Path: mediaMP3},
		Summary:           summary.Summary,
		GrammarHighlights: summary.GrammarHighlights,
		Sentences:         mergeSentences(key, translation.Sentences, grammar.Sentences),
	}
	if fileutil.Exists(filepath.Join(dst, mediaMP4)) {
		lesson.Media = LessonMedia{Type: "video", Path: mediaMP4}
	}
	if fileutil.Exists(filepath.Join(dst, subtitleEN)) {
		lesson.Subtitles.EN = subtitleEN
	}
	if fileutil.Exists(filepath.Join(dst, subtitleZH)) {
		lesson.Subtitles.ZH = subtitleZH
	}
	if lesson.GrammarHighlights == nil {
		lesson.GrammarHighlights = []string{}
	}
	return lesson, nil
}

func pendingGrammar() Grammar {
	return Grammar{Pattern: textutil.PendingMarker, Points: []string{textutil.PendingMarker}, Difficulty: difficultyBasic}
}

func pendingUsage() Usage {
	return Usage{Scene: textutil.PendingMarker, Tone: "neutral", Formality: "informal", Alternatives: []string{}}
}

// mergeSentences joins translated sentences with their grammar annotations.
// A lesson with nothing translated ships a single placeholder sentence.
func mergeSentences(key string, translated []Sentence, annotated []GrammarSentence) []LessonSentence {
	byID := make(map[string]GrammarSentence, len(annotated))
	for _, a := range annotated {
		if a.SentenceID != "" {
			byID[a.SentenceID] = a
		}
	}

	out := make([]LessonSentence, 0, len(translated))
	for i, s := range translated {
		id := s.SentenceID
		if id == "" {
			id = sentenceID(key, i+1)
		}
		grammar, usage := pendingGrammar(), pendingUsage()
		if a, ok := byID[id]; ok {
			grammar, usage = a.Grammar, a.Usage
			if grammar.Difficulty == "" {
				grammar.Difficulty = difficultyBasic
			}
			if grammar.Points == nil {
				grammar.Points = []string{}
			}
			if usage.Alternatives == nil {
				usage.Alternatives = []string{}
			}
		}
		out = append(out, LessonSentence{
			SentenceID: id,
			StartMS:    s.StartMS,
			EndMS:      s.EndMS,
			EN:         s.EN,
			ZH:         s.ZH,
			IPA:        s.IPA,
			Grammar:    grammar,
			Usage:      usage,
			Status: SentenceStatus{
				TranslationReady: !textutil.IsPendingText(s.ZH),
				IPAReady:         !textutil.IsPendingIPA(s.IPA),
				GrammarReady:     grammar.Pattern != textutil.PendingMarker,
				UsageReady:       usage.Scene != textutil.PendingMarker,
			},
		})
	}
	if len(out) == 0 {
		out = append(out, LessonSentence{
			SentenceID: sentenceID(key, 1),
			StartMS:    0,
			EndMS:      placeholderEndMS,
			EN:         "[Pending]",
			ZH:         "[待补充]",
			IPA:        textutil.PendingMarker,
			Grammar:    pendingGrammar(),
			Usage:      pendingUsage(),
		})
	}
	return out
}
