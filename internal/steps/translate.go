package steps

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"coursepipe/internal/fileutil"
	"coursepipe/internal/logging"
	"coursepipe/internal/services"
	"coursepipe/internal/stage"
	"coursepipe/internal/subtitles"
	"coursepipe/internal/tasks"
	"coursepipe/internal/textutil"
	"coursepipe/internal/workspace"
)

// Translate pairs English cues with Chinese text and IPA.
//
// A lesson whose effective output already has complete Chinese text is
// reused without any external call; only missing IPA is filled in.
type Translate struct {
	deps   Dependencies
	logger *slog.Logger
}

func (t *Translate) Step() tasks.Step { return tasks.StepTranslate }

func (t *Translate) Execute(ctx context.Context, req stage.Request) (stage.Result, error) {
	step := string(tasks.StepTranslate)
	total := len(req.Task.LessonKeys)
	var result stage.Result
	for idx, key := range req.Task.LessonKeys {
		lessonKey, lessonIndex := key, idx+1
		if err := req.ReportProgress(ctx, func(task *tasks.Task) {
			task.TranslateProgress = &tasks.TranslateProgress{
				CurrentLessonKey:   lessonKey,
				CurrentLessonIndex: lessonIndex,
				TotalLessons:       total,
			}
		}); err != nil {
			return stage.Result{}, fmt.Errorf("report translate progress: %w", err)
		}

		outcome, err := t.translateLesson(ctx, req.Task, req.Workspace, key)
		if err != nil {
			if _, ok := services.AsError(err); ok {
				return stage.Result{}, err
			}
			return stage.Result{}, services.StepError(step, "", "translate "+key, err)
		}
		result.Lessons = append(result.Lessons, outcome)
	}
	if err := req.ReportProgress(ctx, func(task *tasks.Task) {
		task.TranslateProgress = &tasks.TranslateProgress{
			CurrentLessonIndex: total,
			TotalLessons:       total,
		}
	}); err != nil {
		return stage.Result{}, fmt.Errorf("report translate progress: %w", err)
	}
	return result, nil
}

func (t *Translate) translateLesson(ctx context.Context, task *tasks.Task, layout workspace.Layout, key string) (stage.LessonOutcome, error) {
	step := string(tasks.StepTranslate)
	paths := layout.HITLPaths(key, step)
	dir := layout.ArtifactsDir(key)
	zhPath := filepath.Join(dir, subtitleZH)
	logger := t.logger.With(logging.String(logging.FieldLessonKey, key))

	if !paths.HasOverride() {
		existing, ok, err := loadTranslateEffective(layout, key)
		if err != nil {
			return stage.LessonOutcome{}, err
		}
		if ok && reusable(existing.Sentences) {
			if !fileutil.Exists(paths.Input) {
				if err := writeHITL(paths.Input, inputFromSentences(key, existing.Sentences)); err != nil {
					return stage.LessonOutcome{}, err
				}
			}
			if t.fillIPA(ctx, existing.Sentences) {
				if err := writeHITL(paths.Effective, existing); err != nil {
					return stage.LessonOutcome{}, err
				}
			}
			if err := writeZHSubtitle(zhPath, existing.Sentences); err != nil {
				return stage.LessonOutcome{}, err
			}
			logger.Debug("reusing translate effective output")
			return translateOutcome(key, stage.SourceReuseExisting, paths, zhPath, len(existing.Sentences)), nil
		}
	}

	enCues, err := readSubtitle(filepath.Join(dir, subtitleEN))
	if err != nil {
		return stage.LessonOutcome{}, err
	}
	zhCues, err := readSubtitle(zhPath)
	if err != nil {
		return stage.LessonOutcome{}, err
	}
	input := buildTranslateInput(key, enCues, zhCues)
	if err := writeHITL(paths.Input, input); err != nil {
		return stage.LessonOutcome{}, err
	}

	var (
		sentences []Sentence
		source    stage.Source
	)
	override, hasOverride, err := readOverride[TranslateResult](paths)
	if err != nil {
		return stage.LessonOutcome{}, err
	}
	if hasOverride {
		source = stage.SourceHITLOverride
		sentences = override.Sentences
		if len(sentences) == 0 {
			sentences = sentencesFromInput(input.Sentences)
		}
	} else {
		sentences, source, err = t.generate(ctx, key, input.Sentences)
		if err != nil {
			return stage.LessonOutcome{}, err
		}
	}
	t.fillIPA(ctx, sentences)

	effective := TranslateResult{LessonID: key, Sentences: sentences, Source: source}
	if err := writeHITL(paths.Effective, effective); err != nil {
		return stage.LessonOutcome{}, err
	}
	if err := writeZHSubtitle(zhPath, sentences); err != nil {
		return stage.LessonOutcome{}, err
	}
	logger.Info("lesson translated",
		logging.String("source", string(source)),
		logging.Int("sentences", len(sentences)),
	)
	return translateOutcome(key, source, paths, zhPath, len(sentences)), nil
}

func (t *Translate) generate(ctx context.Context, key string, items []TranslateInputSentence) ([]Sentence, stage.Source, error) {
	hasEnglish := false
	for _, item := range items {
		if !textutil.IsPendingText(item.EN) {
			hasEnglish = true
			break
		}
	}
	if !hasEnglish {
		return nil, "", services.StepError(string(tasks.StepTranslate), services.CodeASRNotReady,
			fmt.Sprintf("English subtitle for lesson %s is still a placeholder; finish transcribe first", key), nil)
	}

	var pending []int
	for i, item := range items {
		if textutil.IsPendingText(item.ZH) {
			pending = append(pending, i)
		}
	}
	translated := make(map[int]string, len(pending))
	if len(pending) > 0 && t.deps.Translator != nil {
		texts := make([]string, len(pending))
		for i, idx := range pending {
			texts[i] = items[idx].EN
		}
		for i, zh := range t.deps.Translator.BatchTranslate(ctx, texts) {
			if zh != "" {
				translated[pending[i]] = zh
			}
		}
	}

	source := stage.SourceFallback
	if len(translated) > 0 {
		source = stage.SourceMachine
	}
	sentences := make([]Sentence, len(items))
	for i, item := range items {
		zh := item.ZH
		if value, ok := translated[i]; ok {
			zh = value
		} else if textutil.IsPendingText(zh) {
			zh = textutil.UntranslatedTag + item.EN
		}
		sentences[i] = Sentence{
			SentenceID: item.SentenceID,
			StartMS:    item.StartMS,
			EndMS:      item.EndMS,
			EN:         item.EN,
			ZH:         zh,
			IPA:        textutil.PendingMarker,
		}
	}
	return sentences, source, nil
}

// fillIPA resolves pending IPA in place and reports whether anything changed.
func (t *Translate) fillIPA(ctx context.Context, sentences []Sentence) bool {
	changed := false
	for i := range sentences {
		if !textutil.IsPendingIPA(sentences[i].IPA) {
			continue
		}
		ipa := textutil.PendingMarker
		if t.deps.Phonetics != nil {
			ipa = t.deps.Phonetics.SentenceIPA(ctx, sentences[i].EN)
		}
		if ipa != sentences[i].IPA {
			sentences[i].IPA = ipa
			changed = true
		}
	}
	return changed
}

func reusable(sentences []Sentence) bool {
	if len(sentences) == 0 {
		return false
	}
	for _, s := range sentences {
		if textutil.IsPendingText(s.ZH) {
			return false
		}
	}
	return true
}

func buildTranslateInput(key string, enCues, zhCues []subtitles.Cue) TranslateInput {
	input := TranslateInput{LessonID: key, Sentences: make([]TranslateInputSentence, 0, len(enCues))}
	for i, cue := range enCues {
		zh := ""
		if i < len(zhCues) {
			zh = zhCues[i].Text
		}
		input.Sentences = append(input.Sentences, TranslateInputSentence{
			SentenceID: sentenceID(key, i+1),
			StartMS:    cue.StartMS,
			EndMS:      cue.EndMS,
			EN:         cue.Text,
			ZH:         zh,
		})
	}
	return input
}

func inputFromSentences(key string, sentences []Sentence) TranslateInput {
	input := TranslateInput{LessonID: key, Sentences: make([]TranslateInputSentence, 0, len(sentences))}
	for _, s := range sentences {
		input.Sentences = append(input.Sentences, TranslateInputSentence{
			SentenceID: s.SentenceID,
			StartMS:    s.StartMS,
			EndMS:      s.EndMS,
			EN:         s.EN,
			ZH:         s.ZH,
		})
	}
	return input
}

func sentencesFromInput(items []TranslateInputSentence) []Sentence {
	out := make([]Sentence, 0, len(items))
	for _, item := range items {
		out = append(out, Sentence{
			SentenceID: item.SentenceID,
			StartMS:    item.StartMS,
			EndMS:      item.EndMS,
			EN:         item.EN,
			ZH:         item.ZH,
		})
	}
	return out
}

func sentenceID(key string, n int) string {
	return fmt.Sprintf("%s-%04d", key, n)
}

// writeZHSubtitle keeps sub_zh.srt in step with the effective sentences.
func writeZHSubtitle(path string, sentences []Sentence) error {
	cues := make([]subtitles.Cue, 0, len(sentences))
	for _, s := range sentences {
		cues = append(cues, subtitles.Cue{StartMS: s.StartMS, EndMS: s.EndMS, Text: s.ZH})
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return subtitles.WriteFile(path, cues)
}

func translateOutcome(key string, source stage.Source, paths workspace.HITL, zhPath string, sentences int) stage.LessonOutcome {
	return stage.LessonOutcome{
		LessonID: key,
		Source:   source,
		Artifacts: map[string]string{
			"input":     paths.Input,
			"effective": paths.Effective,
			"sub_zh":    zhPath,
		},
		Sentences: sentences,
	}
}
