package steps

import (
	"context"
	"log/slog"

	"coursepipe/internal/logging"
	"coursepipe/internal/services"
	"coursepipe/internal/stage"
	"coursepipe/internal/tasks"
	"coursepipe/internal/workspace"
)

// requireTranslation loads the translate effective output every downstream
// gated step reads from.
func requireTranslation(step string, layout workspace.Layout, key string) (TranslateResult, error) {
	doc, ok, err := loadTranslateEffective(layout, key)
	if err != nil {
		return doc, services.StepError(step, "", "read translate effective "+key, err)
	}
	if !ok {
		return doc, services.StepError(step, services.CodeMissingTranslateEffective, "missing_translate_effective:"+key, nil)
	}
	return doc, nil
}

// GrammarStep annotates each translated sentence with grammar and usage notes.
type GrammarStep struct {
	logger *slog.Logger
}

func (g *GrammarStep) Step() tasks.Step { return tasks.StepGrammar }

func (g *GrammarStep) Execute(_ context.Context, req stage.Request) (stage.Result, error) {
	step := string(tasks.StepGrammar)
	var result stage.Result
	for _, key := range req.Task.LessonKeys {
		translation, err := requireTranslation(step, req.Workspace, key)
		if err != nil {
			return stage.Result{}, err
		}
		paths := req.Workspace.HITLPaths(key, step)
		input := GrammarInput{LessonID: key, Sentences: make([]GrammarInputSentence, 0, len(translation.Sentences))}
		for _, s := range translation.Sentences {
			input.Sentences = append(input.Sentences, GrammarInputSentence{SentenceID: s.SentenceID, EN: s.EN, ZH: s.ZH})
		}
		if err := writeHITL(paths.Input, input); err != nil {
			return stage.Result{}, services.StepError(step, "", "write grammar input "+key, err)
		}

		override, hasOverride, err := readOverride[GrammarResult](paths)
		if err != nil {
			return stage.Result{}, services.StepError(step, "", "grammar override "+key, err)
		}
		effective := GrammarResult{LessonID: key}
		if hasOverride {
			effective.Sentences = override.Sentences
			effective.Source = stage.SourceHITLOverride
		} else {
			effective.Source = stage.SourceAutoGenerated
			effective.Sentences = make([]GrammarSentence, 0, len(input.Sentences))
			for _, s := range input.Sentences {
				effective.Sentences = append(effective.Sentences, GrammarSentence{
					SentenceID: s.SentenceID,
					Grammar:    inferGrammar(s.EN),
					Usage:      inferUsage(s.EN, s.ZH),
				})
			}
		}
		if effective.Sentences == nil {
			effective.Sentences = []GrammarSentence{}
		}
		if err := writeHITL(paths.Effective, effective); err != nil {
			return stage.Result{}, services.StepError(step, "", "write grammar effective "+key, err)
		}
		g.logger.Debug("grammar annotated",
			logging.String(logging.FieldLessonKey, key),
			logging.String("source", string(effective.Source)),
		)
		result.Lessons = append(result.Lessons, stage.LessonOutcome{
			LessonID:  key,
			Source:    effective.Source,
			Artifacts: map[string]string{"input": paths.Input, "effective": paths.Effective},
			Sentences: len(effective.Sentences),
		})
	}
	return result, nil
}

// Summarize writes a lesson summary and grammar highlights.
type Summarize struct {
	logger *slog.Logger
}

func (s *Summarize) Step() tasks.Step { return tasks.StepSummarize }

func (s *Summarize) Execute(_ context.Context, req stage.Request) (stage.Result, error) {
	step := string(tasks.StepSummarize)
	var result stage.Result
	for _, key := range req.Task.LessonKeys {
		translation, err := requireTranslation(step, req.Workspace, key)
		if err != nil {
			return stage.Result{}, err
		}
		paths := req.Workspace.HITLPaths(key, step)
		input := SummaryInput{LessonID: key, Sentences: translation.Sentences}
		if input.Sentences == nil {
			input.Sentences = []Sentence{}
		}
		if err := writeHITL(paths.Input, input); err != nil {
			return stage.Result{}, services.StepError(step, "", "write summary input "+key, err)
		}

		override, hasOverride, err := readOverride[SummaryResult](paths)
		if err != nil {
			return stage.Result{}, services.StepError(step, "", "summary override "+key, err)
		}
		var effective SummaryResult
		if hasOverride {
			effective = override
			effective.Source = stage.SourceHITLOverride
		} else {
			summary, highlights := summarize(input.Sentences)
			effective = SummaryResult{Summary: summary, GrammarHighlights: highlights, Source: stage.SourceAutoGenerated}
		}
		effective.LessonID = key
		if effective.GrammarHighlights == nil {
			effective.GrammarHighlights = []string{}
		}
		if err := writeHITL(paths.Effective, effective); err != nil {
			return stage.Result{}, services.StepError(step, "", "write summary effective "+key, err)
		}
		s.logger.Debug("lesson summarized",
			logging.String(logging.FieldLessonKey, key),
			logging.String("source", string(effective.Source)),
		)
		result.Lessons = append(result.Lessons, stage.LessonOutcome{
			LessonID:  key,
			Source:    effective.Source,
			Artifacts: map[string]string{"input": paths.Input, "effective": paths.Effective},
		})
	}
	return result, nil
}
