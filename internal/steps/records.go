package steps

import "coursepipe/internal/stage"

// TranslateInputSentence is one subtitle line offered for translation.
type TranslateInputSentence struct {
	SentenceID string `json:"sentence_id"`
	StartMS    int64  `json:"start_ms"`
	EndMS      int64  `json:"end_ms"`
	EN         string `json:"en"`
	ZH         string `json:"zh"`
}

// TranslateInput is the translate step input snapshot for one lesson.
type TranslateInput struct {
	LessonID  string                   `json:"lesson_id"`
	Sentences []TranslateInputSentence `json:"sentences"`
}

// Sentence is a translated subtitle line with its IPA transcription.
type Sentence struct {
	SentenceID string `json:"sentence_id"`
	StartMS    int64  `json:"start_ms"`
	EndMS      int64  `json:"end_ms"`
	EN         string `json:"en"`
	ZH         string `json:"zh"`
	IPA        string `json:"ipa"`
}

// TranslateResult is the translate override and effective shape.
type TranslateResult struct {
	LessonID  string       `json:"lesson_id"`
	Sentences []Sentence   `json:"sentences"`
	Source    stage.Source `json:"source,omitempty"`
}

// GrammarInputSentence is one sentence offered for grammar annotation.
type GrammarInputSentence struct {
	SentenceID string `json:"sentence_id"`
	EN         string `json:"en"`
	ZH         string `json:"zh"`
}

// GrammarInput is the grammar step input snapshot for one lesson.
type GrammarInput struct {
	LessonID  string                 `json:"lesson_id"`
	Sentences []GrammarInputSentence `json:"sentences"`
}

// Grammar describes the structure of a sentence.
type Grammar struct {
	Pattern    string   `json:"pattern"`
	Points     []string `json:"points"`
	Difficulty string   `json:"difficulty,omitempty"`
}

// Usage describes when and how a sentence is used.
type Usage struct {
	Scene        string   `json:"scene"`
	Tone         string   `json:"tone"`
	Formality    string   `json:"formality"`
	Alternatives []string `json:"alternatives"`
	Caution      string   `json:"caution"`
}

// GrammarSentence annotates one sentence.
type GrammarSentence struct {
	SentenceID string  `json:"sentence_id"`
	Grammar    Grammar `json:"grammar"`
	Usage      Usage   `json:"usage"`
}

// GrammarResult is the grammar override and effective shape.
type GrammarResult struct {
	LessonID  string            `json:"lesson_id"`
	Sentences []GrammarSentence `json:"sentences"`
	Source    stage.Source      `json:"source,omitempty"`
}

// SummaryInput is the summarize step input snapshot for one lesson.
type SummaryInput struct {
	LessonID  string     `json:"lesson_id"`
	Sentences []Sentence `json:"sentences"`
}

// SummaryResult is the summarize override and effective shape.
type SummaryResult struct {
	LessonID          string       `json:"lesson_id"`
	Summary           string       `json:"summary"`
	GrammarHighlights []string     `json:"grammar_highlights"`
	Source            stage.Source `json:"source,omitempty"`
}

// SentenceStatus flags which enrichments of a packaged sentence are real.
type SentenceStatus struct {
	TranslationReady bool `json:"translation_ready"`
	IPAReady         bool `json:"ipa_ready"`
	GrammarReady     bool `json:"grammar_ready"`
	UsageReady       bool `json:"usage_ready"`
}

// LessonSentence is one sentence as shipped in lesson.json.
type LessonSentence struct {
	SentenceID string         `json:"sentence_id"`
	StartMS    int64          `json:"start_ms"`
	EndMS      int64          `json:"end_ms"`
	EN         string         `json:"en"`
	ZH         string         `json:"zh"`
	IPA        string         `json:"ipa"`
	Grammar    Grammar        `json:"grammar"`
	Usage      Usage          `json:"usage"`
	Status     SentenceStatus `json:"status"`
}

// LessonMedia points at the lesson media file.
type LessonMedia struct {
	Type string `json:"type"`
	Path string `json:"path"`
}

// LessonSubtitles points at the lesson subtitle files. Empty means absent.
type LessonSubtitles struct {
	EN string `json:"en"`
	ZH string `json:"zh"`
}

// Lesson is the packaged lesson.json document.
type Lesson struct {
	LessonID          string           `json:"lesson_id"`
	Order             int              `json:"order"`
	Title             string           `json:"title"`
	Media             LessonMedia      `json:"media"`
	Subtitles         LessonSubtitles  `json:"subtitles"`
	Summary           string           `json:"summary"`
	GrammarHighlights []string         `json:"grammar_highlights"`
	Sentences         []LessonSentence `json:"sentences"`
}

// ManifestLesson is one entry of course_manifest.json.
type ManifestLesson struct {
	LessonID string `json:"lesson_id"`
	Path     string `json:"path"`
	Status   string `json:"status"`
}

// CourseManifest is the packaged course_manifest.json document.
type CourseManifest struct {
	SchemaVersion string           `json:"schema_version"`
	CourseID      string           `json:"course_id"`
	Title         string           `json:"title"`
	LessonCount   int              `json:"lesson_count"`
	Lessons       []ManifestLesson `json:"lessons"`
}

// CourseManifestSchemaVersion is written into every course manifest.
const CourseManifestSchemaVersion = "1.0.0"
