package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"coursepipe/internal/catalog"
	"coursepipe/internal/config"
	"coursepipe/internal/logging"
	"coursepipe/internal/notifications"
	"coursepipe/internal/objectstore"
	"coursepipe/internal/services"
	"coursepipe/internal/tasks"
	"coursepipe/internal/transfer"
	"coursepipe/internal/workspace"
)

// EventTaskPublish is appended to the task event log after a publish.
const EventTaskPublish = "task.publish"

// RecordStep names the publish execution record in the task workspace.
const RecordStep = "publish"

// SelectMode returns the asset mode for a file of size bytes: a single
// object below threshold, segmented at or above it.
func SelectMode(size, threshold int64) string {
	if threshold > 0 && size >= threshold {
		return catalog.ModeSegmentedZip
	}
	return catalog.ModeZip
}

// Request describes one publish.
type Request struct {
	File     string
	CourseID string
	Title    string
	Version  string
	Tags     []string
	Cover    string
	// Prefix defaults to "<course_id>/<version>/<file name>".
	Prefix string
	// TaskID is inferred from a task_* path component of File when empty.
	TaskID         string
	CatalogPath    string
	ReplaceCatalog bool
	// CatalogVersion defaults to catalog.version.
	CatalogVersion int
	ThresholdBytes int64
	PartSizeBytes  int64
}

// Record is the publish execution record payload.
type Record struct {
	File    string                 `json:"file"`
	Mode    string                 `json:"mode"`
	Prefix  string                 `json:"prefix"`
	Entry   catalog.Entry          `json:"entry"`
	Catalog string                 `json:"catalog"`
	Upload  *transfer.UploadResult `json:"upload,omitempty"`
}

// Result is the outcome of a publish.
type Result struct {
	Record
	TaskID     string          `json:"task_id,omitempty"`
	CatalogDoc catalog.Catalog `json:"catalog_doc"`
}

// Publisher publishes packages to an object store.
type Publisher struct {
	cfg      *config.Config
	objects  objectstore.Store
	tasks    *tasks.Store
	uploader *transfer.Uploader
	notifier notifications.Service
	logger   *slog.Logger
}

// NewPublisher builds a publisher. taskStore and notifier may be nil.
func NewPublisher(cfg *config.Config, objects objectstore.Store, taskStore *tasks.Store, notifier notifications.Service, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Publisher{
		cfg:      cfg,
		objects:  objects,
		tasks:    taskStore,
		uploader: transfer.NewUploader(objects, logger),
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "publish"),
	}
}

// Publish uploads req.File, merges its catalog entry, and records the
// publish on the owning task when one is known.
func (p *Publisher) Publish(ctx context.Context, req Request) (*Result, error) {
	file, err := filepath.Abs(strings.TrimSpace(req.File))
	if err != nil || strings.TrimSpace(req.File) == "" {
		return nil, services.Errorf(services.CodeInvalidArgument, "package file required")
	}
	taskID := strings.TrimSpace(req.TaskID)
	if taskID == "" {
		taskID = InferTaskID(file)
	}
	var task *tasks.Task
	if taskID != "" && p.tasks != nil {
		if task, err = p.tasks.Get(ctx, taskID); err != nil {
			return nil, err
		}
	}

	courseID := strings.TrimSpace(req.CourseID)
	if courseID == "" && task != nil {
		courseID = task.CourseID
	}
	if courseID == "" {
		return nil, services.NewError(services.CodeInvalidArgument, "course id required")
	}
	digest, size, err := transfer.Inspect(file)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, services.Errorf(services.CodeEmptyFile, "package file is empty: %s", file)
	}

	entry := p.entry(req, courseID, task)
	prefix := objectstore.NormalizePrefix(req.Prefix, courseID+"/"+entry.Version+"/"+filepath.Base(file))
	threshold := req.ThresholdBytes
	if threshold <= 0 {
		threshold = p.cfg.SegmentThresholdBytes()
	}
	mode := SelectMode(size, threshold)
	logger := logging.WithContext(services.WithTaskID(ctx, taskID), p.logger).With(
		logging.String(logging.FieldCourseID, courseID),
	)
	logger.Info("publish started",
		logging.String(logging.FieldEventType, "publish_start"),
		logging.String("mode", mode),
		logging.Int64("size_bytes", size),
		logging.String("prefix", prefix),
	)

	record := Record{File: file, Mode: mode, Prefix: prefix}
	entry.Asset = catalog.Asset{Mode: mode, SizeBytes: size, SHA256: digest}
	if mode == catalog.ModeZip {
		url, err := p.uploader.PutFile(ctx, prefix, file)
		if err != nil {
			return nil, services.WrapCode(services.CodeObjectStoreFailed, "upload "+prefix, err)
		}
		entry.Asset.URL = url
	} else {
		partSize := req.PartSizeBytes
		if partSize <= 0 {
			partSize = p.cfg.PartSizeBytes()
		}
		upload, err := p.uploader.Upload(ctx, transfer.UploadOptions{
			SourcePath:    file,
			PartSizeBytes: partSize,
			Prefix:        prefix,
		})
		if err != nil {
			return nil, err
		}
		entry.Asset.ManifestURL = upload.ManifestURL
		record.Upload = upload
	}
	record.Entry = entry

	catalogPath := strings.TrimSpace(req.CatalogPath)
	if catalogPath == "" {
		catalogPath = p.cfg.Catalog.Path
	}
	record.Catalog = catalogPath
	catalogVersion := req.CatalogVersion
	if catalogVersion <= 0 {
		catalogVersion = p.cfg.Catalog.Version
	}
	doc, err := catalog.Update(ctx, catalogPath, entry, catalogVersion, req.ReplaceCatalog)
	if err != nil {
		return nil, err
	}

	if task != nil {
		if err := p.recordOnTask(ctx, task, record); err != nil {
			return nil, err
		}
	}
	url := entry.Asset.URL
	if url == "" {
		url = entry.Asset.ManifestURL
	}
	logger.Info("publish completed",
		logging.String(logging.FieldEventType, "publish_complete"),
		logging.String("mode", mode),
		logging.String("url", url),
	)
	if p.notifier != nil {
		if err := p.notifier.Publish(ctx, notifications.EventPublished, notifications.Payload{
			"course":  courseID,
			"task_id": taskID,
			"mode":    mode,
			"url":     url,
		}); err != nil {
			logger.Debug("publish notification failed", logging.Error(err))
		}
	}
	return &Result{Record: record, TaskID: taskID, CatalogDoc: doc}, nil
}

func (p *Publisher) entry(req Request, courseID string, task *tasks.Task) catalog.Entry {
	entry := catalog.Entry{
		ID:      courseID,
		Title:   strings.TrimSpace(req.Title),
		Version: strings.TrimSpace(req.Version),
		Tags:    req.Tags,
		Cover:   strings.TrimSpace(req.Cover),
	}
	if entry.Title == "" && task != nil {
		entry.Title = strings.TrimSpace(task.CourseTitle)
	}
	if entry.Title == "" {
		entry.Title = courseID
	}
	if entry.Version == "" {
		entry.Version = p.cfg.Catalog.CourseVersion
	}
	if len(entry.Tags) == 0 {
		entry.Tags = append([]string(nil), p.cfg.Catalog.DefaultTags...)
	}
	if entry.Tags == nil {
		entry.Tags = []string{}
	}
	if entry.Cover == "" {
		entry.Cover = p.cfg.Catalog.CoverURL
	}
	return entry
}

// recordOnTask writes the publish execution record and stores the publish
// on the task, reloading once if the task moved underneath us.
func (p *Publisher) recordOnTask(ctx context.Context, task *tasks.Task, record Record) error {
	layout := workspace.New(p.cfg.TasksDir(), task.TaskID)
	if _, err := layout.WriteStepRecord(workspace.StepRecord{
		TaskID:  task.TaskID,
		Step:    RecordStep,
		Payload: record,
	}); err != nil {
		return err
	}

	publish := &tasks.PublishRecord{
		PublishedAt: time.Now().UTC(),
		Mode:        record.Mode,
		Catalog:     record.Catalog,
		Asset:       record.Entry.Asset,
	}
	task.Publish = publish
	err := p.tasks.Save(ctx, task)
	if errors.Is(err, tasks.ErrConflict) {
		latest, getErr := p.tasks.MustGet(ctx, task.TaskID)
		if getErr != nil {
			return getErr
		}
		latest.Publish = publish
		err = p.tasks.Save(ctx, latest)
	}
	if err != nil {
		return fmt.Errorf("record publish on %s: %w", task.TaskID, err)
	}
	return p.tasks.AppendEvent(ctx, task.TaskID, EventTaskPublish, map[string]any{
		"mode":  record.Mode,
		"asset": record.Entry.Asset,
	})
}

// InferTaskID returns the first path component that looks like a task id.
func InferTaskID(path string) string {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if strings.HasPrefix(part, "task_") && !strings.Contains(part, ".") {
			return part
		}
	}
	return ""
}
