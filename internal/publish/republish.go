package publish

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"coursepipe/internal/fileutil"
	"coursepipe/internal/logging"
	"coursepipe/internal/services"
	"coursepipe/internal/steps"
	"coursepipe/internal/tasks"
	"coursepipe/internal/workspace"
)

// ChooseZip picks the archive to publish for a task: the file recorded by the
// last publish, else the largest zip in the workspace that is not a restored
// copy, else (when packIfMissing) a fresh archive of the package directory.
func ChooseZip(layout workspace.Layout, courseID string, packIfMissing bool) (string, error) {
	var last workspace.StepRecord
	var record Record
	last.Payload = &record
	if err := layout.ReadStepRecord(RecordStep, &last); err == nil && record.File != "" && fileutil.Exists(record.File) {
		return record.File, nil
	}

	matches, err := filepath.Glob(filepath.Join(layout.Root(), "*.zip"))
	if err != nil {
		return "", err
	}
	var best string
	var bestSize int64 = -1
	for _, candidate := range matches {
		if strings.Contains(filepath.Base(candidate), "restored") {
			continue
		}
		info, err := os.Stat(candidate)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if info.Size() > bestSize {
			best, bestSize = candidate, info.Size()
		}
	}
	if best != "" {
		return best, nil
	}
	if !packIfMissing {
		return "", services.Errorf(services.CodeInvalidArgument, "no package zip in %s", layout.Root())
	}
	return steps.BuildPackageZip(layout, courseID)
}

// RepublishOptions configures a catalog rebuild.
type RepublishOptions struct {
	CatalogPath string
	// CourseIDs restricts the rebuild; empty means every course.
	CourseIDs      []string
	CatalogVersion int
	ThresholdBytes int64
	PartSizeBytes  int64
}

// Republish publishes the newest packaged task of every course and rebuilds
// the catalog: the first course replaces it, the rest are merged in.
func (p *Publisher) Republish(ctx context.Context, opts RepublishOptions) ([]*Result, error) {
	if p.tasks == nil {
		return nil, fmt.Errorf("republish requires a task store")
	}
	candidates, err := p.publishable(ctx, opts.CourseIDs)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, services.NewError(services.CodeNoPublishableTasks, "no task has a finished package step")
	}

	results := make([]*Result, 0, len(candidates))
	for i, task := range candidates {
		layout := workspace.New(p.cfg.TasksDir(), task.TaskID)
		zipPath, err := ChooseZip(layout, task.CourseID, true)
		if err != nil {
			return results, fmt.Errorf("republish %s: %w", task.CourseID, err)
		}
		title, version := steps.TitleAndVersion(layout.PackageDir(), task.CourseID)
		if title == task.CourseID {
			title = steps.ResolveTitle(task, layout.PackageDir())
		}
		if _, ok := steps.PackageCatalogEntry(layout.PackageDir(), task.CourseID); !ok {
			version = p.cfg.Catalog.CourseVersion
		}

		remote := task.CourseID + "/" + version + "/"
		if err := p.objects.DeletePrefix(ctx, remote); err != nil {
			return results, services.WrapCode(services.CodeObjectStoreFailed, "clear "+remote, err)
		}
		p.logger.Info("republishing course",
			logging.String(logging.FieldCourseID, task.CourseID),
			logging.String(logging.FieldTaskID, task.TaskID),
			logging.String("zip", zipPath),
		)
		result, err := p.Publish(ctx, Request{
			File:           zipPath,
			CourseID:       task.CourseID,
			Title:          title,
			Version:        version,
			TaskID:         task.TaskID,
			CatalogPath:    opts.CatalogPath,
			ReplaceCatalog: i == 0,
			CatalogVersion: opts.CatalogVersion,
			ThresholdBytes: opts.ThresholdBytes,
			PartSizeBytes:  opts.PartSizeBytes,
		})
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

// publishable returns, per course and in course id order, the most recently
// updated task whose package step is done.
func (p *Publisher) publishable(ctx context.Context, courseIDs []string) ([]*tasks.Task, error) {
	all, err := p.tasks.List(ctx)
	if err != nil {
		return nil, err
	}
	wanted := make(map[string]struct{}, len(courseIDs))
	for _, id := range courseIDs {
		if id = strings.TrimSpace(id); id != "" {
			wanted[id] = struct{}{}
		}
	}
	latest := make(map[string]*tasks.Task)
	for _, task := range all {
		if task.StateOf(tasks.StepPackage) != tasks.StateDone {
			continue
		}
		if _, ok := wanted[task.CourseID]; len(wanted) > 0 && !ok {
			continue
		}
		if current, ok := latest[task.CourseID]; !ok || task.UpdatedAt.After(current.UpdatedAt) {
			latest[task.CourseID] = task
		}
	}
	out := make([]*tasks.Task, 0, len(latest))
	for _, task := range latest {
		out = append(out, task)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CourseID < out[j].CourseID })
	return out, nil
}
