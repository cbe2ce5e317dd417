package steps

import (
	"path/filepath"
	"strings"

	"coursepipe/internal/catalog"
	"coursepipe/internal/fileutil"
	"coursepipe/internal/tasks"
)

const defaultCourseVersion = "1.0.0"

// ResolveTitle picks the display title for a packaged course. The first
// candidate that is non-empty and differs from the course id wins: the task
// title, the title already in the package manifest, the package catalog
// entry, and the raw folder name. The course id is the last resort.
func ResolveTitle(task *tasks.Task, packageDir string) string {
	usable := func(value string) bool {
		value = strings.TrimSpace(value)
		return value != "" && value != task.CourseID
	}

	if usable(task.CourseTitle) {
		return strings.TrimSpace(task.CourseTitle)
	}
	var manifest CourseManifest
	if err := fileutil.ReadJSON(filepath.Join(packageDir, manifestFileName), &manifest); err == nil && usable(manifest.Title) {
		return strings.TrimSpace(manifest.Title)
	}
	if entry, ok := PackageCatalogEntry(packageDir, task.CourseID); ok && usable(entry.Title) {
		return strings.TrimSpace(entry.Title)
	}
	if path := strings.TrimSpace(task.CoursePath); path != "" {
		if name := strings.TrimSpace(filepath.Base(path)); name != "" && name != "." && name != string(filepath.Separator) {
			return strings.ReplaceAll(name, "_", " ")
		}
	}
	return task.CourseID
}

// PackageCatalogEntry reads package/catalog.json and returns the entry for
// courseID, falling back to the first entry.
func PackageCatalogEntry(packageDir, courseID string) (catalog.Entry, bool) {
	cat, err := catalog.Load(filepath.Join(packageDir, "catalog.json"))
	if err != nil || cat == nil || len(cat.Courses) == 0 {
		return catalog.Entry{}, false
	}
	if entry, ok := cat.Find(courseID); ok {
		return entry, true
	}
	return cat.Courses[0], true
}

// TitleAndVersion returns the catalog title and version recorded in the
// package, defaulting to the course id and 1.0.0.
func TitleAndVersion(packageDir, courseID string) (string, string) {
	title, version := courseID, defaultCourseVersion
	if entry, ok := PackageCatalogEntry(packageDir, courseID); ok {
		if v := strings.TrimSpace(entry.Title); v != "" {
			title = v
		}
		if v := strings.TrimSpace(entry.Version); v != "" {
			version = v
		}
	}
	return title, version
}
