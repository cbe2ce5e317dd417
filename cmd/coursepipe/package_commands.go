package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"coursepipe/internal/logging"
	"coursepipe/internal/objectstore"
	"coursepipe/internal/publish"
	"coursepipe/internal/services"
	"coursepipe/internal/textutil"
	"coursepipe/internal/transfer"
)

func newPackageCommand(ctx *commandContext) *cobra.Command {
	packageCmd := &cobra.Command{
		Use:   "package",
		Short: "Inspect, transfer, and publish course packages",
	}
	packageCmd.AddCommand(newPackageInspectCommand(ctx))
	packageCmd.AddCommand(newPackagePutCommand(ctx))
	packageCmd.AddCommand(newPackageUploadCommand(ctx))
	packageCmd.AddCommand(newPackageDownloadCommand(ctx))
	packageCmd.AddCommand(newPackagePublishCommand(ctx))
	packageCmd.AddCommand(newPackageRepublishCommand(ctx))
	return packageCmd
}

type inspectOutput struct {
	File      string `json:"file"`
	SizeBytes int64  `json:"size_bytes"`
	SHA256    string `json:"sha256"`
	Mode      string `json:"publish_mode"`
}

func newPackageInspectCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file>",
		Short: "Print size, sha256, and the publish mode a file would get",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			digest, size, err := transfer.Inspect(args[0])
			if err != nil {
				return err
			}
			out := inspectOutput{
				File:      args[0],
				SizeBytes: size,
				SHA256:    digest,
				Mode:      publish.SelectMode(size, cfg.SegmentThresholdBytes()),
			}
			return ctx.emit(cmd, out, func(w io.Writer) {
				fmt.Fprint(w, renderTable([]string{"File", "Bytes", "SHA-256", "Mode"},
					[][]string{{out.File, fmt.Sprint(out.SizeBytes), out.SHA256, out.Mode}},
					[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft}))
			})
		},
	}
}

func (c *commandContext) uploader(cmd *cobra.Command) (*transfer.Uploader, objectstore.Store, error) {
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, nil, err
	}
	objects, err := c.objects(cmd)
	if err != nil {
		return nil, nil, err
	}
	return transfer.NewUploader(objects, logger), objects, nil
}

// progressPrinter reports transfer progress on stderr in whole percents.
func progressPrinter(cmd *cobra.Command, enabled bool) transfer.ProgressFunc {
	if !enabled {
		return nil
	}
	last := -1
	return func(done, total int64) {
		if total <= 0 {
			return
		}
		pct := int(done * 100 / total)
		if pct == last {
			return
		}
		last = pct
		fmt.Fprintf(cmd.ErrOrStderr(), "\r%3d%% %d/%d bytes", pct, done, total)
		if done >= total {
			fmt.Fprintln(cmd.ErrOrStderr())
		}
	}
}

type putOutput struct {
	File      string `json:"file"`
	Key       string `json:"object_key"`
	URL       string `json:"url"`
	SizeBytes int64  `json:"size_bytes"`
	SHA256    string `json:"sha256"`
}

func newPackagePutCommand(ctx *commandContext) *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a file as a single object",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			digest, size, err := transfer.Inspect(args[0])
			if err != nil {
				return err
			}
			if size == 0 {
				return services.Errorf(services.CodeEmptyFile, "file is empty: %s", args[0])
			}
			uploader, _, err := ctx.uploader(cmd)
			if err != nil {
				return err
			}
			objectKey := objectstore.NormalizePrefix(key, filepath.Base(args[0]))
			url, err := uploader.PutFile(cmd.Context(), objectKey, args[0])
			if err != nil {
				return services.WrapCode(services.CodeObjectStoreFailed, "upload "+objectKey, err)
			}
			out := putOutput{File: args[0], Key: objectKey, URL: url, SizeBytes: size, SHA256: digest}
			return ctx.emit(cmd, out, func(w io.Writer) {
				fmt.Fprintf(w, "Uploaded %s (%d bytes)\n", out.File, out.SizeBytes)
				fmt.Fprintf(w, "  %s\n", out.URL)
			})
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "Object key (defaults to the file name)")
	return cmd
}

func newPackageUploadCommand(ctx *commandContext) *cobra.Command {
	var (
		partSizeMiB  int
		prefix       string
		manifestPath string
		manifestKey  string
		skipManifest bool
		showProgress bool
	)

	cmd := &cobra.Command{
		Use:   "upload-segmented <file>",
		Short: "Split a file into parts, upload them, and write a manifest",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			uploader, _, err := ctx.uploader(cmd)
			if err != nil {
				return err
			}
			partSize := cfg.PartSizeBytes()
			if partSizeMiB > 0 {
				partSize = int64(partSizeMiB) * 1024 * 1024
			}
			result, err := uploader.Upload(cmd.Context(), transfer.UploadOptions{
				SourcePath:         args[0],
				PartSizeBytes:      partSize,
				Prefix:             prefix,
				ManifestPath:       manifestPath,
				ManifestKey:        manifestKey,
				SkipManifestUpload: skipManifest,
				Progress:           progressPrinter(cmd, showProgress),
			})
			if err != nil {
				return err
			}
			return ctx.emit(cmd, result, func(w io.Writer) {
				fmt.Fprintf(w, "Uploaded %s in %d part(s) of %d MiB\n", result.File, result.PartCount, result.PartSizeMiB)
				fmt.Fprintf(w, "Manifest: %s\n", result.ManifestLocal)
				if result.ManifestURL != "" {
					fmt.Fprintf(w, "Manifest URL: %s\n", result.ManifestURL)
				}
			})
		},
	}
	cmd.Flags().IntVar(&partSizeMiB, "part-size-mib", 0, "Part size in MiB (defaults to transfer.part_size_mib)")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Object key prefix (defaults to the file name)")
	cmd.Flags().StringVar(&manifestPath, "manifest", "", "Local manifest path (defaults to <file>.parts.json)")
	cmd.Flags().StringVar(&manifestKey, "manifest-key", "", "Object key for the uploaded manifest")
	cmd.Flags().BoolVar(&skipManifest, "skip-manifest-upload", false, "Keep the manifest local only")
	cmd.Flags().BoolVar(&showProgress, "progress", false, "Print progress to stderr")
	return cmd
}

func newPackageDownloadCommand(ctx *commandContext) *cobra.Command {
	var (
		manifestKey  string
		outPath      string
		showProgress bool
	)

	cmd := &cobra.Command{
		Use:   "download-segmented [manifest-file]",
		Short: "Download every part of a manifest and restore the verified file",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 1 || (len(args) == 0) == (strings.TrimSpace(manifestKey) == "") {
				return services.NewError(services.CodeInvalidArgument, "provide either a manifest file or --manifest-key")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			uploader, objects, err := ctx.uploader(cmd)
			if err != nil {
				return err
			}
			var manifest *transfer.Manifest
			if len(args) == 1 {
				manifest, err = transfer.LoadManifest(args[0])
			} else {
				manifest, err = transfer.FetchManifest(cmd.Context(), objects, manifestKey)
			}
			if err != nil {
				return err
			}
			result, err := uploader.Download(cmd.Context(), transfer.DownloadOptions{
				Manifest: manifest,
				OutPath:  outPath,
				Progress: progressPrinter(cmd, showProgress),
			})
			if err != nil {
				return err
			}
			return ctx.emit(cmd, result, func(w io.Writer) {
				fmt.Fprintf(w, "Restored %s (%d bytes, %d parts)\n", result.RestoredFile, result.SizeBytes, result.PartCount)
				fmt.Fprintf(w, "SHA-256: %s\n", result.SHA256)
			})
		},
	}
	cmd.Flags().StringVar(&manifestKey, "manifest-key", "", "Fetch the manifest from the object store")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output path (defaults to the source name in the working directory)")
	cmd.Flags().BoolVar(&showProgress, "progress", false, "Print progress to stderr")
	return cmd
}

func newPackagePublishCommand(ctx *commandContext) *cobra.Command {
	var req publish.Request
	var tags string
	var thresholdMiB int
	var partSizeMiB int

	cmd := &cobra.Command{
		Use:   "publish-auto <file>",
		Short: "Upload a package as one object or segmented by size, then update the catalog",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			publisher, err := ctx.publisher(cmd)
			if err != nil {
				return err
			}
			req.File = args[0]
			req.Tags = textutil.SplitTags(tags)
			req.ThresholdBytes = int64(thresholdMiB) * 1024 * 1024
			req.PartSizeBytes = int64(partSizeMiB) * 1024 * 1024
			result, err := publisher.Publish(cmd.Context(), req)
			if err != nil {
				return err
			}
			return ctx.emit(cmd, result, func(w io.Writer) {
				renderPublish(w, result)
			})
		},
	}
	cmd.Flags().StringVar(&req.CourseID, "course-id", "", "Course id (defaults to the owning task's course)")
	cmd.Flags().StringVar(&req.Title, "title", "", "Catalog title")
	cmd.Flags().StringVar(&req.Version, "version", "", "Course version (defaults to catalog.course_version)")
	cmd.Flags().StringVar(&tags, "tags", "", "Comma-separated catalog tags (defaults to catalog.default_tags)")
	cmd.Flags().StringVar(&req.Cover, "cover", "", "Cover image URL")
	cmd.Flags().StringVar(&req.Prefix, "prefix", "", "Object key (defaults to <course_id>/<version>/<file name>)")
	cmd.Flags().StringVar(&req.TaskID, "task-id", "", "Task to record the publish on (inferred from the path)")
	cmd.Flags().StringVar(&req.CatalogPath, "catalog", "", "Catalog file (defaults to catalog.path)")
	cmd.Flags().BoolVar(&req.ReplaceCatalog, "replace", false, "Replace the catalog instead of merging")
	cmd.Flags().IntVar(&req.CatalogVersion, "catalog-version", 0, "Catalog version to write (defaults to catalog.version)")
	cmd.Flags().IntVar(&thresholdMiB, "threshold-mib", 0, "Segment files at or above this size (defaults to transfer.segment_threshold_mib)")
	cmd.Flags().IntVar(&partSizeMiB, "part-size-mib", 0, "Part size for segmented uploads")
	return cmd
}

func renderPublish(w io.Writer, result *publish.Result) {
	url := result.Entry.Asset.URL
	if url == "" {
		url = result.Entry.Asset.ManifestURL
	}
	fmt.Fprintf(w, "Published %s %s as %s\n", result.Entry.ID, result.Entry.Version, result.Mode)
	fmt.Fprintf(w, "  %s\n", url)
	fmt.Fprintf(w, "  catalog %s (%d courses)\n", result.Catalog, len(result.CatalogDoc.Courses))
}

func newPackageRepublishCommand(ctx *commandContext) *cobra.Command {
	var opts publish.RepublishOptions

	cmd := &cobra.Command{
		Use:   "republish",
		Short: "Republish the newest packaged task of every course and rebuild the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			publisher, err := ctx.publisher(cmd)
			if err != nil {
				return err
			}
			results, err := publisher.Republish(cmd.Context(), opts)
			if err != nil {
				if logger, logErr := ctx.ensureLogger(); logErr == nil && len(results) > 0 {
					logger.Warn("republish stopped part way",
						logging.Int("published", len(results)),
						logging.Error(err),
					)
				}
				return err
			}
			return ctx.emit(cmd, results, func(w io.Writer) {
				for _, result := range results {
					renderPublish(w, result)
				}
			})
		},
	}
	cmd.Flags().StringVar(&opts.CatalogPath, "catalog", "", "Catalog file (defaults to catalog.path)")
	cmd.Flags().StringSliceVar(&opts.CourseIDs, "course", nil, "Restrict to these course ids (repeatable)")
	cmd.Flags().IntVar(&opts.CatalogVersion, "catalog-version", 0, "Catalog version to write (defaults to catalog.version)")
	return cmd
}
