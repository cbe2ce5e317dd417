package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"coursepipe/internal/config"
	"coursepipe/internal/services"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigInitCommand(ctx))

	return configCmd
}

func newConfigInitCommand(ctx *commandContext) *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return services.WrapCode(services.CodeInvalidArgument, "resolve config path", err)
				}
				target = expanded
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return services.Errorf(services.CodeInvalidArgument, "config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			return ctx.emit(cmd, map[string]string{"path": target}, func(w io.Writer) {
				fmt.Fprintf(w, "Wrote sample configuration to %s\n", target)
				fmt.Fprintln(w, "Set storage credentials there or export COURSE_PIPELINE_MINIO_ACCESS_KEY and COURSE_PIPELINE_MINIO_SECRET_KEY.")
			})
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Validate the configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load(strings.TrimSpace(*ctx.configFlag))
			if err != nil {
				return services.WrapCode(services.CodeConfigInvalid, "load config", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return services.WrapCode(services.CodeConfigInvalid, "ensure directories", err)
			}
			storageErr := cfg.ValidateStorageReady()
			out := map[string]any{
				"path":          path,
				"exists":        exists,
				"storage":       cfg.Storage.Backend,
				"storage_ready": storageErr == nil,
			}
			if storageErr != nil {
				out["storage_detail"] = storageErr.Error()
			}
			return ctx.emit(cmd, out, func(w io.Writer) {
				fmt.Fprintf(w, "Config path: %s\n", path)
				if !exists {
					fmt.Fprintln(w, "Config file did not exist; defaults were used")
				}
				if storageErr != nil {
					fmt.Fprintf(w, "Storage not ready: %v\n", storageErr)
				}
				fmt.Fprintln(w, "Configuration valid")
			})
		},
	}
}
