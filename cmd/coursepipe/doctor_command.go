package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"coursepipe/internal/deps"
	"coursepipe/internal/services"
	"coursepipe/internal/stage"
)

type doctorReport struct {
	Binaries []deps.Status  `json:"binaries"`
	Steps    []stage.Health `json:"steps"`
	Storage  storageStatus  `json:"storage"`
}

type storageStatus struct {
	Backend string `json:"backend"`
	Target  string `json:"target,omitempty"`
	Ready   bool   `json:"ready"`
	Detail  string `json:"detail,omitempty"`
}

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check external tools, step readiness, and storage",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			engine, err := ctx.engine()
			if err != nil {
				return err
			}
			report := doctorReport{
				Binaries: deps.CheckBinaries(deps.Requirements(cfg)),
				Steps:    engine.Health(),
				Storage:  storageStatus{Backend: cfg.Storage.Backend},
			}
			if objects, err := ctx.objects(cmd); err != nil {
				report.Storage.Detail = err.Error()
			} else {
				location, bucket := objects.Describe()
				report.Storage.Target = location + " (bucket " + bucket + ")"
				report.Storage.Ready = true
			}

			emitErr := ctx.emit(cmd, report, func(w io.Writer) {
				rows := make([][]string, 0, len(report.Binaries)+len(report.Steps)+1)
				for _, status := range report.Binaries {
					rows = append(rows, []string{status.Name, status.Command, yesNo(status.Available), status.Detail})
				}
				for _, health := range report.Steps {
					rows = append(rows, []string{"step " + health.Name, "", yesNo(health.Ready), health.Detail})
				}
				rows = append(rows, []string{"storage", report.Storage.Target, yesNo(report.Storage.Ready), report.Storage.Detail})
				fmt.Fprint(w, renderTable([]string{"Check", "Target", "OK", "Detail"}, rows, nil))
			})
			if emitErr != nil {
				return emitErr
			}
			for _, status := range report.Binaries {
				if !status.Available && !status.Optional {
					return services.Errorf(services.CodeFFmpegNotFound, "%s unavailable: %s", status.Name, status.Detail)
				}
			}
			return nil
		},
	}
}
