package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/a-ayari03/POOL-AI/internal/core/domain"
)

// AcquisitionWorkflowName is the registered workflow type.
const AcquisitionWorkflowName = "AcquisitionWorkflow"

// AcquisitionInput is the input for the acquisition workflow. Import is
// optional; when set the commune's parcels are loaded before any picture
// is requested.
type AcquisitionInput struct {
	Import          *ImportInput
	Labels          []domain.ParcelLabel
	Size            domain.ImageSize
	Folder          string
	ContinueOnError bool
}

// AcquisitionResult summarises a run.
type AcquisitionResult struct {
	Import *domain.ImportReport
	Report domain.BatchReport
}

// AcquisitionWorkflow acquires one picture per labelled parcel, one after the
// other. The first failed item ends the run unless ContinueOnError is set, in
// which case failures are collected in the report. Each activity is retried
// up to three times; pictures already saved are never removed.
func AcquisitionWorkflow(ctx workflow.Context, input AcquisitionInput) (*AcquisitionResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting acquisition workflow", "labels", len(input.Labels), "continueOnError", input.ContinueOnError)

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: 2 * time.Second,
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	result := &AcquisitionResult{
		Report: domain.BatchReport{Requested: len(input.Labels), Saved: []domain.Picture{}},
	}

	if input.Import != nil {
		importCtx := workflow.WithStartToCloseTimeout(ctx, 10*time.Minute)
		var report domain.ImportReport
		if err := workflow.ExecuteActivity(importCtx, ImportParcelsActivity, *input.Import).Get(ctx, &report); err != nil {
			return result, err
		}
		result.Import = &report
		logger.Info("Parcels imported", "commune", report.Commune, "stored", report.Stored)
	}

	for i, label := range input.Labels {
		in := ParcelPictureInput{Label: label, Size: input.Size, Folder: input.Folder}

		var pic domain.Picture
		err := workflow.ExecuteActivity(ctx, AcquireParcelPictureActivity, in).Get(ctx, &pic)
		if err != nil {
			if !input.ContinueOnError {
				logger.Warn("acquisition stopped", "index", i, "parcel", label.ParcelID, "error", err)
				return result, &domain.BatchError{Index: i, Label: label.ParcelID, Err: err}
			}
			result.Report.Failures = append(result.Report.Failures, domain.BatchFailure{
				Index: i, Label: label.ParcelID, Error: err.Error(),
			})
			continue
		}
		result.Report.Saved = append(result.Report.Saved, pic)
	}

	logger.Info("Acquisition finished", "saved", len(result.Report.Saved), "failed", len(result.Report.Failures))
	return result, nil
}
