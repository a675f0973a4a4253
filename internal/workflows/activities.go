package workflows

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/a-ayari03/POOL-AI/internal/core/domain"
	"github.com/a-ayari03/POOL-AI/internal/core/usecases"
)

// Activity names, as registered on the worker.
const (
	ImportParcelsActivity        = "ImportParcels"
	AcquireParcelPictureActivity = "AcquireParcelPicture"
)

// ImportInput locates one commune archive on the cadastre portal.
type ImportInput struct {
	IndexURL   string
	Keyword    string
	SaveFolder string
}

// ParcelPictureInput is one item of an acquisition run.
type ParcelPictureInput struct {
	Label  domain.ParcelLabel
	Size   domain.ImageSize
	Folder string
}

// AcquisitionActivities holds the activity implementations for the acquisition workflow.
type AcquisitionActivities struct {
	Pictures *usecases.PictureService
	Cadastre *usecases.CadastreService
}

// ImportParcels downloads a commune archive and stores its parcels.
func (a *AcquisitionActivities) ImportParcels(ctx context.Context, in ImportInput) (*domain.ImportReport, error) {
	if a.Cadastre == nil {
		return nil, temporal.NewNonRetryableApplicationError("cadastre service not configured", "config", nil)
	}
	report, err := a.Cadastre.Import(ctx, in.IndexURL, in.Keyword, in.SaveFolder)
	if err != nil {
		return nil, classify(fmt.Errorf("import %s: %w", in.IndexURL, err))
	}
	return report, nil
}

// AcquireParcelPicture fetches and stores the picture of one parcel.
func (a *AcquisitionActivities) AcquireParcelPicture(ctx context.Context, in ParcelPictureInput) (*domain.Picture, error) {
	activity.GetLogger(ctx).Info("acquiring parcel picture", "parcel", in.Label.ParcelID)
	pic, err := a.Pictures.AcquireParcel(ctx, in.Label, in.Size, in.Folder)
	if err != nil {
		return nil, classify(err)
	}
	return pic, nil
}

// classify marks errors that a retry cannot fix.
func classify(err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrMissingAPIKey),
		errors.Is(err, domain.ErrLinkNotFound),
		errors.Is(err, domain.ErrUnsupportedGeometry):
		return temporal.NewNonRetryableApplicationError(err.Error(), "permanent", err)
	default:
		return err
	}
}
