package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gofiber/fiber/v2"

	"github.com/a-ayari03/POOL-AI/internal/core/domain"
	"github.com/a-ayari03/POOL-AI/internal/core/usecases"
	"github.com/a-ayari03/POOL-AI/internal/pkg/cadastre"
)

const maxBatchSize = 200

// pictureBody is the JSON form of one acquisition request. Exactly one of
// Polygon (a GeoJSON geometry or Feature) and Address must be set.
type pictureBody struct {
	Polygon  json.RawMessage `json:"polygon"`
	Address  string          `json:"address"`
	Width    int             `json:"width"`
	Height   int             `json:"height"`
	Zoom     *int            `json:"zoom"`
	ParcelID string          `json:"parcel_id"`
	Zipcode  string          `json:"zipcode"`
	HasPool  bool            `json:"has_pool"`
}

func (b pictureBody) toRequest(def domain.ImageSize) (domain.PictureRequest, error) {
	size := applySize(def, b.Width, b.Height, b.Zoom)
	req := domain.PictureRequest{
		Width:    size.Width,
		Height:   size.Height,
		Zoom:     size.Zoom,
		ParcelID: b.ParcelID,
		Zipcode:  b.Zipcode,
		HasPool:  b.HasPool,
	}

	hasPolygon := len(b.Polygon) > 0 && string(b.Polygon) != "null"
	switch {
	case hasPolygon && b.Address != "":
		return req, fmt.Errorf("%w: polygon and address are mutually exclusive", domain.ErrInvalidRequest)
	case hasPolygon:
		poly, err := cadastre.ParsePolygon(b.Polygon)
		if err != nil {
			return req, err
		}
		req.Target = domain.PolygonTarget(poly)
	case b.Address != "":
		req.Target = domain.AddressTarget(b.Address)
	default:
		return req, fmt.Errorf("%w: polygon or address is required", domain.ErrInvalidRequest)
	}
	return req, nil
}

func applySize(def domain.ImageSize, width, height int, zoom *int) domain.ImageSize {
	if width > 0 {
		def.Width = width
	}
	if height > 0 {
		def.Height = height
	}
	if zoom != nil {
		def.Zoom = *zoom
	}
	return def
}

// pictureFolder resolves an optional client sub-folder below the picture root.
func pictureFolder(root, sub string) (string, error) {
	if sub == "" {
		return root, nil
	}
	if !filepath.IsLocal(sub) {
		return "", fmt.Errorf("%w: folder must be a relative path inside the picture directory", domain.ErrInvalidRequest)
	}
	return filepath.Join(root, sub), nil
}

type acquireBody struct {
	pictureBody
	Folder string `json:"folder"`
}

// AcquirePictureHandler fetches and stores one static-map picture.
func AcquirePictureHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body acquireBody
		if err := c.BodyParser(&body); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		req, err := body.toRequest(deps.Settings.DefaultSize)
		if err != nil {
			return errFromDomain(c, err)
		}
		folder, err := pictureFolder(deps.Settings.PictureDir, body.Folder)
		if err != nil {
			return errFromDomain(c, err)
		}

		pic, err := deps.Pictures.Acquire(c.UserContext(), req, folder)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.Status(201).JSON(pic)
	}
}

type batchBody struct {
	Requests        []pictureBody `json:"requests"`
	ContinueOnError bool          `json:"continue_on_error"`
	Folder          string        `json:"folder"`
}

// BatchResponse is returned by the batch endpoint. Error is set when the
// batch stopped early or when some items failed.
type BatchResponse struct {
	*domain.BatchReport
	Error string `json:"error,omitempty"`
}

// AcquireBatchHandler processes acquisition requests sequentially.
// A fail-fast batch that stops answers with the failing item's status;
// a continue-on-error batch with failures answers 207.
func AcquireBatchHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body batchBody
		if err := c.BodyParser(&body); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if len(body.Requests) > maxBatchSize {
			return errBadRequest(c, fmt.Sprintf("too many requests (max %d)", maxBatchSize))
		}
		folder, err := pictureFolder(deps.Settings.PictureDir, body.Folder)
		if err != nil {
			return errFromDomain(c, err)
		}

		reqs := make([]domain.PictureRequest, len(body.Requests))
		for i, b := range body.Requests {
			req, err := b.toRequest(deps.Settings.DefaultSize)
			if err != nil {
				return errBadRequest(c, fmt.Sprintf("request %d: %v", i, err))
			}
			reqs[i] = req
		}

		report, err := deps.Pictures.AcquireBatch(c.UserContext(), reqs, folder, body.ContinueOnError)
		if err == nil {
			return c.JSON(BatchResponse{BatchReport: report})
		}

		var berr *domain.BatchError
		if !body.ContinueOnError && errors.As(err, &berr) {
			resp := BatchResponse{BatchReport: report, Error: err.Error()}
			return c.Status(statusFor(berr.Err)).JSON(resp)
		}
		if report == nil {
			return errFromDomain(c, err)
		}
		return c.Status(207).JSON(BatchResponse{BatchReport: report, Error: err.Error()})
	}
}

// ListPicturesHandler returns catalogued pictures, optionally for one parcel.
func ListPicturesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		offset, limit := pageParams(c)

		pics, total, err := deps.Pictures.List(c.UserContext(), c.Query("parcel_id"), limit, offset)
		if err != nil {
			return errInternal(c, err.Error())
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: pics, Pagination: pg})
	}
}

func pageParams(c *fiber.Ctx) (offset, limit int) {
	offset = c.QueryInt("offset", 0)
	limit = c.QueryInt("limit", 50)
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return offset, limit
}

// ListParcelsHandler returns stored parcels, optionally for one commune.
func ListParcelsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		offset, limit := pageParams(c)

		parcels, total, err := deps.Parcels.List(c.UserContext(), c.Query("commune"), limit, offset)
		if err != nil {
			return errInternal(c, err.Error())
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: parcels, Pagination: pg})
	}
}

// GetParcelHandler returns a single parcel with its GeoJSON geometry.
func GetParcelHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "parcel id is required")
		}

		parcel, err := deps.Parcels.GetByID(c.UserContext(), id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return errNotFound(c, "parcel not found")
			}
			return errInternal(c, err.Error())
		}

		return c.JSON(parcel)
	}
}

type parcelPictureBody struct {
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Zoom    *int   `json:"zoom"`
	Zipcode string `json:"zipcode"`
	HasPool bool   `json:"has_pool"`
	Folder  string `json:"folder"`
}

// ParcelPictureHandler acquires the picture of a stored parcel.
func ParcelPictureHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body parcelPictureBody
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return errBadRequest(c, "invalid request body")
			}
		}
		folder, err := pictureFolder(deps.Settings.PictureDir, body.Folder)
		if err != nil {
			return errFromDomain(c, err)
		}

		label := domain.ParcelLabel{ParcelID: c.Params("id"), Zipcode: body.Zipcode, HasPool: body.HasPool}
		size := applySize(deps.Settings.DefaultSize, body.Width, body.Height, body.Zoom)

		pic, err := deps.Pictures.AcquireParcel(c.UserContext(), label, size, folder)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.Status(201).JSON(pic)
	}
}

type ratiosBody struct {
	TrainRatio *float64 `json:"train_ratio"`
	ValidRatio *float64 `json:"valid_ratio"`
}

func (s Settings) ratios(train, valid *float64) (float64, float64) {
	tr, vr := s.TrainRatio, s.ValidRatio
	if train != nil {
		tr = *train
	}
	if valid != nil {
		vr = *valid
	}
	return tr, vr
}

func queryRatio(c *fiber.Ctx, key string) *float64 {
	if c.Query(key) == "" {
		return nil
	}
	v := c.QueryFloat(key, -1)
	return &v
}

// SplitDatasetHandler partitions the configured labelled set into train/val/test.
func SplitDatasetHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body ratiosBody
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return errBadRequest(c, "invalid request body")
			}
		}
		tr, vr := deps.Settings.ratios(body.TrainRatio, body.ValidRatio)

		report, err := deps.Datasets.Split(c.UserContext(), deps.Settings.DatasetSource, deps.Settings.DatasetDest, tr, vr)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(report)
	}
}

// PreviewSplitHandler reports what a split would produce without copying.
func PreviewSplitHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tr, vr := deps.Settings.ratios(queryRatio(c, "train_ratio"), queryRatio(c, "valid_ratio"))

		report, err := deps.Datasets.Preview(deps.Settings.DatasetSource, tr, vr)
		if err != nil {
			return errFromDomain(c, err)
		}
		c.Set("Cache-Control", "no-cache")
		return c.JSON(report)
	}
}

// PartitionHandler computes split sizes for n items.
func PartitionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Query("n") == "" {
			return errBadRequest(c, "n query parameter is required")
		}
		n := c.QueryInt("n", -1)
		tr, vr := deps.Settings.ratios(queryRatio(c, "train_ratio"), queryRatio(c, "valid_ratio"))

		counts, err := usecases.Partition(n, tr, vr)
		if err != nil {
			return errFromDomain(c, err)
		}
		c.Set("Cache-Control", "public, max-age=3600")
		return c.JSON(counts)
	}
}

type importBody struct {
	Commune    string `json:"commune"`
	Department string `json:"department"`
	Keyword    string `json:"keyword"`
}

// ImportCadastreHandler downloads and loads the parcels of one commune.
func ImportCadastreHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body importBody
		if err := c.BodyParser(&body); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		indexURL, err := cadastre.CommuneIndexURL(deps.Settings.CadastreBaseURL, body.Department, body.Commune)
		if err != nil {
			return errFromDomain(c, err)
		}
		keyword := body.Keyword
		if keyword == "" {
			keyword = deps.Settings.CadastreKeyword
		}

		saveFolder := filepath.Join(deps.Settings.CadastreDir, body.Commune)

		report, err := deps.Cadastre.Import(c.UserContext(), indexURL, keyword, saveFolder)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.Status(201).JSON(report)
	}
}
