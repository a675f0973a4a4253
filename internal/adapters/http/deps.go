package http

import (
	"github.com/nats-io/nats.go"

	"github.com/a-ayari03/POOL-AI/internal/adapters/postgres"
	"github.com/a-ayari03/POOL-AI/internal/adapters/valkey"
	"github.com/a-ayari03/POOL-AI/internal/core/domain"
	"github.com/a-ayari03/POOL-AI/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Pictures *usecases.PictureService
	Parcels  *usecases.ParcelService
	Datasets *usecases.DatasetService
	Cadastre *usecases.CadastreService
	Settings Settings
	NATS     *nats.Conn
	DB       *postgres.DB
	Cache    *valkey.Cache
}

// Settings are the server-side defaults. Filesystem locations are never taken
// from request bodies; clients may only pick a sub-folder below PictureDir.
type Settings struct {
	PictureDir      string
	DefaultSize     domain.ImageSize
	DatasetSource   string
	DatasetDest     string
	TrainRatio      float64
	ValidRatio      float64
	CadastreBaseURL string
	CadastreKeyword string
	CadastreDir     string

	APIKeySet   bool   // static-map key present; reported by /v1/ready
	OpenAPIPath string // served at /docs/openapi.yaml
}
