package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/a-ayari03/POOL-AI/internal/core/domain"
	"github.com/a-ayari03/POOL-AI/internal/core/usecases"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	parcelType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Parcel",
		Fields: graphql.Fields{
			"id":         &graphql.Field{Type: graphql.String},
			"commune":    &graphql.Field{Type: graphql.String},
			"prefixe":    &graphql.Field{Type: graphql.String},
			"section":    &graphql.Field{Type: graphql.String},
			"numero":     &graphql.Field{Type: graphql.String},
			"contenance": &graphql.Field{Type: graphql.Int},
			"created_at": &graphql.Field{Type: graphql.DateTime},
			"updated_at": &graphql.Field{Type: graphql.DateTime},
			"geometry": &graphql.Field{
				Type:        graphql.String,
				Description: "Exterior polygon as a GeoJSON string",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					parcel := p.Source.(domain.Parcel)
					if parcel.Polygon == nil {
						return nil, nil
					}
					b, err := geojson.Marshal(parcel.Polygon)
					if err != nil {
						return nil, err
					}
					return string(b), nil
				},
			},
		},
	})

	pictureType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Picture",
		Fields: graphql.Fields{
			"id":         &graphql.Field{Type: graphql.String},
			"mode":       &graphql.Field{Type: graphql.String},
			"parcel_id":  &graphql.Field{Type: graphql.String},
			"zipcode":    &graphql.Field{Type: graphql.String},
			"has_pool":   &graphql.Field{Type: graphql.Boolean},
			"address":    &graphql.Field{Type: graphql.String},
			"filename":   &graphql.Field{Type: graphql.String},
			"path":       &graphql.Field{Type: graphql.String},
			"width":      &graphql.Field{Type: graphql.Int},
			"height":     &graphql.Field{Type: graphql.Int},
			"zoom":       &graphql.Field{Type: graphql.Int},
			"format":     &graphql.Field{Type: graphql.String},
			"bytes":      &graphql.Field{Type: graphql.Int},
			"created_at": &graphql.Field{Type: graphql.DateTime},
		},
	})

	countsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "SplitCounts",
		Fields: graphql.Fields{
			"train": &graphql.Field{Type: graphql.Int},
			"val":   &graphql.Field{Type: graphql.Int},
			"test":  &graphql.Field{Type: graphql.Int},
		},
	})

	pageArgs := graphql.FieldConfigArgument{
		"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 50},
		"offset": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"parcel": &graphql.Field{
				Type:        parcelType,
				Description: "Get a parcel by cadastral ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					parcel, err := deps.Parcels.GetByID(p.Context, p.Args["id"].(string))
					if err != nil {
						return nil, err
					}
					return *parcel, nil
				},
			},
			"parcels": &graphql.Field{
				Type:        graphql.NewList(parcelType),
				Description: "List parcels, optionally for one commune",
				Args: withArgs(pageArgs, graphql.FieldConfigArgument{
					"commune": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
				}),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					parcels, _, err := deps.Parcels.List(p.Context, p.Args["commune"].(string), p.Args["limit"].(int), p.Args["offset"].(int))
					return parcels, err
				},
			},
			"pictures": &graphql.Field{
				Type:        graphql.NewList(pictureType),
				Description: "List catalogued pictures, optionally for one parcel",
				Args: withArgs(pageArgs, graphql.FieldConfigArgument{
					"parcel_id": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
				}),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					pics, _, err := deps.Pictures.List(p.Context, p.Args["parcel_id"].(string), p.Args["limit"].(int), p.Args["offset"].(int))
					return pics, err
				},
			},
			"partition": &graphql.Field{
				Type:        countsType,
				Description: "Split sizes for n items",
				Args: graphql.FieldConfigArgument{
					"n":           &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
					"train_ratio": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: deps.Settings.TrainRatio},
					"valid_ratio": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: deps.Settings.ValidRatio},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return usecases.Partition(p.Args["n"].(int), p.Args["train_ratio"].(float64), p.Args["valid_ratio"].(float64))
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

func withArgs(base, extra graphql.FieldConfigArgument) graphql.FieldConfigArgument {
	out := make(graphql.FieldConfigArgument, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
