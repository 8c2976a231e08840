package http

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/digsentry/digsentry/internal/core/domain"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	siteType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Site",
		Fields: graphql.Fields{
			"id":     &graphql.Field{Type: graphql.String},
			"slug":   &graphql.Field{Type: graphql.String},
			"name":   &graphql.Field{Type: graphql.String},
			"status": &graphql.Field{Type: graphql.String},
			"center": &graphql.Field{Type: geoPointType},
		},
	})

	lineType := graphql.NewObject(graphql.ObjectConfig{
		Name: "UtilityLine",
		Fields: graphql.Fields{
			"id":       &graphql.Field{Type: graphql.String},
			"site_id":  &graphql.Field{Type: graphql.String},
			"kind":     &graphql.Field{Type: graphql.String},
			"class":    &graphql.Field{Type: graphql.String},
			"vertices": &graphql.Field{Type: graphql.NewList(geoPointType)},
		},
	})

	statsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "SiteStats",
		Fields: graphql.Fields{
			"site_id":       &graphql.Field{Type: graphql.String},
			"line_count":    &graphql.Field{Type: graphql.Int},
			"main_count":    &graphql.Field{Type: graphql.Int},
			"service_count": &graphql.Field{Type: graphql.Int},
		},
	})

	alertType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ProximityAlert",
		Fields: graphql.Fields{
			"utility_id":         &graphql.Field{Type: graphql.String},
			"severity":           &graphql.Field{Type: graphql.String},
			"distance_feet":      &graphql.Field{Type: graphql.Float},
			"first_seen_ms":      &graphql.Field{Type: graphql.Float},
			"last_seen_ms":       &graphql.Field{Type: graphql.Float},
			"dismissed_until_ms": &graphql.Field{Type: graphql.Float},
		},
	})

	connectionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "MainConnection",
		Fields: graphql.Fields{
			"line":          &graphql.Field{Type: lineType},
			"snap_point":    &graphql.Field{Type: geoPointType},
			"distance_m":    &graphql.Field{Type: graphql.Float},
			"segment_index": &graphql.Field{Type: graphql.Int},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"sites": &graphql.Field{
				Type:        graphql.NewList(siteType),
				Description: "List all excavation sites",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Sites.List(p.Context)
				},
			},
			"site": &graphql.Field{
				Type:        siteType,
				Description: "Get a site by UUID or slug",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id := p.Args["id"].(string)
					if site, err := deps.Sites.GetByID(p.Context, id); err == nil {
						return site, nil
					}
					return deps.Sites.GetBySlug(p.Context, id)
				},
			},
			"lines": &graphql.Field{
				Type:        graphql.NewList(lineType),
				Description: "Recorded utility lines of a site",
				Args: graphql.FieldConfigArgument{
					"site_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					siteID := p.Args["site_id"].(string)
					return deps.Lines.ListBySite(p.Context, siteID)
				},
			},
			"line": &graphql.Field{
				Type:        lineType,
				Description: "Get a utility line by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id := p.Args["id"].(string)
					return deps.Lines.GetByID(p.Context, id)
				},
			},
			"linesNearby": &graphql.Field{
				Type:        graphql.NewList(lineType),
				Description: "Utility lines within a radius of a point",
				Args: graphql.FieldConfigArgument{
					"site_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"lat":     &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":     &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"radius":  &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 25.0},
					"limit":   &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 50},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					siteID := p.Args["site_id"].(string)
					lat := p.Args["lat"].(float64)
					lon := p.Args["lon"].(float64)
					radius := p.Args["radius"].(float64)
					limit := p.Args["limit"].(int)
					return deps.Lines.FindNearby(p.Context, siteID, lat, lon, radius, limit)
				},
			},
			"siteStats": &graphql.Field{
				Type:        statsType,
				Description: "Utility-map summary for a site",
				Args: graphql.FieldConfigArgument{
					"site_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					siteID := p.Args["site_id"].(string)
					return deps.Lines.Stats(p.Context, siteID)
				},
			},
			"nearestMain": &graphql.Field{
				Type:        connectionType,
				Description: "Closest same-kind main to a point",
				Args: graphql.FieldConfigArgument{
					"site_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"lat":     &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":     &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"kind":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"radius":  &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 0.0},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					siteID := p.Args["site_id"].(string)
					lat := p.Args["lat"].(float64)
					lon := p.Args["lon"].(float64)
					kind, err := domain.ParseUtilityKind(p.Args["kind"].(string))
					if err != nil {
						return nil, err
					}
					radius := p.Args["radius"].(float64)
					return deps.Lines.NearestMain(p.Context, siteID,
						domain.GeoPoint{Lat: lat, Lon: lon}, kind, radius)
				},
			},
			"activeAlerts": &graphql.Field{
				Type:        graphql.NewList(alertType),
				Description: "Live proximity alerts from the device's latest tick",
				Args: graphql.FieldConfigArgument{
					"site_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"device":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if deps.Cache == nil {
						return nil, fmt.Errorf("cache not available")
					}
					siteID := p.Args["site_id"].(string)
					device := p.Args["device"].(string)
					raw, err := deps.Cache.Get(p.Context, fmt.Sprintf("dig:tick:%s:%s", siteID, device))
					if err != nil {
						return nil, fmt.Errorf("no recent tick for device %s", device)
					}
					var tick domain.TickEvent
					if err := json.Unmarshal(raw, &tick); err != nil {
						return nil, err
					}
					return tick.Result.Alerts, nil
				},
			},
			"alertHistory": &graphql.Field{
				Type: graphql.NewList(graphql.NewObject(graphql.ObjectConfig{
					Name: "AlertEvent",
					Fields: graphql.Fields{
						"id":            &graphql.Field{Type: graphql.String},
						"device_id":     &graphql.Field{Type: graphql.String},
						"utility_id":    &graphql.Field{Type: graphql.String},
						"event":         &graphql.Field{Type: graphql.String},
						"severity":      &graphql.Field{Type: graphql.String},
						"distance_feet": &graphql.Field{Type: graphql.Float},
						"at":            &graphql.Field{Type: graphql.String},
					},
				})),
				Description: "Persisted alert transitions of a site, newest first",
				Args: graphql.FieldConfigArgument{
					"site_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"limit":   &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 100},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					siteID := p.Args["site_id"].(string)
					limit := p.Args["limit"].(int)
					events, err := deps.Events.ListBySite(p.Context, siteID, limit)
					if err != nil {
						return nil, err
					}
					// Convert domain.AlertEvent to a map for GraphQL
					var result []map[string]interface{}
					for _, e := range events {
						result = append(result, map[string]interface{}{
							"id":            e.ID,
							"device_id":     e.DeviceID,
							"utility_id":    e.UtilityID,
							"event":         e.Event,
							"severity":      string(e.Severity),
							"distance_feet": e.DistanceFeet,
							"at":            e.At.Format(time.RFC3339),
						})
					}
					return result, nil
				},
			},
			"openIncidents": &graphql.Field{
				Type: graphql.NewList(graphql.NewObject(graphql.ObjectConfig{
					Name: "Incident",
					Fields: graphql.Fields{
						"id":            &graphql.Field{Type: graphql.String},
						"device_id":     &graphql.Field{Type: graphql.String},
						"utility_id":    &graphql.Field{Type: graphql.String},
						"severity":      &graphql.Field{Type: graphql.String},
						"distance_feet": &graphql.Field{Type: graphql.Float},
						"status":        &graphql.Field{Type: graphql.String},
						"opened_at":     &graphql.Field{Type: graphql.String},
					},
				})),
				Description: "Unresolved incidents of a site",
				Args: graphql.FieldConfigArgument{
					"site_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					siteID := p.Args["site_id"].(string)
					incidents, err := deps.Incidents.ListOpen(p.Context, siteID)
					if err != nil {
						return nil, err
					}
					var result []map[string]interface{}
					for _, in := range incidents {
						result = append(result, map[string]interface{}{
							"id":            in.ID,
							"device_id":     in.DeviceID,
							"utility_id":    in.UtilityID,
							"severity":      string(in.Severity),
							"distance_feet": in.DistanceFeet,
							"status":        in.Status,
							"opened_at":     in.OpenedAt.Format(time.RFC3339),
						})
					}
					return result, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
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
			return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.Context(),
		})

		return c.JSON(result)
	}
}
