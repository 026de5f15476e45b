package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/huarazguide/internal/core/domain"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lng": &graphql.Field{Type: graphql.Float},
		},
	})

	couponType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Coupon",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.String},
			"business_id": &graphql.Field{Type: graphql.String},
			"title":       &graphql.Field{Type: graphql.String},
			"description": &graphql.Field{Type: graphql.String},
			"code":        &graphql.Field{Type: graphql.String},
			"expiry_date": &graphql.Field{Type: graphql.DateTime},
		},
	})

	businessType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Business",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.String},
			"name":        &graphql.Field{Type: graphql.String},
			"category":    &graphql.Field{Type: graphql.String},
			"description": &graphql.Field{Type: graphql.String},
			"address":     &graphql.Field{Type: graphql.String},
			"location":    &graphql.Field{Type: geoPointType},
			"phone":       &graphql.Field{Type: graphql.String},
			"whatsapp":    &graphql.Field{Type: graphql.String},
			"photos":      &graphql.Field{Type: graphql.NewList(graphql.String)},
			"ad_level":    &graphql.Field{Type: graphql.String},
			"sponsored": &graphql.Field{
				Type: graphql.Boolean,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					b, _ := p.Source.(domain.Business)
					return b.Sponsored(), nil
				},
			},
			"coupons": &graphql.Field{
				Type:        graphql.NewList(couponType),
				Description: "Active coupons offered by this business",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					b, _ := p.Source.(domain.Business)
					return deps.Coupons.ListByBusiness(p.Context, b.ID)
				},
			},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"categories": &graphql.Field{
				Type:        graphql.NewList(graphql.String),
				Description: "Known business categories",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					out := make([]string, len(domain.Categories))
					for i, c := range domain.Categories {
						out[i] = string(c)
					}
					return out, nil
				},
			},
			"businesses": &graphql.Field{
				Type:        graphql.NewList(businessType),
				Description: "Approved businesses, sponsored first",
				Args: graphql.FieldConfigArgument{
					"category": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
					"query":    &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
					"limit":    &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
					"offset":   &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					filter := domain.BusinessFilter{
						Category: domain.Category(p.Args["category"].(string)),
						Query:    p.Args["query"].(string),
					}
					items, _, err := deps.Businesses.List(p.Context, filter, p.Args["limit"].(int), p.Args["offset"].(int))
					return items, err
				},
			},
			"business": &graphql.Field{
				Type:        businessType,
				Description: "Get a business by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					b, err := deps.Businesses.GetByID(p.Context, p.Args["id"].(string))
					if err != nil {
						return nil, err
					}
					return *b, nil
				},
			},
			"sponsored": &graphql.Field{
				Type:        graphql.NewList(businessType),
				Description: "Businesses with an active sponsorship",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Businesses.Sponsored(p.Context)
				},
			},
			"coupons": &graphql.Field{
				Type:        graphql.NewList(couponType),
				Description: "All active coupons",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Coupons.List(p.Context)
				},
			},
			"coupon": &graphql.Field{
				Type:        couponType,
				Description: "Look up a coupon by code",
				Args: graphql.FieldConfigArgument{
					"code": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Coupons.GetByCode(p.Context, p.Args["code"].(string))
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
