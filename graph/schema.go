package graph

import (
	_ "embed"

	graphql "github.com/graph-gophers/graphql-go"

	"github.com/cppla/socialfeed/services"
)

//go:embed schema.graphql
var Schema string

// NewSchema parses the SDL and binds it to resolvers backed by svc.
func NewSchema(svc *services.Services) (*graphql.Schema, error) {
	return graphql.ParseSchema(Schema, &Resolver{svc: svc},
		graphql.MaxDepth(12),
		graphql.MaxParallelism(10),
	)
}

// MustNewSchema is NewSchema for boot code; it panics on an invalid schema.
func MustNewSchema(svc *services.Services) *graphql.Schema {
	s, err := NewSchema(svc)
	if err != nil {
		panic(err)
	}
	return s
}
