package graph

import (
	"context"
	"encoding/json"

	"github.com/graph-gophers/graphql-go"
	gqlerrors "github.com/graph-gophers/graphql-go/errors"
	"github.com/upb/book-feed/services"
)

// Subscriptions runs subscription operations against a schema. graphql-go
// has no way for a stream to fail a single event, so a delivery withheld
// by the shield arrives as a null root field; Subscriptions attaches the
// authorization error to it.
type Subscriptions struct {
	schema *graphql.Schema
}

// NewSubscriptions creates a new Subscriptions service
func NewSubscriptions(schema *graphql.Schema) *Subscriptions {
	return &Subscriptions{schema: schema}
}

// Subscribe implements the graphql-ws GraphQLService interface.
func (s *Subscriptions) Subscribe(ctx context.Context, document, operationName string, variables map[string]interface{}) (<-chan interface{}, error) {
	in, err := s.schema.Subscribe(ctx, document, operationName, variables)
	if err != nil {
		return nil, err
	}

	out := make(chan interface{})
	go func() {
		defer close(out)
		// in is closed by graphql-go once ctx is done; keep draining until then.
		for payload := range in {
			if resp, ok := payload.(*graphql.Response); ok {
				markWithheld(resp)
			}
			select {
			case out <- payload:
			case <-ctx.Done():
			}
		}
	}()
	return out, nil
}

// markWithheld adds an authorization error for every root field that
// resolved to null without an error of its own.
func markWithheld(resp *graphql.Response) {
	if len(resp.Errors) > 0 || len(resp.Data) == 0 {
		return
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(resp.Data, &fields); err != nil {
		return
	}
	for alias, value := range fields {
		if string(value) != "null" {
			continue
		}
		resp.Errors = append(resp.Errors, &gqlerrors.QueryError{
			Message:       services.ErrNotAuthorised.Error(),
			Path:          []interface{}{alias},
			Err:           services.ErrNotAuthorised,
			ResolverError: services.ErrNotAuthorised,
			Extensions:    services.ErrNotAuthorised.Extensions(),
		})
	}
}
