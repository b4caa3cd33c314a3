package graph

import (
	"context"
	"net/http"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/handler"

	"tsreddit/internal/auth"
	"tsreddit/internal/loader"
)

// NewHandler serves schema over HTTP. Every request gets its own loader
// scope, built from the viewer the auth middleware stored in the request
// context, and handed to resolvers through the root value.
func NewHandler(schema *graphql.Schema, scopes loader.Factory, playground bool) http.Handler {
	return handler.New(&handler.Config{
		Schema:     schema,
		Pretty:     true,
		GraphiQL:   false,
		Playground: playground,
		RootObjectFn: func(ctx context.Context, r *http.Request) map[string]interface{} {
			return map[string]interface{}{
				scopeKey: scopes(ctx, auth.ViewerFromContext(ctx)),
			}
		},
	})
}
