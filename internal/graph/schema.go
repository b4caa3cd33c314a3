// Package graph exposes the post feed and vote ledger over GraphQL.
//
// Derived fields (Post.creator, Post.voteStatus) return thunks so that
// graphql-go resolves a whole level of the response before forcing any of
// them; each loader in the request scope then issues one grouped query.
package graph

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/graphql-go/graphql"

	apperrors "tsreddit/internal/errors"
	"tsreddit/internal/loader"
	"tsreddit/internal/model"
	"tsreddit/internal/service"
)

// scopeKey is the root value entry holding the request *loader.Scope.
const scopeKey = "scope"

// Services are the operations the schema delegates to.
type Services struct {
	Posts service.PostService
	Votes service.VoteService
	Users service.UserService
}

func scopeFrom(p graphql.ResolveParams) (*loader.Scope, error) {
	root, _ := p.Info.RootValue.(map[string]interface{})
	scope, ok := root[scopeKey].(*loader.Scope)
	if !ok {
		return nil, errors.New("request scope missing")
	}
	return scope, nil
}

func postFrom(p graphql.ResolveParams) *model.Post {
	switch v := p.Source.(type) {
	case *model.Post:
		return v
	case model.Post:
		return &v
	}
	return nil
}

func userFrom(p graphql.ResolveParams) *model.User {
	switch v := p.Source.(type) {
	case *model.User:
		return v
	case model.User:
		return &v
	}
	return nil
}

func millis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// NewSchema builds the executable schema over svc.
func NewSchema(svc Services) (graphql.Schema, error) {
	userType := graphql.NewObject(graphql.ObjectConfig{
		Name: "User",
		Fields: graphql.Fields{
			"id": &graphql.Field{
				Type: graphql.NewNonNull(graphql.Int),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return int(userFrom(p).ID), nil
				},
			},
			"name": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return userFrom(p).Name, nil
				},
			},
			"email": &graphql.Field{
				Type:        graphql.NewNonNull(graphql.String),
				Description: "Only visible to the user themselves; empty for anyone else.",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					scope, err := scopeFrom(p)
					if err != nil {
						return nil, err
					}
					return service.ResolveEmail(scope, userFrom(p))
				},
			},
		},
	})

	postType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Post",
		Fields: graphql.Fields{
			"id": &graphql.Field{
				Type: graphql.NewNonNull(graphql.Int),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return int(postFrom(p).ID), nil
				},
			},
			"title": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return postFrom(p).Title, nil
				},
			},
			"text": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return postFrom(p).Text, nil
				},
			},
			"textSnippet": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return snippet(postFrom(p).Text), nil
				},
			},
			"points": &graphql.Field{
				Type: graphql.NewNonNull(graphql.Int),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return postFrom(p).Points, nil
				},
			},
			"creatorId": &graphql.Field{
				Type: graphql.NewNonNull(graphql.Int),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return int(postFrom(p).CreatorID), nil
				},
			},
			"createdAt": &graphql.Field{
				Type:        graphql.NewNonNull(graphql.String),
				Description: "Unix milliseconds; pass as the posts cursor to continue after this post.",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return millis(postFrom(p).CreatedAt), nil
				},
			},
			"updatedAt": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return millis(postFrom(p).UpdatedAt), nil
				},
			},
			"creator": &graphql.Field{
				Type: userType,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					scope, err := scopeFrom(p)
					if err != nil {
						return nil, err
					}
					author := service.ResolveAuthor(scope, postFrom(p))
					return func() (interface{}, error) {
						return author()
					}, nil
				},
			},
			"voteStatus": &graphql.Field{
				Type:        graphql.Int,
				Description: "1 or -1 when the viewer voted on the post, null otherwise.",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					scope, err := scopeFrom(p)
					if err != nil {
						return nil, err
					}
					status := service.ResolveViewerVoteStatus(scope, postFrom(p))
					return func() (interface{}, error) {
						s, err := status()
						if err != nil {
							return nil, err
						}
						if v, ok := s.Get(); ok {
							return int(v), nil
						}
						return nil, nil
					}, nil
				},
			},
		},
	})

	pageType := graphql.NewObject(graphql.ObjectConfig{
		Name: "PaginatedPosts",
		Fields: graphql.Fields{
			"posts": &graphql.Field{
				Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(postType))),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					page := p.Source.(*service.Page)
					posts := make([]*model.Post, len(page.Posts))
					for i := range page.Posts {
						posts[i] = &page.Posts[i]
					}
					return posts, nil
				},
			},
			"hasMore": &graphql.Field{
				Type: graphql.NewNonNull(graphql.Boolean),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(*service.Page).HasMore, nil
				},
			},
		},
	})

	viewerOf := func(p graphql.ResolveParams) model.Viewer {
		if scope, err := scopeFrom(p); err == nil {
			return scope.Viewer
		}
		return model.Anonymous()
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"posts": &graphql.Field{
				Type: graphql.NewNonNull(pageType),
				Args: graphql.FieldConfigArgument{
					"limit": &graphql.ArgumentConfig{
						Type: graphql.NewNonNull(graphql.Int),
					},
					"cursor": &graphql.ArgumentConfig{
						Type:        graphql.String,
						Description: "createdAt of the last post already seen",
					},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					limit, _ := p.Args["limit"].(int)
					var cursor *time.Time
					if raw, ok := p.Args["cursor"].(string); ok && raw != "" {
						ms, err := strconv.ParseInt(raw, 10, 64)
						if err != nil {
							return nil, apperrors.ErrInvalidInput
						}
						t := time.UnixMilli(ms)
						cursor = &t
					}
					return svc.Posts.ListPosts(p.Context, limit, cursor)
				},
			},
			"post": &graphql.Field{
				Type: postType,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id, _ := p.Args["id"].(int)
					if id <= 0 {
						return nil, nil
					}
					post, err := svc.Posts.GetPost(p.Context, uint(id))
					if errors.Is(err, apperrors.ErrPostNotFound) {
						return nil, nil
					}
					return nilIfErr(post, err)
				},
			},
			"me": &graphql.Field{
				Type: userType,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					user, err := svc.Users.Me(p.Context, viewerOf(p))
					if errors.Is(err, apperrors.ErrUnauthenticated) || errors.Is(err, apperrors.ErrUserNotFound) {
						return nil, nil
					}
					return nilIfErr(user, err)
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"vote": &graphql.Field{
				Type: graphql.NewNonNull(graphql.Boolean),
				Args: graphql.FieldConfigArgument{
					"postId": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
					"value":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					postID, _ := p.Args["postId"].(int)
					value, _ := p.Args["value"].(int)
					if postID <= 0 {
						return nil, apperrors.ErrPostNotFound
					}
					return svc.Votes.CastVote(p.Context, viewerOf(p), uint(postID), value)
				},
			},
			"createPost": &graphql.Field{
				Type: graphql.NewNonNull(postType),
				Args: graphql.FieldConfigArgument{
					"title": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"text":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					title, _ := p.Args["title"].(string)
					text, _ := p.Args["text"].(string)
					return nilIfErr(svc.Posts.CreatePost(p.Context, viewerOf(p), title, text))
				},
			},
			"updatePost": &graphql.Field{
				Type: postType,
				Args: graphql.FieldConfigArgument{
					"id":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
					"title": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id, _ := p.Args["id"].(int)
					title, _ := p.Args["title"].(string)
					if id <= 0 {
						return nil, apperrors.ErrPostNotFound
					}
					return nilIfErr(svc.Posts.UpdatePostTitle(p.Context, viewerOf(p), uint(id), title))
				},
			},
			"deletePost": &graphql.Field{
				Type: graphql.NewNonNull(graphql.Boolean),
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id, _ := p.Args["id"].(int)
					if id <= 0 {
						return nil, apperrors.ErrPostNotFound
					}
					if err := svc.Posts.DeletePost(p.Context, viewerOf(p), uint(id)); err != nil {
						return nil, err
					}
					return true, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:      queryType,
		Mutation:   mutationType,
		Extensions: []graphql.Extension{errorCodes{}},
	})
}

// nilIfErr keeps a typed nil pointer from reaching graphql-go as a non-nil
// interface value.
func nilIfErr[T any](v *T, err error) (interface{}, error) {
	if err != nil || v == nil {
		return nil, err
	}
	return v, nil
}

func snippet(text string) string {
	const max = 50
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}

// Execute runs one request against schema with a fresh scope. It is what the
// HTTP handler does per request, minus the transport.
func Execute(ctx context.Context, schema graphql.Schema, scope *loader.Scope, query string, vars map[string]interface{}) *graphql.Result {
	return graphql.Do(graphql.Params{
		Schema:         schema,
		RequestString:  query,
		VariableValues: vars,
		RootObject:     map[string]interface{}{scopeKey: scope},
		Context:        ctx,
	})
}
