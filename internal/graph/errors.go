package graph

import (
	"context"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/gqlerrors"

	apperrors "tsreddit/internal/errors"
)

// errorCodes rewrites execution errors raised by the application into the
// same message and code the REST API uses, under extensions.code.
type errorCodes struct{}

var _ graphql.Extension = errorCodes{}

func (errorCodes) Init(ctx context.Context, _ *graphql.Params) context.Context { return ctx }

func (errorCodes) Name() string { return "errorCodes" }

func (errorCodes) ParseDidStart(ctx context.Context) (context.Context, graphql.ParseFinishFunc) {
	return ctx, func(error) {}
}

func (errorCodes) ValidationDidStart(ctx context.Context) (context.Context, graphql.ValidationFinishFunc) {
	return ctx, func([]gqlerrors.FormattedError) {}
}

func (errorCodes) ExecutionDidStart(ctx context.Context) (context.Context, graphql.ExecutionFinishFunc) {
	return ctx, func(result *graphql.Result) {
		if result == nil {
			return
		}
		for i := range result.Errors {
			cause := rootCause(result.Errors[i])
			if !apperrors.IsDomain(cause) {
				continue
			}
			httpErr := apperrors.MapErrorToHTTP(cause)
			result.Errors[i].Message = httpErr.Message
			result.Errors[i].Extensions = httpErr.Extensions()
		}
	}
}

func (errorCodes) ResolveFieldDidStart(ctx context.Context, _ *graphql.ResolveInfo) (context.Context, graphql.ResolveFieldFinishFunc) {
	return ctx, func(interface{}, error) {}
}

func (errorCodes) HasResult() bool { return false }

func (errorCodes) GetResult(context.Context) interface{} { return nil }

// rootCause peels the located and formatted wrappers graphql-go puts around
// a resolver error.
func rootCause(err error) error {
	for {
		switch e := err.(type) {
		case gqlerrors.FormattedError:
			if e.OriginalError() == nil {
				return err
			}
			err = e.OriginalError()
		case *gqlerrors.Error:
			if e.OriginalError == nil {
				return err
			}
			err = e.OriginalError
		default:
			return err
		}
	}
}
