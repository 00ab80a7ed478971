package transport

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/rhuss/weiche/pkg/api"
)

// Logging returns middleware that emits one structured log entry per
// create-response call: request ID, admitted subject, model, stream flag
// and duration. Failures add the error and the HTTP status it will be
// answered with.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next ResponseCreator) ResponseCreator {
		return ResponseCreatorFunc(func(ctx context.Context, req *api.CreateResponseRequest, w ResponseWriter) error {
			start := time.Now()
			requestID := RequestIDFromContext(ctx)

			err := next.CreateResponse(ctx, req, w)

			attrs := []slog.Attr{
				slog.String("request_id", requestID),
				slog.String("subject", SubjectFromContext(ctx)),
				slog.String("model", req.Model),
				slog.Bool("stream", req.Stream),
				slog.Duration("duration", time.Since(start)),
			}

			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
				var apiErr *api.APIError
				if errors.As(err, &apiErr) {
					attrs = append(attrs, slog.Int("status", apiErr.HTTPStatus()))
				}
				logger.LogAttrs(ctx, slog.LevelError, "request failed", attrs...)
			} else {
				logger.LogAttrs(ctx, slog.LevelInfo, "request completed", attrs...)
			}

			return err
		})
	}
}
