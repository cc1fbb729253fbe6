package openapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"

	"github.com/frahmantamala/leave-management/internal"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"
)

// Validator checks incoming requests against the published API document.
type Validator struct {
	router routers.Router
	logger *slog.Logger
}

// Load reads and validates the document at path.
func Load(ctx context.Context, path string, logger *slog.Logger) (*Validator, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx

	doc, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load openapi document %s: %w", path, err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid openapi document %s: %w", path, err)
	}
	// match on path only, whatever host the service is reached on
	doc.Servers = nil

	router, err := legacy.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("build openapi router: %w", err)
	}
	return &Validator{router: router, logger: logger}, nil
}

// Middleware rejects requests that break the documented parameters or JSON
// bodies with a 400. Undocumented routes pass through untouched, as do
// multipart bodies, which the handlers check themselves.
func (v *Validator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route, params, err := v.router.FindRoute(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    r,
			PathParams: params,
			Route:      route,
			Options: &openapi3filter.Options{
				AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
				ExcludeRequestBody: !isJSONBody(r),
			},
		}
		if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
			v.reject(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (v *Validator) reject(w http.ResponseWriter, r *http.Request, err error) {
	appErr := internal.NewValidationError("request does not match the API contract", internal.ErrCodeValidationFailed).WithCause(err)

	var reqErr *openapi3filter.RequestError
	if errors.As(err, &reqErr) {
		detail := map[string]string{"reason": reqErr.Reason}
		if reqErr.Parameter != nil {
			detail["parameter"] = reqErr.Parameter.Name
		}
		if reqErr.Err != nil {
			detail["error"] = reqErr.Err.Error()
		}
		appErr = appErr.WithDetails(detail)
	}

	v.logger.Warn("request failed contract validation", "method", r.Method, "path", r.URL.Path, "error", err)

	status, body := appErr.ToHTTPResponse()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func isJSONBody(r *http.Request) bool {
	if r.Body == nil || r.Body == http.NoBody {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}
