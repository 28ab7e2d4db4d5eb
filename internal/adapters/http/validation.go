package httpadapter

import (
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/go-chi/chi/v5"

	"github.com/kirillkom/rx-crosscheck/internal/core/domain"
)

// requestValidator checks requests against the embedded OpenAPI document.
// chi has already matched the route, so the operation is looked up by its
// pattern instead of running a second router.
type requestValidator struct {
	doc *openapi3.T
}

func (v requestValidator) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rctx := chi.RouteContext(r.Context())
		if v.doc == nil || rctx == nil {
			next.ServeHTTP(w, r)
			return
		}
		pattern := rctx.RoutePattern()
		pathItem := v.doc.Paths.Value(pattern)
		if pathItem == nil {
			next.ServeHTTP(w, r)
			return
		}
		operation := pathItem.GetOperation(r.Method)
		if operation == nil {
			next.ServeHTTP(w, r)
			return
		}

		params := make(map[string]string, len(rctx.URLParams.Keys))
		for i, key := range rctx.URLParams.Keys {
			params[key] = rctx.URLParams.Values[i]
		}
		input := &openapi3filter.RequestValidationInput{
			Request:    r,
			PathParams: params,
			Route: &routers.Route{
				Spec:      v.doc,
				Path:      pattern,
				PathItem:  pathItem,
				Method:    r.Method,
				Operation: operation,
			},
			Options: &openapi3filter.Options{
				AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
			},
		}
		if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
			writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "validate request", err))
			return
		}
		next.ServeHTTP(w, r)
	})
}
