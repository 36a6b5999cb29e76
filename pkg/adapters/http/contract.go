package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
)

// Contract returns the embedded OpenAPI document.
func Contract() []byte {
	return rawSpec
}

func loadContract(ctx context.Context) (*openapi3.T, routers.Router, error) {
	doc, err := openapi3.NewLoader().LoadFromData(rawSpec)
	if err != nil {
		return nil, nil, fmt.Errorf("load api contract: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, nil, fmt.Errorf("invalid api contract: %w", err)
	}
	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, nil, fmt.Errorf("build api router: %w", err)
	}
	return doc, router, nil
}

// validateRequest rejects requests that do not match the contract.
// Routes outside the contract pass through.
func (s *Server) validateRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route, params, err := s.router.FindRoute(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		input := &openapi3filter.RequestValidationInput{
			Request:    r,
			PathParams: params,
			Route:      route,
		}
		if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
			s.logger.Debug("Request rejected by contract", "err", err, "path", r.URL.Path)
			s.fail(w, http.StatusBadRequest, fmt.Errorf("request does not match the api contract: %w", err))
			return
		}
		next.ServeHTTP(w, r)
	})
}
