package middleware

import (
	"net/http"

	"github.com/peachstate/voterlens/internal/censusloader"
	"github.com/peachstate/voterlens/internal/repository"
)

// CensusLoaderMiddleware attaches a fresh batching census loader to each
// request context so repeated lookups within one request coalesce.
func CensusLoaderMiddleware(repo repository.CensusRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if repo == nil {
				next.ServeHTTP(w, r)
				return
			}
			loader := censusloader.NewCensusLoader(repo)
			ctx := censusloader.NewContext(r.Context(), loader)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
