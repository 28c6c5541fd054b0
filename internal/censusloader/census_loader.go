package censusloader

import (
	"context"
	"strings"
	"time"

	"github.com/graph-gophers/dataloader"

	"github.com/peachstate/voterlens/internal/domain"
	"github.com/peachstate/voterlens/internal/repository"
)

// CensusLoader batches census metric lookups within a request so a report
// touching several geography units issues a single store query.
type CensusLoader struct {
	Loader *dataloader.Loader
}

func NewCensusLoader(repo repository.CensusRepository) *CensusLoader {
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		censusKeys := make([]domain.CensusKey, len(keys))
		for i, k := range keys {
			censusKeys[i] = parseKey(k.String())
		}

		metrics, err := repo.GetMetrics(ctx, censusKeys)
		if err != nil {
			results := make([]*dataloader.Result, len(keys))
			for i := range results {
				results[i] = &dataloader.Result{Error: err}
			}
			return results
		}

		// Build results in the same order as keys; a missing unit yields
		// nil data, not an error.
		results := make([]*dataloader.Result, len(keys))
		for i, k := range censusKeys {
			results[i] = &dataloader.Result{Data: metrics[k.String()]}
		}
		return results
	}

	loader := dataloader.NewBatchedLoader(batchFn, dataloader.WithWait(5*time.Millisecond))

	return &CensusLoader{Loader: loader}
}

// Load fetches metrics for one geography unit through the batching loader.
func (l *CensusLoader) Load(ctx context.Context, key domain.CensusKey) (*domain.CensusMetrics, error) {
	thunk := l.Loader.Load(ctx, dataloader.StringKey(key.String()))
	data, err := thunk()
	if err != nil {
		return nil, err
	}
	metrics, _ := data.(*domain.CensusMetrics)
	return metrics, nil
}

func parseKey(raw string) domain.CensusKey {
	parts := strings.SplitN(raw, ":", 2)
	if len(parts) != 2 {
		return domain.CensusKey{}
	}
	return domain.CensusKey{Kind: domain.CensusGeographyKind(parts[0]), Value: parts[1]}
}
