// Package history reconstructs per-stock time series from the record store.
package history

import (
	"context"
	"fmt"

	"github.com/zhwen/stockpool/backend/internal/contracts"
)

// RecordReader is the slice of the store the reconstructor needs.
type RecordReader interface {
	GetDailyRecordsByCodes(ctx context.Context, codes []string) (map[string][]*contracts.DailyRecord, error)
}

// Reconstructor derives per-code record sequences. Purely a read over the
// store's current contents; there is no cache to invalidate.
type Reconstructor struct {
	reader RecordReader
}

// New creates a Reconstructor.
func New(reader RecordReader) *Reconstructor {
	return &Reconstructor{reader: reader}
}

// Options control one reconstruction call.
type Options struct {
	// ExcludeDate drops this date from every sequence, so today's
	// snapshot is not presented as its own history.
	ExcludeDate string
}

// Get returns for each code its record sequence ordered ascending by
// date. Codes with no records map to an empty sequence.
func (r *Reconstructor) Get(ctx context.Context, codes []string, opts Options) (map[string][]*contracts.DailyRecord, error) {
	series, err := r.reader.GetDailyRecordsByCodes(ctx, codes)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	result := make(map[string][]*contracts.DailyRecord, len(codes))
	for _, code := range codes {
		seq := series[code]
		if opts.ExcludeDate != "" {
			filtered := make([]*contracts.DailyRecord, 0, len(seq))
			for _, rec := range seq {
				if rec.Date == opts.ExcludeDate {
					continue
				}
				filtered = append(filtered, rec)
			}
			seq = filtered
		}
		result[code] = seq
	}
	return result, nil
}
