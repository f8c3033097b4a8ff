package ledger

import "context"

// Stats summarises the whole stock record set for the admin dashboard.
type Stats struct {
	TotalProducts  int     `json:"totalProducts"`
	TotalUnits     int64   `json:"totalUnits"`
	LowStock       int     `json:"lowStock"`
	OutOfStock     int     `json:"outOfStock"`
	InventoryValue float64 `json:"inventoryValue"`
}

// ComputeStats aggregates records with catalog unit prices. Pure function, no
// side effects; products missing a price contribute zero value.
func ComputeStats(records []StockRecord, prices map[int64]float64) Stats {
	var stats Stats
	stats.TotalProducts = len(records)
	for _, record := range records {
		stats.TotalUnits += record.TotalStock
		switch record.Status() {
		case StatusLowStock:
			stats.LowStock++
		case StatusOutOfStock:
			stats.OutOfStock++
		}
		stats.InventoryValue += float64(record.TotalStock) * prices[record.ProductID]
	}
	return stats
}

// Stats serves the aggregation, through the cache when one is configured.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	if s.stats == nil {
		return s.loadStats(ctx)
	}
	var stats Stats
	err := s.stats.Fetch(ctx, &stats, func(ctx context.Context) (any, error) {
		return s.loadStats(ctx)
	})
	return stats, err
}

func (s *Service) loadStats(ctx context.Context) (Stats, error) {
	records, err := s.repo.ListRecords(ctx)
	if err != nil {
		return Stats{}, err
	}
	prices := map[int64]float64{}
	if s.catalog != nil {
		prices, err = s.catalog.Prices(ctx)
		if err != nil {
			return Stats{}, err
		}
	}
	return ComputeStats(records, prices), nil
}
