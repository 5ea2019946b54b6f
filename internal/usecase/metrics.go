package usecase

import "context"

// MetricsSummary represents aggregated verification insights.
type MetricsSummary struct {
	TotalVerifications   int64   `json:"total_verifications"`
	MatchedVerifications int64   `json:"matched_verifications"`
	MatchRate            float64 `json:"match_rate"`
	AverageDistance      float64 `json:"average_distance"`
}

// GetMetricsSummary aggregates verification metrics from the audit log.
func (uc *FaceUseCase) GetMetricsSummary(ctx context.Context) (*MetricsSummary, error) {
	aggregation, err := uc.attendance.AggregateMetrics(ctx)
	if err != nil {
		return nil, err
	}

	summary := &MetricsSummary{
		TotalVerifications:   aggregation.TotalCount,
		MatchedVerifications: aggregation.MatchedCount,
		AverageDistance:      aggregation.AverageDistance,
	}

	if aggregation.TotalCount > 0 {
		summary.MatchRate = float64(aggregation.MatchedCount) / float64(aggregation.TotalCount)
	}

	return summary, nil
}
