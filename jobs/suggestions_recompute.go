package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/meridian-erp/meridian-erp/internal/jobs"
	"github.com/meridian-erp/meridian-erp/internal/statistics"
)

// SuggestionsRecomputeJob refreshes the purchase suggestion cache on a
// schedule so buyers see current numbers each morning.
type SuggestionsRecomputeJob struct {
	Statistics *statistics.Service
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
}

// NewSuggestionsRecomputeJob wires dependencies for the recompute handler.
func NewSuggestionsRecomputeJob(stats *statistics.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *SuggestionsRecomputeJob {
	return &SuggestionsRecomputeJob{Statistics: stats, Logger: logger, Metrics: metrics}
}

// Handle processes suggestion recompute tasks.
func (j *SuggestionsRecomputeJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Statistics == nil {
		return errors.New("suggestions recompute: handler not configured")
	}
	var payload SuggestionsPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.DaysToAnalyze <= 0 {
		payload.DaysToAnalyze = 30
	}
	if payload.LeadTimeDays <= 0 {
		payload.LeadTimeDays = 7
	}
	if payload.SafetyStockDays <= 0 {
		payload.SafetyStockDays = 14
	}

	tracker := j.metrics().Track(TaskSuggestionsRecompute)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	suggestions, err := j.Statistics.PurchaseSuggestions(ctx, payload.DaysToAnalyze, payload.LeadTimeDays, payload.SafetyStockDays)
	if err != nil {
		resultErr = err
		j.logger().Error("recompute suggestions", slog.Any("error", err))
		return resultErr
	}
	j.metrics().SetSuggestionCount(len(suggestions))
	j.logger().Info("recomputed purchase suggestions", slog.Int("count", len(suggestions)))
	return resultErr
}

// StatisticsInvalidateJob bumps the statistics cache version.
type StatisticsInvalidateJob struct {
	Statistics *statistics.Service
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
}

// NewStatisticsInvalidateJob wires dependencies for the invalidation handler.
func NewStatisticsInvalidateJob(stats *statistics.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *StatisticsInvalidateJob {
	return &StatisticsInvalidateJob{Statistics: stats, Logger: logger, Metrics: metrics}
}

// Handle processes cache invalidation tasks.
func (j *StatisticsInvalidateJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Statistics == nil {
		return errors.New("statistics invalidate: handler not configured")
	}
	tracker := j.metrics().Track(TaskStatisticsInvalidate)
	return tracker.End(j.Statistics.InvalidateCache(ctx))
}

func (j *SuggestionsRecomputeJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *SuggestionsRecomputeJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskSuggestionsRecompute))
	}
	return slog.Default().With(slog.String("job", TaskSuggestionsRecompute))
}

func (j *StatisticsInvalidateJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
