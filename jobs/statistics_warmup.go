package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/meridian-erp/meridian-erp/internal/jobs"
	"github.com/meridian-erp/meridian-erp/internal/statistics"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// StatisticsWarmupJob pre-populates the statistics caches so the first
// dashboard request of the day does not pay for the rollup queries.
type StatisticsWarmupJob struct {
	Statistics *statistics.Service
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
	clock      func() time.Time
}

// NewStatisticsWarmupJob wires dependencies for the warmup handler.
func NewStatisticsWarmupJob(stats *statistics.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *StatisticsWarmupJob {
	return &StatisticsWarmupJob{
		Statistics: stats,
		Logger:     logger,
		Metrics:    metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes statistics warmup tasks.
func (j *StatisticsWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Statistics == nil {
		return errors.New("statistics warmup: handler not configured")
	}
	var payload StatisticsWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Days <= 0 {
		payload.Days = 30
	}

	tracker := j.metrics().Track(TaskStatisticsWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int("days", payload.Days))
	logger.Info("starting statistics warmup")

	warmCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	now := j.now()
	to := now.AddDate(0, 0, -1)
	from := now.AddDate(0, 0, -payload.Days)

	if _, err := j.Statistics.DailyStatistics(warmCtx, from, to); err != nil {
		resultErr = err
		logger.Error("warm daily statistics", slog.Any("error", err))
		return resultErr
	}
	if _, err := j.Statistics.RangeStatistics(warmCtx, from, to); err != nil {
		resultErr = err
		logger.Error("warm range statistics", slog.Any("error", err))
		return resultErr
	}
	if payload.Days >= 7 {
		if _, err := j.Statistics.OverallTrend(warmCtx, 7, from, to); err != nil {
			resultErr = err
			logger.Error("warm trend", slog.Any("error", err))
			return resultErr
		}
	}

	logger.Info("completed statistics warmup", slog.Duration("duration", time.Since(now)))
	return resultErr
}

func (j *StatisticsWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskStatisticsWarmup))
	}
	return slog.Default().With(slog.String("job", TaskStatisticsWarmup))
}

func (j *StatisticsWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *StatisticsWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
