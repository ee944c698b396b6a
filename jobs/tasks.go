package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStatisticsWarmup pre-populates the statistics caches.
	TaskStatisticsWarmup = "stats:warmup"
	// TaskStatisticsInvalidate bumps the statistics cache version after
	// order or purchase churn.
	TaskStatisticsInvalidate = "stats:invalidate"
	// TaskSuggestionsRecompute refreshes purchase suggestions.
	TaskSuggestionsRecompute = "stats:suggestions"
)

// StatisticsWarmupPayload bounds the warmup window.
type StatisticsWarmupPayload struct {
	Days int `json:"days"`
}

// NewStatisticsWarmupTask constructs an Asynq task for cache warmup.
func NewStatisticsWarmupTask(payload StatisticsWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStatisticsWarmup, data), nil
}

// NewStatisticsInvalidateTask constructs a cache invalidation task.
func NewStatisticsInvalidateTask() *asynq.Task {
	return asynq.NewTask(TaskStatisticsInvalidate, nil)
}

// SuggestionsPayload carries the suggestion tuning knobs.
type SuggestionsPayload struct {
	DaysToAnalyze   int `json:"days_to_analyze"`
	LeadTimeDays    int `json:"lead_time_days"`
	SafetyStockDays int `json:"safety_stock_days"`
}

// NewSuggestionsRecomputeTask constructs a suggestion recompute task.
func NewSuggestionsRecomputeTask(payload SuggestionsPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSuggestionsRecompute, data), nil
}
