package ports

// Metric names recorded by the ranking service and runner.
const (
	MetricSessionsStarted   = "thurstone_sessions_started_total"
	MetricSessionsCompleted = "thurstone_sessions_completed_total"
	MetricJudgments         = "thurstone_judgments_total"
	MetricJudgeErrors       = "thurstone_judge_errors_total"
	MetricScoringLatency    = "thurstone_scoring_duration_seconds"
	MetricSessionProgress   = "thurstone_session_progress_ratio"
)
