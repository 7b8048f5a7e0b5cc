package observability

// Metric names (Prometheus / OpenTelemetry).
const (
	MetricNameHTTPRequests         = "http.server.request_count"
	MetricNameHTTPDuration         = "http.server.duration"
	MetricNameLLMGenerations       = "highlights_llm_generations_total"
	MetricNameLLMGenerateDuration  = "highlights_llm_generate_duration_seconds"
	MetricNameLLMQuotaRetries      = "highlights_llm_quota_retries_total"
	MetricNameVideosProcessed      = "highlights_videos_processed_total"
	MetricNameVideoProcessDuration = "highlights_video_process_duration_seconds"
	MetricNameSegmentsAnalyzed     = "highlights_segments_analyzed_total"
	MetricNameHighlightsAccepted   = "highlights_accepted_total"
	MetricNameStageDegradations    = "highlights_stage_degradations_total"
	MetricNameAnswers              = "highlights_answers_total"
	MetricNameAnswerDuration       = "highlights_answer_duration_seconds"
	MetricNameVectorFallbacks      = "highlights_vector_fallbacks_total"
	MetricNameQueryCacheLookups    = "highlights_query_cache_lookups_total"
)

// Generate outcomes for highlights_llm_generations_total.
const (
	GenerateOutcomeOK            = "ok"
	GenerateOutcomeFallbackQuota = "fallback_quota"
	GenerateOutcomeFallbackError = "fallback_error"
	GenerateOutcomeCanceled      = "canceled"
)

// Video outcomes for highlights_videos_processed_total.
const (
	VideoStatusOK       = "ok"
	VideoStatusNotFound = "not_found"
	VideoStatusFailed   = "failed"
)

// Highlight sources for highlights_accepted_total.
const (
	HighlightSourceModel    = "model"
	HighlightSourceEvidence = "evidence_fallback"
)

// Pipeline stages that degrade instead of failing.
const (
	StageTranscribe = "transcribe"
	StageProbe      = "probe"
	StageSegment    = "segment"
	StageSample     = "sample"
	StageDetect     = "detect"
)

// Answer modes for highlights_answers_total.
const (
	AnswerModeVector  = "vector"
	AnswerModeKeyword = "keyword"
	AnswerModeNone    = "none"
)

// Reasons the vector path handed over to keyword search.
const (
	VectorFallbackNoEmbedder  = "no_embedder"
	VectorFallbackEmbedError  = "embed_error"
	VectorFallbackSearchError = "search_error"
	VectorFallbackEmpty       = "empty"
)

var allowedProviders = map[string]bool{"gemini": true, "openai": true, "claude": true}

var allowedGenerateOutcomes = map[string]bool{
	GenerateOutcomeOK:            true,
	GenerateOutcomeFallbackQuota: true,
	GenerateOutcomeFallbackError: true,
	GenerateOutcomeCanceled:      true,
}

var allowedVideoStatuses = map[string]bool{
	VideoStatusOK:       true,
	VideoStatusNotFound: true,
	VideoStatusFailed:   true,
}

var allowedHighlightSources = map[string]bool{
	HighlightSourceModel:    true,
	HighlightSourceEvidence: true,
}

var allowedStages = map[string]bool{
	StageTranscribe: true,
	StageProbe:      true,
	StageSegment:    true,
	StageSample:     true,
	StageDetect:     true,
}

var allowedAnswerModes = map[string]bool{
	AnswerModeVector:  true,
	AnswerModeKeyword: true,
	AnswerModeNone:    true,
}

var allowedVectorFallbacks = map[string]bool{
	VectorFallbackNoEmbedder:  true,
	VectorFallbackEmbedError:  true,
	VectorFallbackSearchError: true,
	VectorFallbackEmpty:       true,
}

// normalize returns v if allowed, otherwise "unknown". Keeps label cardinality bounded.
func normalize(allowed map[string]bool, v string) string {
	if allowed[v] {
		return v
	}

	return "unknown"
}
