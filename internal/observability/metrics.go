// Package observability provides logging, metrics, and tracing helpers
// shared by the HTTP server, the assessment worker and the adapters.
package observability

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	AIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_requests_total",
			Help: "Total number of AI requests by provider and operation",
		},
		[]string{"provider", "operation"},
	)
	AIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_request_duration_seconds",
			Help:    "AI request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"provider", "operation"},
	)

	// QuestionsIssuedTotal tracks where emitted questions came from:
	// scripted opener, model generation, or the fallback bank.
	QuestionsIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interview_questions_issued_total",
			Help: "Questions issued to candidates by phase and source",
		},
		[]string{"phase", "source"},
	)
	AnswerScoreHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "interview_answer_score",
			Help:    "Distribution of per-answer scores ([0,100])",
			Buckets: []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)
	TranscriptionFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "interview_transcription_failures_total",
			Help: "Answers recorded with the transcription failure sentinel",
		},
	)
	RecoveryOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interview_json_recovery_total",
			Help: "Structured-output recovery outcomes by terminal rung",
		},
		[]string{"outcome"},
	)

	AssessmentsEnqueuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "assessments_enqueued_total",
			Help: "Total number of assessment tasks enqueued",
		},
	)
	AssessmentsProcessing = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "assessments_processing",
			Help: "Number of assessment tasks currently processing",
		},
	)
	AssessmentsCompletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "assessments_completed_total",
			Help: "Total number of assessment tasks completed",
		},
	)
	AssessmentsFailedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "assessments_failed_total",
			Help: "Total number of assessment tasks failed",
		},
	)
)

// InitMetrics registers all collectors with the default registry.
func InitMetrics() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(AIRequestsTotal)
	prometheus.MustRegister(AIRequestDuration)
	prometheus.MustRegister(QuestionsIssuedTotal)
	prometheus.MustRegister(AnswerScoreHistogram)
	prometheus.MustRegister(TranscriptionFailuresTotal)
	prometheus.MustRegister(RecoveryOutcomesTotal)
	prometheus.MustRegister(AssessmentsEnqueuedTotal)
	prometheus.MustRegister(AssessmentsProcessing)
	prometheus.MustRegister(AssessmentsCompletedTotal)
	prometheus.MustRegister(AssessmentsFailedTotal)
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		// Route pattern may be unavailable outside the chi router.
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			route = r.URL.Path
		}
		HTTPRequestsTotal.WithLabelValues(route, r.Method, http.StatusText(ww.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(dur)
	})
}

// StartAssessment marks one assessment task as processing.
func StartAssessment() { AssessmentsProcessing.Inc() }

// CompleteAssessment marks one assessment task as done.
func CompleteAssessment() {
	AssessmentsProcessing.Dec()
	AssessmentsCompletedTotal.Inc()
}

// FailAssessment marks one assessment task as failed.
func FailAssessment() {
	AssessmentsProcessing.Dec()
	AssessmentsFailedTotal.Inc()
}

// ObserveQuestion records an emitted question by phase and source.
func ObserveQuestion(phase, source string) {
	QuestionsIssuedTotal.WithLabelValues(phase, source).Inc()
}

// ObserveScore records a per-answer score.
func ObserveScore(score int) {
	if score >= 0 && score <= 100 {
		AnswerScoreHistogram.Observe(float64(score))
	}
}
