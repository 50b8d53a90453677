package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the tracker services

var (
	// API Call metrics
	APICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nfl_api_calls_total",
			Help: "Total number of outbound API calls",
		},
		[]string{"endpoint", "status"},
	)

	APICallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nfl_api_call_duration_seconds",
			Help:    "Duration of outbound API calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// Database metrics
	DBQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nfl_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "table", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nfl_db_query_duration_seconds",
			Help:    "Duration of database queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nfl_db_connections_active",
			Help: "Number of active database connections",
		},
	)

	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nfl_db_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	// Cloud sync metrics
	SyncOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nfl_sync_operations_total",
			Help: "Total number of cloud sync operations",
		},
		[]string{"type", "status"},
	)

	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nfl_sync_duration_seconds",
			Help:    "Duration of cloud sync operations in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"type"},
	)

	LastSuccessfulSync = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nfl_last_successful_sync_timestamp",
			Help: "Timestamp of last successful sync operation",
		},
	)

	// Score ingestion metrics
	IngestionResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nfl_ingestion_results_total",
			Help: "Scoreboard results by outcome (updated, unchanged, unmatched)",
		},
		[]string{"outcome"},
	)

	DroppedTeamsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nfl_ingestion_dropped_total",
			Help: "Scoreboard events dropped because a team could not be mapped",
		},
	)

	CompletedGames = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nfl_completed_games",
			Help: "Number of completed games in the registry",
		},
	)

	LiveGames = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nfl_live_games",
			Help: "Number of games currently in progress",
		},
	)

	// Prediction metrics
	StoredPredictions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nfl_stored_predictions",
			Help: "Number of stored predictions by category",
		},
		[]string{"category"},
	)

	AccuracyPercent = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nfl_accuracy_percent",
			Help: "Latest computed prediction accuracy",
		},
		[]string{"kind"},
	)

	// HTTP API metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nfl_http_requests_total",
			Help: "Total number of API requests served",
		},
		[]string{"route", "method", "code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nfl_http_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nfl_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	// Worker metrics
	// System metrics
	SystemUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nfl_system_uptime_seconds",
			Help: "Process uptime in seconds",
		},
	)

	WorkerLoopIterations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nfl_worker_loop_iterations_total",
			Help: "Total number of score refresh iterations",
		},
	)

	WorkerLoopDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nfl_worker_loop_duration_seconds",
			Help:    "Duration of score refresh iterations in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120},
		},
	)
)

// RecordAPICall records an API call metric
func RecordAPICall(endpoint, status string, duration float64) {
	APICallsTotal.WithLabelValues(endpoint, status).Inc()
	APICallDuration.WithLabelValues(endpoint).Observe(duration)
}

// RecordDBQuery records a database query metric
func RecordDBQuery(operation, table, status string, duration float64) {
	DBQueriesTotal.WithLabelValues(operation, table, status).Inc()
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration)
}

// RecordSync records a cloud sync operation
func RecordSync(syncType, status string, duration float64) {
	SyncOperationsTotal.WithLabelValues(syncType, status).Inc()
	SyncDuration.WithLabelValues(syncType).Observe(duration)

	if status == "success" {
		LastSuccessfulSync.SetToCurrentTime()
	}
}

// RecordIngestion records the outcome counts of one score refresh
func RecordIngestion(updated, unchanged, unmatched, dropped int) {
	IngestionResultsTotal.WithLabelValues("updated").Add(float64(updated))
	IngestionResultsTotal.WithLabelValues("unchanged").Add(float64(unchanged))
	IngestionResultsTotal.WithLabelValues("unmatched").Add(float64(unmatched))
	DroppedTeamsTotal.Add(float64(dropped))
}

// UpdateGameStats updates registry game gauges
func UpdateGameStats(completed, live int) {
	CompletedGames.Set(float64(completed))
	LiveGames.Set(float64(live))
}

// UpdatePredictionStats updates stored prediction gauges
func UpdatePredictionStats(games, teamRecords int) {
	StoredPredictions.WithLabelValues("games").Set(float64(games))
	StoredPredictions.WithLabelValues("team_records").Set(float64(teamRecords))
}

// UpdateAccuracy records the latest accuracy percentages
func UpdateAccuracy(gamePercent, recordPercent int) {
	AccuracyPercent.WithLabelValues("games").Set(float64(gamePercent))
	AccuracyPercent.WithLabelValues("team_records").Set(float64(recordPercent))
}

// RecordHTTPRequest records a served API request
func RecordHTTPRequest(route, method, code string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(route, method, code).Inc()
	HTTPRequestDuration.WithLabelValues(route).Observe(duration)
}

// RecordError records an error
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

// UpdateDBConnectionStats updates database connection pool statistics
func UpdateDBConnectionStats(active, idle int32) {
	DBConnectionsActive.Set(float64(active))
	DBConnectionsIdle.Set(float64(idle))
}

// RecordWorkerIteration records a worker loop iteration
func RecordWorkerIteration(duration float64) {
	WorkerLoopIterations.Inc()
	WorkerLoopDuration.Observe(duration)
}
