// Package testdata provides utilities for generating sample metrics data
// to test Grafana dashboards without using real production data.
package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics for testing dashboards. The HTTP series match the daemon's own
// Prometheus registry; the query series are OpenTelemetry instruments on
// the daemon and carry the names the collector gives them once exported
// to Prometheus (dots become underscores).
var (
	// Query metrics
	queriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tierd_queries_total",
			Help: "Total number of answered queries",
		},
		[]string{"query_type"},
	)
	queryErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tierd_query_errors_total",
			Help: "Total number of failed queries",
		},
	)
	tokensSaved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tierd_tokens_saved_total",
			Help: "Estimated tokens avoided versus full-content retrieval",
		},
		[]string{"query_type"},
	)
	documentsIngested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tierd_documents_ingested_total",
			Help: "Total number of ingested documents",
		},
	)
	queryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tierd_query_duration_seconds",
			Help:    "Time spent answering queries",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		},
		[]string{"query_type"},
	)
	savingRate = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tierd_query_saving_rate",
			Help:    "Per-query fraction of baseline tokens avoided",
			Buckets: []float64{-1.0, -0.5, 0.0, 0.2, 0.4, 0.6, 0.8, 0.9, 1.0},
		},
		[]string{"query_type"},
	)

	// HTTP metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tierd_http_requests_total",
			Help: "Total HTTP requests labeled by method, endpoint, and status code",
		},
		[]string{"method", "endpoint", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tierd_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds labeled by method and endpoint",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"method", "endpoint"},
	)
)

var queryTypes = []string{
	"factual_date",
	"administrative",
	"analytical",
	"creative",
	"factual_list",
	"factual",
	"general",
}

// savingRanges shape the fake saving rates per query type: summary-only
// answers skip most of the baseline, analytical queries load deeper tiers
// and can land below zero.
var savingRanges = map[string][2]float64{
	"factual_date":   {0.85, 0.99},
	"administrative": {0.85, 0.99},
	"analytical":     {-0.15, 0.55},
	"creative":       {0.30, 0.80},
	"factual_list":   {0.65, 0.95},
	"factual":        {0.80, 0.97},
	"general":        {0.40, 0.90},
}

// routes are the daemon's registered endpoints, used as the endpoint label
// the same way the server middleware uses the route template.
var routes = [][2]string{
	{"POST", "/api/v1/answer"},
	{"POST", "/api/v1/summarize"},
	{"POST", "/api/v1/ingest"},
	{"POST", "/api/v1/classify"},
	{"GET", "/api/v1/stats"},
	{"POST", "/api/v1/stats/reset"},
	{"GET", "/api/v1/documents"},
	{"GET", "/health"},
	{"GET", "/status"},
	{"GET", "/metrics"},
}

func init() {
	// Register all metrics
	prometheus.MustRegister(
		// Queries
		queriesTotal,
		queryErrors,
		tokensSaved,
		documentsIngested,
		queryDuration,
		savingRate,
		// HTTP
		httpRequestsTotal,
		httpRequestDuration,
	)
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		// The daemon itself defaults to 9090, so the sample server stays off it.
		port = "9091"
	}

	// Generate initial sample data
	generateSampleData()

	// Start background goroutine to continuously generate data
	ctx, cancel := context.WithCancel(context.Background())
	go generateContinuousData(ctx)

	// Serve metrics
	http.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    ":" + port,
		Handler: nil,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		cancel()
		server.Shutdown(context.Background())
	}()

	fmt.Printf("Sample metrics server running on http://localhost:%s/metrics\n", port)
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println("\nTo use with Prometheus, add this to prometheus.yml:")
	fmt.Printf("  - job_name: 'tierd-test'\n    static_configs:\n      - targets: ['localhost:%s']\n", port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal(err)
	}
}

// observeQuery records one fake answered query across every query instrument.
func observeQuery(queryType string) {
	r := savingRanges[queryType]
	saving := r[0] + rand.Float64()*(r[1]-r[0])

	queriesTotal.WithLabelValues(queryType).Inc()
	queryDuration.WithLabelValues(queryType).Observe(0.001 + rand.Float64()*0.02)
	savingRate.WithLabelValues(queryType).Observe(saving)
	if saving > 0 {
		tokensSaved.WithLabelValues(queryType).Add(float64(rand.Intn(2000) + 100))
	}
}

func generateSampleData() {
	// Generate query data
	for i := 0; i < 200; i++ {
		observeQuery(randomChoice(queryTypes))
	}
	for i := 0; i < 5; i++ {
		queryErrors.Inc()
	}

	// Generate ingest data
	documentsIngested.Add(float64(rand.Intn(30) + 10))

	// Generate HTTP data, weighted toward success
	statuses := []string{"200", "200", "200", "200", "200", "200", "400", "401", "429", "500"}
	for i := 0; i < 300; i++ {
		r := routes[rand.Intn(len(routes))]
		httpRequestsTotal.WithLabelValues(r[0], r[1], randomChoice(statuses)).Inc()
		httpRequestDuration.WithLabelValues(r[0], r[1]).Observe(rand.Float64() * 0.05)
	}
}

func generateContinuousData(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Add some random activity
			if rand.Float64() > 0.3 {
				observeQuery(randomChoice(queryTypes))
				httpRequestsTotal.WithLabelValues("POST", "/api/v1/answer", "200").Inc()
				httpRequestDuration.WithLabelValues("POST", "/api/v1/answer").Observe(0.002 + rand.Float64()*0.03)
			}
			if rand.Float64() > 0.9 {
				queryErrors.Inc()
				httpRequestsTotal.WithLabelValues("POST", "/api/v1/answer", "500").Inc()
			}
			if rand.Float64() > 0.8 {
				documentsIngested.Inc()
				httpRequestsTotal.WithLabelValues("POST", "/api/v1/ingest", "200").Inc()
				httpRequestDuration.WithLabelValues("POST", "/api/v1/ingest").Observe(0.005 + rand.Float64()*0.05)
			}
			if rand.Float64() > 0.5 {
				httpRequestsTotal.WithLabelValues("GET", "/api/v1/stats", "200").Inc()
				httpRequestDuration.WithLabelValues("GET", "/api/v1/stats").Observe(rand.Float64() * 0.005)
			}
			// The scrape itself shows up in the request counters.
			httpRequestsTotal.WithLabelValues("GET", "/metrics", "200").Inc()
			httpRequestDuration.WithLabelValues("GET", "/metrics").Observe(rand.Float64() * 0.01)
		}
	}
}

func randomChoice(choices []string) string {
	return choices[rand.Intn(len(choices))]
}
