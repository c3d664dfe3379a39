// Package telemetry exposes the Prometheus metrics published by the crawl
// engine.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts HTTP fetch attempts, success or failure.
	RequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "normcrawler_requests_total",
		Help: "The total number of HTTP fetch attempts issued.",
	})
	// RequestErrorsTotal counts fetch attempts that ended in a transport error.
	RequestErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "normcrawler_request_errors_total",
		Help: "The total number of fetch attempts that failed at the transport level.",
	})
	// ProbesTotal counts last-number discovery runs.
	ProbesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "normcrawler_probes_total",
		Help: "The total number of last-number discovery probes performed.",
	})
	// DocumentsCreatedTotal counts documents indexed for the first time.
	DocumentsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "normcrawler_documents_created_total",
		Help: "The total number of newly indexed documents.",
	})
	// DocumentsUpdatedTotal counts re-indexed documents whose content changed.
	DocumentsUpdatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "normcrawler_documents_updated_total",
		Help: "The total number of documents rewritten after a content change.",
	})
	// DocumentsSkippedTotal counts fetches that produced no index write.
	DocumentsSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "normcrawler_documents_skipped_total",
		Help: "The total number of fetches that required no index write.",
	})
	// BudgetExhaustedTotal counts runs cut short by budget exhaustion.
	BudgetExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "normcrawler_budget_exhausted_total",
		Help: "The total number of runs that stopped on budget exhaustion.",
	})
)
