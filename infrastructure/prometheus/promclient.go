package promclient

import (
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var OpenOrderBooksGauge = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "bitfinex_open_order_books",
		Help: "number of live order book subscriptions",
	},
)

var BookIntegrityFailures = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "bitfinex_book_integrity_failures_total",
		Help: "checksum mismatches and desync deletions fatal to a subscription",
	},
)

var VerifiedBookUpdates = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "bitfinex_verified_book_updates_total",
		Help: "book snapshots published after a successful checksum",
	},
)

func StartPromClientServer(addr string) {
	reg := prometheus.NewRegistry()
	promHandler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})

	reg.MustRegister(OpenOrderBooksGauge)
	reg.MustRegister(BookIntegrityFailures)
	reg.MustRegister(VerifiedBookUpdates)
	reg.MustRegister(collectors.NewGoCollector())

	mux := http.NewServeMux()
	mux.Handle("/metrics", promHandler)
	log.Printf("prometheus server listening at %s", addr)

	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
