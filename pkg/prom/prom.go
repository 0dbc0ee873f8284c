package prom

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	xhttp "github.com/retailpoint/pos-gateway/pkg/http"
	"github.com/retailpoint/pos-gateway/pkg/logger"
)

const (
	SystemSales    = "sales"
	SystemCheckout = "checkout"
)

const (
	MetricSaleProcessedTotal     = "processed_total"
	MetricSaleProcessingDuration = "processing_duration_seconds"
	MetricCheckoutTotal          = "requests_total"
	MetricCheckoutDuration       = "duration_seconds"
)

var createMetricLock = &sync.Mutex{}
var namespace = "none"

var MetricSystemEnabled = false

var counterVecs = make(map[string]*prometheus.CounterVec)
var histogramVecs = make(map[string]*prometheus.HistogramVec)

var defaultLabels prometheus.Labels

// Create registers the process-wide metric set. host/env become constant
// labels on every series.
func Create(host string, env string, nameSpace string) error {
	defaultLabels = prometheus.Labels{"env": env, "instance": host}
	namespace = nameSpace
	MetricSystemEnabled = true

	var err error
	hasError := func(e error) {
		if err == nil && e != nil {
			err = e
		}
	}

	hasError(createCounterVec(SystemSales, MetricSaleProcessedTotal, []string{"status"}))
	hasError(createHistogramVec(SystemSales, MetricSaleProcessingDuration, []string{"status"}))
	hasError(createCounterVec(SystemCheckout, MetricCheckoutTotal, []string{"status"}))
	hasError(createHistogramVec(SystemCheckout, MetricCheckoutDuration, []string{"status"}))

	return err
}

// ListenAndServer exposes the registry on its own fasthttp listener.
func ListenAndServer(port string, url string) {
	hh := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	s := xhttp.CreateServer()
	s.GET(url, hh)
	logger.Info("[metrics-server] listening...", "url", url)
	if err := s.ListenAndServe(port); err != nil {
		logger.Panic("[metrics-server] http listen error", "error", err)
	}
}

func AddSaleProcessed(status string) {
	if !MetricSystemEnabled {
		return
	}
	if c, ok := counterVecs[SystemSales+MetricSaleProcessedTotal]; ok {
		c.WithLabelValues(status).Inc()
	}
}

func AddCheckoutRequest(status string) {
	if !MetricSystemEnabled {
		return
	}
	if c, ok := counterVecs[SystemCheckout+MetricCheckoutTotal]; ok {
		c.WithLabelValues(status).Inc()
	}
}

func ObserveCheckoutDuration(seconds float64, status string) {
	if !MetricSystemEnabled {
		return
	}
	if h, ok := histogramVecs[SystemCheckout+MetricCheckoutDuration]; ok {
		h.WithLabelValues(status).Observe(seconds)
	}
}

func ObserveSaleProcessingDuration(seconds float64, status string) {
	if !MetricSystemEnabled {
		return
	}
	if h, ok := histogramVecs[SystemSales+MetricSaleProcessingDuration]; ok {
		h.WithLabelValues(status).Observe(seconds)
	}
}

func createCounterVec(subsystem, name string, labels []string) error {
	createMetricLock.Lock()
	defer createMetricLock.Unlock()

	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		ConstLabels: defaultLabels,
	}, labels)
	if err := prometheus.Register(c); err != nil {
		return err
	}
	counterVecs[subsystem+name] = c
	return nil
}

func createHistogramVec(subsystem, name string, labels []string) error {
	createMetricLock.Lock()
	defer createMetricLock.Unlock()

	h := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		Buckets:     prometheus.DefBuckets,
		ConstLabels: defaultLabels,
	}, labels)
	if err := prometheus.Register(h); err != nil {
		return err
	}
	histogramVecs[subsystem+name] = h
	return nil
}
