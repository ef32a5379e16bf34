package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// Define a custom registry
	Registry *prometheus.Registry

	SourceCountGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mongolastic_source_documents",
		Help: "The number of documents matching the extraction filter",
	}, []string{"database", "collection"})

	ExtractProgressGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mongolastic_extract_progress",
		Help: "The progress of the extraction, between 0 and 1",
	}, []string{"database", "collection"})

	ExtractReadCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mongolastic_extract_documents_read_total",
		Help: "The total number of documents read from the source cursor",
	}, []string{"database", "collection"})

	ExtractPageCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mongolastic_extract_pages_total",
		Help: "The total number of pages built from the source cursor",
	}, []string{"database", "collection"})

	IndexWriteCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mongolastic_index_documents_write_total",
		Help: "The total number of documents accepted by the destination",
	}, []string{"database", "collection"})

	IndexErrorTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mongolastic_index_documents_error_total",
		Help: "The total number of documents rejected by the destination",
	}, []string{"database", "collection", "error"})
)

func init() {
	Registry = prometheus.NewRegistry()
	Registry.MustRegister(SourceCountGauge)
	Registry.MustRegister(ExtractProgressGauge)
	Registry.MustRegister(ExtractReadCounter)
	Registry.MustRegister(ExtractPageCounter)
	Registry.MustRegister(IndexWriteCounter)
	Registry.MustRegister(IndexErrorTotal)
}
