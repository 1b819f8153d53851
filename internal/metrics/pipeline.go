package metrics

import "github.com/prometheus/client_golang/prometheus"

// Pipeline Prometheus metrics.
var (
	ImagesAssembled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "colorsweep",
			Name:      "images_assembled_total",
			Help:      "Images placed into dimension-combination folders",
		},
	)

	ObjectsFetched = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "colorsweep",
			Name:      "objects_fetched_total",
			Help:      "Objects pulled from the object store",
		},
	)

	DocumentsIndexed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "colorsweep",
			Name:      "documents_indexed_total",
			Help:      "Documents submitted to the document store",
		},
		[]string{"index"},
	)

	DocumentsSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "colorsweep",
			Name:      "documents_skipped_total",
			Help:      "Documents skipped because their identity already existed",
		},
		[]string{"index"},
	)
)

func init() {
	prometheus.MustRegister(ImagesAssembled)
	prometheus.MustRegister(ObjectsFetched)
	prometheus.MustRegister(DocumentsIndexed)
	prometheus.MustRegister(DocumentsSkipped)
}
