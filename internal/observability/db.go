package observability

import (
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"
)

// InstrumentDB registers the GORM OpenTelemetry plugin on db so every query
// becomes a child span of the request that issued it. Query metrics are left
// to the HTTP and resolver Prometheus collectors.
func InstrumentDB(db *gorm.DB) error {
	return db.Use(tracing.NewPlugin(tracing.WithoutMetrics()))
}
