package markers

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/myplaces/placemap/internal/markers"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
