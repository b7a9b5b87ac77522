package testing

import (
	"time"

	models "e2e-infra/poolserver/internal/model"
)

// Fixtures 提供测试数据
type Fixtures struct{}

// NewFixtures creates a new fixtures instance
func NewFixtures() *Fixtures {
	return &Fixtures{}
}

// HealthySample returns a telemetry sample from a healthy pool
func (f *Fixtures) HealthySample() *models.TelemetrySample {
	return &models.TelemetrySample{
		ID:           1,
		SampledAt:    time.Now(),
		HealthScore:  100,
		Active:       2,
		Waiting:      0,
		TotalCreated: 10,
		AvgAcquireUs: 800,
	}
}

// DegradedSample returns a telemetry sample from a pool under EPIPE pressure
func (f *Fixtures) DegradedSample() *models.TelemetrySample {
	return &models.TelemetrySample{
		ID:           2,
		SampledAt:    time.Now(),
		HealthScore:  45,
		Active:       5,
		Waiting:      4,
		TotalCreated: 40,
		Failed:       8,
		Retried:      12,
		EPIPEErrors:  14,
		AvgAcquireUs: 250000,
	}
}
