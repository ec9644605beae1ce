package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates storage is unreachable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status        Status
	Checks        map[string]CheckResult
	SchemaVersion string
	Items         int
}

// Service coordinates health checks.
type Service struct {
	storage StoragePinger
	index   IndexCounter
	version string
}

// New creates a Service. index can be nil.
func New(storage StoragePinger, index IndexCounter, schemaVersion string) *Service {
	return &Service{storage: storage, index: index, version: schemaVersion}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)
	r := Report{Status: Healthy, Checks: checks, SchemaVersion: s.version}

	if err := s.storage.Ping(ctx); err != nil {
		checks["storage"] = CheckError
		r.Status = Unhealthy
	} else {
		checks["storage"] = CheckOK
	}

	if s.index != nil {
		n, err := s.index.Count(ctx)
		if err != nil {
			checks["index"] = CheckError
			if r.Status == Healthy {
				r.Status = Degraded
			}
		} else {
			checks["index"] = CheckOK
			r.Items = n
		}
	}

	return r
}
