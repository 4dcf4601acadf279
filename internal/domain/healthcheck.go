package domain

import "time"

// HealthCheckRequest selects the source products of a batch run
type HealthCheckRequest struct {
	ManufacturerID int64  `json:"manufacturerId"`
	Offset         int    `json:"offset"`
	Limit          int    `json:"limit"` // 0 means every product
	Actor          string `json:"actor"`
}

// PairStatus is the outcome of one product/manufacturer pair
type PairStatus string

const (
	PairFound    PairStatus = "found"
	PairNotFound PairStatus = "not_found"
	PairFailed   PairStatus = "failed"
)

// HealthCheckRow reports one source product against one target manufacturer
type HealthCheckRow struct {
	ProductID            int64            `json:"productId"`
	TargetManufacturerID int64            `json:"targetManufacturerId"`
	Status               PairStatus       `json:"status"`
	AnalogID             int64            `json:"analogId,omitempty"`
	CategoryID           int64            `json:"categoryId,omitempty"`
	Source               ResolutionSource `json:"source,omitempty"`
	AuditIDs             []int64          `json:"auditIds,omitempty"`
	Error                string           `json:"error,omitempty"`
}

// HealthCheckReport is the outcome of a batch run
type HealthCheckReport struct {
	RunID          string           `json:"runId"`
	ManufacturerID int64            `json:"manufacturerId"`
	StartedAt      time.Time        `json:"startedAt"`
	FinishedAt     time.Time        `json:"finishedAt"`
	Products       int              `json:"products"`
	Targets        int              `json:"targets"`
	Found          int              `json:"found"`
	NotFound       int              `json:"notFound"`
	Failed         int              `json:"failed"`
	Rows           []HealthCheckRow `json:"rows"`
}
