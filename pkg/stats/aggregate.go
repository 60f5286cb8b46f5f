package stats

import (
	"time"

	"github.com/samber/lo"
)

// Status is the lifecycle state of a report.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
	StatusReviewed  Status = "reviewed"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusReviewed, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Final reports whether an administrator decision locks the report against
// further edits and submissions. Rejected reports stay editable.
func (s Status) Final() bool {
	return s == StatusReviewed || s == StatusApproved
}

// DefaultAcceptable is used when a selection names no statuses.
var DefaultAcceptable = []Status{StatusSubmitted}

// Report is the aggregation view of one center's submission for one period.
type Report struct {
	ID             string
	HealthCenterID string
	PeriodStart    time.Time
	Status         Status
	Data           TopicMap
}

// AggregateReports folds MergeMaps over the reports' data starting from an empty map.
// The result does not depend on report order.
func AggregateReports(reports []Report) TopicMap {
	acc := TopicMap{}
	for _, r := range reports {
		acc = MergeMaps(acc, r.Data)
	}
	return acc
}

// SelectReportsForPeriod keeps the reports whose PeriodStart falls inside the
// resolved range and whose status is acceptable. Drafts never qualify.
func SelectReportsForPeriod(all []Report, q PeriodQuery, acceptable []Status, loc *time.Location) ([]Report, error) {
	r, err := q.Resolve(loc)
	if err != nil {
		return nil, err
	}
	return SelectInRange(all, r, acceptable), nil
}

// SelectInRange applies the selection rules of SelectReportsForPeriod to an already resolved range.
func SelectInRange(all []Report, r Range, acceptable []Status) []Report {
	if len(acceptable) == 0 {
		acceptable = DefaultAcceptable
	}
	allowed := lo.SliceToMap(acceptable, func(s Status) (Status, struct{}) { return s, struct{}{} })
	delete(allowed, StatusDraft)

	return lo.Filter(all, func(rep Report, _ int) bool {
		if _, ok := allowed[rep.Status]; !ok {
			return false
		}
		return r.Contains(rep.PeriodStart)
	})
}

// Consolidated is the network-wide aggregate for one period.
type Consolidated struct {
	Period       Range    `json:"period"`
	TotalCenters int      `json:"totalCenters"`
	TotalReports int      `json:"totalReports"`
	Consolidated TopicMap `json:"consolidated"`
}

// BuildConsolidatedReport selects the qualifying reports and merges them. When
// nothing qualifies Consolidated is nil and both counts are zero.
func BuildConsolidatedReport(all []Report, q PeriodQuery, acceptable []Status, loc *time.Location) (Consolidated, error) {
	r, err := q.Resolve(loc)
	if err != nil {
		return Consolidated{}, err
	}
	return ConsolidateRange(all, r, acceptable), nil
}

// ConsolidateRange is BuildConsolidatedReport for an already resolved range.
func ConsolidateRange(all []Report, r Range, acceptable []Status) Consolidated {
	selected := SelectInRange(all, r, acceptable)
	out := Consolidated{Period: r}
	if len(selected) == 0 {
		return out
	}
	out.TotalReports = len(selected)
	out.TotalCenters = len(lo.Uniq(lo.Map(selected, func(rep Report, _ int) string { return rep.HealthCenterID })))
	out.Consolidated = AggregateReports(selected)
	return out
}
