package testplan

import (
	"github.com/google/uuid"

	"github.com/satyaki-up/testplan/internal/workitems"
)

// SuiteKey identifies a suite's point list in the test point cache.
type SuiteKey struct {
	PlanID  int
	SuiteID int
}

// Run holds the state of one refresh cycle. A Run is created at the start of
// a resolution and dropped with it, so type metadata and test points are
// never reused across refreshes.
type Run struct {
	ID      string
	Project string

	types  *memo[string, *workitems.WorkItemType]
	points *memo[SuiteKey, []workitems.TestPoint]
}

func NewRun(project string) *Run {
	return &Run{
		ID:      uuid.NewString(),
		Project: project,
		types:   newMemo[string, *workitems.WorkItemType](),
		points:  newMemo[SuiteKey, []workitems.TestPoint](),
	}
}
