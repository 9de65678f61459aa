package workitems

import "context"

// ItemReader reads work items and their type metadata. Implementations return
// an error wrapping ErrNotFound for absent items or types.
type ItemReader interface {
	GetWorkItem(ctx context.Context, project string, id int, opts GetOptions) (*WorkItem, error)
	GetWorkItemType(ctx context.Context, project, name string) (*WorkItemType, error)
}

// TestReader reads test management data.
type TestReader interface {
	GetSuitesByTestCaseID(ctx context.Context, testCaseID int) ([]SuiteRef, error)
	GetPoints(ctx context.Context, project string, planID, suiteID int) ([]TestPoint, error)
}
