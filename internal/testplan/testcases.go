package testplan

import (
	"context"
	"slices"

	"github.com/satyaki-up/testplan/internal/workitems"
)

// ResolveTestCases returns the test cases linked to a requirement through
// tested-by relations, ascending by id.
func (r *Resolver) ResolveTestCases(ctx context.Context, run *Run, requirement *workitems.WorkItem) ([]*workitems.WorkItem, error) {
	ids := workitems.TargetIDs(requirement.Relations, workitems.RelationTestedBy)
	testCases, err := r.fetchAll(ctx, run, ids, workitems.GetOptions{})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(testCases, byID)
	return testCases, nil
}
