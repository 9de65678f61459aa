package testplan

import (
	"context"
	"errors"
	"fmt"

	"github.com/satyaki-up/testplan/internal/workitems"
)

// ResolveOutcome returns the latest test point with an outcome for a test
// case, or nil. Only the first suite containing the case is consulted. Point
// lists are cached per plan and suite for the lifetime of run.
func (r *Resolver) ResolveOutcome(ctx context.Context, run *Run, testCase *workitems.WorkItem) (*workitems.TestPoint, error) {
	suites, err := r.tests.GetSuitesByTestCaseID(ctx, testCase.ID)
	if err != nil {
		if errors.Is(err, workitems.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get suites for test case %d: %w", testCase.ID, err)
	}
	if len(suites) == 0 {
		return nil, nil
	}

	key := SuiteKey{PlanID: suites[0].PlanID, SuiteID: suites[0].ID}
	points, err := run.points.get(ctx, key, func(ctx context.Context) ([]workitems.TestPoint, error) {
		pts, err := r.tests.GetPoints(ctx, run.Project, key.PlanID, key.SuiteID)
		if errors.Is(err, workitems.ErrNotFound) {
			return nil, nil
		}
		return pts, err
	})
	if err != nil {
		return nil, fmt.Errorf("get points for plan %d suite %d: %w", key.PlanID, key.SuiteID, err)
	}

	return LatestOutcome(points, testCase.ID), nil
}

// LatestOutcome picks, among the points of one test case, the most recently
// updated one that carries an outcome.
func LatestOutcome(points []workitems.TestPoint, testCaseID int) *workitems.TestPoint {
	var latest *workitems.TestPoint
	for i := range points {
		p := &points[i]
		if p.TestCaseID != testCaseID || !p.Outcome.IsSet() {
			continue
		}
		if latest == nil || p.LastUpdated.After(latest.LastUpdated) {
			latest = p
		}
	}
	if latest == nil {
		return nil
	}
	out := *latest
	return &out
}
