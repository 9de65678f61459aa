package testplan

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satyaki-up/testplan/internal/workitems"
)

// featureFixture builds a feature with two numbered requirements, one test
// case each, sharing a suite.
func featureFixture() *fakeService {
	svc := newFakeService()
	svc.addType(workitems.TypeRequirement, "icon_book", "009CCC")
	svc.addType(workitems.TypeTestCase, "icon_test_case", "004B50")

	svc.add(1, workitems.TypeFeature, "Accounts", 0, childLink(10), childLink(11))
	login := svc.add(10, workitems.TypeRequirement, "2. Login", 1, parentLink(1), testedByLink(200))
	login.Fields[workitems.DefaultUserAcceptanceField] = "Blocked"
	svc.add(11, workitems.TypeRequirement, "1. Signup", 1, parentLink(1), testedByLink(100))

	svc.add(100, workitems.TypeTestCase, "Sign up with email", 0)
	tc := svc.add(200, workitems.TypeTestCase, "Log in", 0)
	tc.Fields[workitems.FieldSteps] = stepScript(
		[2]string{"<div>Open login</div>", "<div>Form shown</div>"},
		[2]string{"<div>Submit</div>", "<div>Dashboard shown</div>"},
	)

	svc.addSuite(100, 5, 50)
	svc.addSuite(200, 5, 50)
	svc.addPoint(5, 50, workitems.TestPoint{ID: 1, TestCaseID: 200, Outcome: workitems.OutcomePassed, LastUpdated: t1})
	svc.addPoint(5, 50, workitems.TestPoint{ID: 2, TestCaseID: 100, Outcome: workitems.OutcomeUnspecified, LastUpdated: t1})
	return svc
}

func TestResolveFeatureEndToEnd(t *testing.T) {
	svc := featureFixture()
	r := newTestResolver(t, svc)

	tree, err := r.Resolve(context.Background(), Start{ID: 1, Type: workitems.TypeFeature, Project: testProject})
	require.NoError(t, err)
	require.False(t, tree.IsEmpty())

	assert.NotEmpty(t, tree.RefreshID)
	assert.Equal(t, RootFeature, tree.Root)
	require.Len(t, tree.Requirements, 2)

	signup := tree.Requirements[0]
	assert.Equal(t, 11, signup.Item.ID)
	require.Len(t, signup.TestCases, 1)
	assert.Equal(t, 100, signup.TestCases[0].Item.ID)
	assert.Empty(t, signup.TestCases[0].Steps)
	assert.Nil(t, signup.TestCases[0].Outcome)
	assert.Equal(t, workitems.OutcomeUnspecified, signup.Acceptance)

	login := tree.Requirements[1]
	assert.Equal(t, 10, login.Item.ID)
	assert.Equal(t, workitems.OutcomeBlocked, login.Acceptance)
	require.NotNil(t, login.Type)
	assert.Equal(t, "009CCC", login.Type.ColorHex)
	require.Len(t, login.TestCases, 1)

	tc := login.TestCases[0]
	assert.Equal(t, 200, tc.Item.ID)
	require.NotNil(t, tc.Type)
	assert.Equal(t, workitems.TypeTestCase, tc.Type.Name)
	require.Len(t, tc.Steps, 2)
	assert.Equal(t, workitems.TestStep{Index: 1, Action: "Open login", ExpectedResult: "Form shown"}, tc.Steps[0])
	assert.Equal(t, workitems.TestStep{Index: 2, Action: "Submit", ExpectedResult: "Dashboard shown"}, tc.Steps[1])
	require.NotNil(t, tc.Outcome)
	assert.Equal(t, workitems.OutcomePassed, tc.Outcome.Outcome)

	assert.Equal(t, 2, tree.TestCaseCount())

	// One metadata fetch per type and one point fetch per suite.
	assert.Equal(t, 1, svc.typeCalls[workitems.TypeRequirement])
	assert.Equal(t, 1, svc.typeCalls[workitems.TypeTestCase])
	assert.Equal(t, 1, svc.pointCallsFor(5, 50))
}

func TestResolveFromTaskUnderRequirement(t *testing.T) {
	svc := featureFixture()
	svc.add(300, "Task", "Build login form", 10, parentLink(10))

	r := newTestResolver(t, svc)
	tree, err := r.Resolve(context.Background(), Start{ID: 300, Type: "Task", ParentID: 10, Project: testProject})
	require.NoError(t, err)

	assert.Equal(t, RootRequirement, tree.Root)
	require.Len(t, tree.Requirements, 1)
	assert.Equal(t, 10, tree.Requirements[0].Item.ID)
	assert.Len(t, tree.Requirements[0].TestCases, 1)
}

func TestResolveEmptyWhenChainEnds(t *testing.T) {
	svc := newFakeService()
	svc.add(5, "Epic", "Platform", 0)
	svc.add(20, "Task", "Chore", 5)

	r := newTestResolver(t, svc)
	tree, err := r.Resolve(context.Background(), Start{ID: 20, Type: "Task", ParentID: 5, Project: testProject})
	require.NoError(t, err)
	assert.True(t, tree.IsEmpty())
	assert.Equal(t, RootNone, tree.Root)
	assert.Nil(t, tree.RootItem)
}

func TestResolveFeatureWithoutRequirementsIsEmpty(t *testing.T) {
	svc := newFakeService()
	svc.add(1, workitems.TypeFeature, "Accounts", 0, childLink(2))
	svc.add(2, "Task", "Spike", 1)

	r := newTestResolver(t, svc)
	tree, err := r.Resolve(context.Background(), Start{ID: 1, Type: workitems.TypeFeature, Project: testProject})
	require.NoError(t, err)
	assert.Equal(t, RootFeature, tree.Root)
	assert.True(t, tree.IsEmpty())
}

func TestResolveTestCaseWithoutSuiteKeepsSteps(t *testing.T) {
	svc := newFakeService()
	svc.add(10, workitems.TypeRequirement, "Login", 0, testedByLink(100))
	tc := svc.add(100, workitems.TypeTestCase, "Log in", 0)
	tc.Fields[workitems.FieldSteps] = stepScript([2]string{"<p>Open</p>", "<p>Shown</p>"})

	r := newTestResolver(t, svc)
	tree, err := r.Resolve(context.Background(), Start{ID: 10, Type: workitems.TypeRequirement, Project: testProject})
	require.NoError(t, err)

	require.Len(t, tree.Requirements, 1)
	require.Len(t, tree.Requirements[0].TestCases, 1)
	node := tree.Requirements[0].TestCases[0]
	assert.Nil(t, node.Outcome)
	assert.Nil(t, node.Type)
	assert.Len(t, node.Steps, 1)
}

func TestResolveEachRefreshUsesFreshCaches(t *testing.T) {
	svc := featureFixture()
	r := newTestResolver(t, svc)
	start := Start{ID: 1, Type: workitems.TypeFeature, Project: testProject}

	first, err := r.Resolve(context.Background(), start)
	require.NoError(t, err)

	// The outcome changes between refreshes, e.g. after a save.
	svc.points[SuiteKey{PlanID: 5, SuiteID: 50}][0].Outcome = workitems.OutcomeFailed

	second, err := r.Resolve(context.Background(), start)
	require.NoError(t, err)

	assert.NotEqual(t, first.RefreshID, second.RefreshID)
	assert.Equal(t, workitems.OutcomePassed, first.Requirements[1].TestCases[0].Outcome.Outcome)
	assert.Equal(t, workitems.OutcomeFailed, second.Requirements[1].TestCases[0].Outcome.Outcome)
	assert.Equal(t, 2, svc.pointCallsFor(5, 50))
	assert.Equal(t, 2, svc.typeCalls[workitems.TypeTestCase])
}

func TestResolvePropagatesTransportFailure(t *testing.T) {
	boom := errors.New("tls handshake timeout")
	svc := featureFixture()
	svc.itemErr[200] = boom

	r := newTestResolver(t, svc)
	_, err := r.Resolve(context.Background(), Start{ID: 1, Type: workitems.TypeFeature, Project: testProject})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}
