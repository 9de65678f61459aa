package testplan

import "github.com/satyaki-up/testplan/internal/workitems"

// Tree is the result of one refresh. It is not modified after Resolve
// returns it.
type Tree struct {
	RefreshID    string              `json:"refresh_id"`
	Root         RootKind            `json:"root"`
	RootItem     *workitems.WorkItem `json:"root_item,omitempty"`
	Requirements []RequirementNode   `json:"requirements"`
}

type RequirementNode struct {
	Item       *workitems.WorkItem     `json:"item"`
	Type       *workitems.WorkItemType `json:"type,omitempty"`
	Acceptance workitems.Outcome       `json:"acceptance,omitempty"`
	TestCases  []TestCaseNode          `json:"test_cases"`
}

type TestCaseNode struct {
	Item    *workitems.WorkItem     `json:"item"`
	Type    *workitems.WorkItemType `json:"type,omitempty"`
	Outcome *workitems.TestPoint    `json:"outcome,omitempty"`
	Steps   []workitems.TestStep    `json:"steps"`
}

// IsEmpty reports whether there is nothing to show, either because no root
// was found or because the root has no requirements.
func (t *Tree) IsEmpty() bool {
	return t == nil || len(t.Requirements) == 0
}

func (t *Tree) TestCaseCount() int {
	if t == nil {
		return 0
	}
	n := 0
	for _, req := range t.Requirements {
		n += len(req.TestCases)
	}
	return n
}
