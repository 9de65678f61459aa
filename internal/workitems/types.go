package workitems

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	TypeRequirement = "Requirement"
	TypeFeature     = "Feature"
	TypeTestCase    = "Test Case"
)

type WorkItem struct {
	ID        int            `json:"id"`
	Rev       int            `json:"rev,omitempty"`
	Fields    map[string]any `json:"fields"`
	Relations []Relation     `json:"relations,omitempty"`
	HTMLURL   string         `json:"html_url,omitempty"`
}

func (w *WorkItem) Type() string {
	return w.FieldString(FieldWorkItemType)
}

func (w *WorkItem) Title() string {
	return w.FieldString(FieldTitle)
}

func (w *WorkItem) Project() string {
	return w.FieldString(FieldTeamProject)
}

func (w *WorkItem) StepScript() string {
	return w.FieldString(FieldSteps)
}

// ParentID returns the System.Parent reference, or 0 when the item has none.
func (w *WorkItem) ParentID() int {
	id, _ := w.FieldInt(FieldParent)
	return id
}

// FieldString returns a field rendered as a string. Missing fields yield "".
func (w *WorkItem) FieldString(name string) string {
	v, ok := w.Fields[name]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// FieldInt returns an integer field. JSON decoding produces float64 and the
// snapshot store produces int64, both are accepted along with numeric strings.
func (w *WorkItem) FieldInt(name string) (int, bool) {
	v, ok := w.Fields[name]
	if !ok || v == nil {
		return 0, false
	}
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

type WorkItemType struct {
	Name     string `json:"name"`
	IconID   string `json:"icon_id"`
	ColorHex string `json:"color"`
}

type Expand string

const (
	ExpandNone      Expand = ""
	ExpandRelations Expand = "relations"
)

// GetOptions narrows a work item read. Fields and Expand are mutually
// exclusive on the wire; readers favour Expand when both are set.
type GetOptions struct {
	Fields []string
	AsOf   *time.Time
	Expand Expand
}

type TestStep struct {
	Index          int    `json:"index"`
	Action         string `json:"action"`
	ExpectedResult string `json:"expected_result"`
}

type SuiteRef struct {
	ID     int `json:"id"`
	PlanID int `json:"plan_id"`
}

type TestPoint struct {
	ID            int       `json:"id"`
	TestCaseID    int       `json:"test_case_id"`
	Outcome       Outcome   `json:"outcome"`
	LastUpdated   time.Time `json:"last_updated"`
	Configuration string    `json:"configuration,omitempty"`
}
