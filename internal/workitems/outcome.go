package workitems

import "strings"

// Outcome is the result state of a test point, or the user acceptance status
// of a requirement. Unknown vendor values are kept verbatim.
type Outcome string

const (
	OutcomeUnspecified   Outcome = ""
	OutcomePassed        Outcome = "Passed"
	OutcomeFailed        Outcome = "Failed"
	OutcomeActive        Outcome = "Active"
	OutcomeBlocked       Outcome = "Blocked"
	OutcomeNotApplicable Outcome = "NotApplicable"
	OutcomePaused        Outcome = "Paused"
	OutcomeInProgress    Outcome = "InProgress"
)

var knownOutcomes = map[string]Outcome{
	"":              OutcomeUnspecified,
	"unspecified":   OutcomeUnspecified,
	"none":          OutcomeUnspecified,
	"passed":        OutcomePassed,
	"failed":        OutcomeFailed,
	"active":        OutcomeActive,
	"blocked":       OutcomeBlocked,
	"notapplicable": OutcomeNotApplicable,
	"paused":        OutcomePaused,
	"inprogress":    OutcomeInProgress,
}

func ParseOutcome(s string) Outcome {
	s = strings.TrimSpace(s)
	key := strings.ToLower(strings.ReplaceAll(s, " ", ""))
	if o, ok := knownOutcomes[key]; ok {
		return o
	}
	return Outcome(s)
}

func (o Outcome) IsSet() bool {
	return o != OutcomeUnspecified
}

// Category is the four-way status shown next to a node.
type Category string

const (
	CategoryNone    Category = ""
	CategoryPassed  Category = "passed"
	CategoryFailed  Category = "failed"
	CategoryActive  Category = "active"
	CategoryBlocked Category = "blocked"
)

// Category maps this outcome on its own; callers must not borrow a sibling
// node's outcome.
func (o Outcome) Category() Category {
	switch o {
	case OutcomePassed:
		return CategoryPassed
	case OutcomeFailed:
		return CategoryFailed
	case OutcomeActive, OutcomeInProgress, OutcomePaused:
		return CategoryActive
	case OutcomeBlocked:
		return CategoryBlocked
	default:
		return CategoryNone
	}
}
