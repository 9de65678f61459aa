package workitems

import (
	"net/url"
	"strconv"
	"strings"
)

type RelationKind string

const (
	RelationParent   RelationKind = "parent"
	RelationChild    RelationKind = "child"
	RelationTestedBy RelationKind = "tested_by"
	RelationOther    RelationKind = "other"
)

// Link type reference names as reported in WorkItemRelation.rel.
const (
	RelHierarchyReverse = "System.LinkTypes.Hierarchy-Reverse"
	RelHierarchyForward = "System.LinkTypes.Hierarchy-Forward"
	RelTestedByForward  = "Microsoft.VSTS.Common.TestedBy-Forward"
)

type Relation struct {
	Kind     RelationKind `json:"kind"`
	TargetID int          `json:"target_id"`
	Rel      string       `json:"rel"`
	URL      string       `json:"url"`
}

func KindOf(rel string) RelationKind {
	switch rel {
	case RelHierarchyReverse:
		return RelationParent
	case RelHierarchyForward:
		return RelationChild
	case RelTestedByForward:
		return RelationTestedBy
	default:
		return RelationOther
	}
}

// Classify builds a Relation from a raw link type and target URL. Links whose
// target is not a work item (hyperlinks, attachments) get a zero TargetID.
func Classify(rel, target string) Relation {
	r := Relation{Kind: KindOf(rel), Rel: rel, URL: target}
	if id, ok := TargetID(target); ok {
		r.TargetID = id
	}
	return r
}

// TargetID extracts the work item id carried as the final path segment of a
// relation URL, e.g. https://dev.azure.com/org/_apis/wit/workItems/42.
func TargetID(target string) (int, bool) {
	target = strings.TrimSpace(target)
	if target == "" {
		return 0, false
	}
	path := target
	if u, err := url.Parse(target); err == nil && u.Path != "" {
		path = u.Path
	}
	path = strings.TrimRight(path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		path = path[i+1:]
	}
	id, err := strconv.Atoi(path)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// TargetIDs returns the distinct target ids of relations of one kind, in
// first-seen order.
func TargetIDs(relations []Relation, kind RelationKind) []int {
	seen := make(map[int]bool)
	out := make([]int, 0, len(relations))
	for _, r := range relations {
		if r.Kind != kind || r.TargetID == 0 || seen[r.TargetID] {
			continue
		}
		seen[r.TargetID] = true
		out = append(out, r.TargetID)
	}
	return out
}
