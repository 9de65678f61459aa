package testplan

import (
	"cmp"
	"context"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/satyaki-up/testplan/internal/workitems"
)

var numberedTitle = regexp.MustCompile(`^\d+\.`)

// ResolveRequirements returns the Requirement children of a feature. The
// feature must carry its relations.
func (r *Resolver) ResolveRequirements(ctx context.Context, run *Run, feature *workitems.WorkItem) ([]*workitems.WorkItem, error) {
	ids := workitems.TargetIDs(feature.Relations, workitems.RelationChild)
	children, err := r.fetchAll(ctx, run, ids, workitems.GetOptions{Expand: workitems.ExpandRelations})
	if err != nil {
		return nil, err
	}

	requirements := slices.DeleteFunc(children, func(w *workitems.WorkItem) bool {
		return w.Type() != workitems.TypeRequirement
	})
	SortRequirements(requirements, r.locale)
	return requirements, nil
}

// SortRequirements orders by title with numeric collation when any title
// starts with a number followed by a dot ("1.2 Login"), otherwise by id.
func SortRequirements(requirements []*workitems.WorkItem, locale language.Tag) {
	numbered := slices.ContainsFunc(requirements, func(w *workitems.WorkItem) bool {
		return numberedTitle.MatchString(strings.TrimSpace(w.Title()))
	})
	if !numbered {
		slices.SortFunc(requirements, byID)
		return
	}

	col := collate.New(locale, collate.Numeric)
	slices.SortFunc(requirements, func(a, b *workitems.WorkItem) int {
		if c := col.CompareString(strings.TrimSpace(a.Title()), strings.TrimSpace(b.Title())); c != 0 {
			return c
		}
		return byID(a, b)
	})
}

func byID(a, b *workitems.WorkItem) int {
	return cmp.Compare(a.ID, b.ID)
}
