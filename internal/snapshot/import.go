package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"maps"

	"github.com/satyaki-up/testplan/internal/workitems"
)

// ImportStats counts the rows written by Import.
type ImportStats struct {
	WorkItems int `json:"work_items"`
	Relations int `json:"relations"`
	Types     int `json:"types"`
	Suites    int `json:"suites"`
	Points    int `json:"points"`
}

// Import replaces the mirror contents with doc in a single transaction.
func (s *Store) Import(ctx context.Context, doc *Document) (ImportStats, error) {
	var stats ImportStats
	if err := doc.Validate(); err != nil {
		return stats, fmt.Errorf("%w: %w", workitems.ErrInvalidInput, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, err
	}
	defer tx.Rollback()

	for _, table := range []string{"relations", "test_points", "suites", "work_item_types", "work_items"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return stats, fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for _, t := range doc.Types {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO work_item_types(project, name, icon_id, color)
			VALUES (?, ?, ?, ?)
		`, doc.Project, t.Name, t.Icon, t.Color); err != nil {
			return stats, fmt.Errorf("insert type %q: %w", t.Name, err)
		}
		stats.Types++
	}

	for _, wi := range doc.WorkItems {
		n, err := insertWorkItem(ctx, tx, doc, wi)
		if err != nil {
			return stats, err
		}
		stats.WorkItems++
		stats.Relations += n
	}

	ord := make(map[int]int)
	for _, su := range doc.Suites {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO suites(test_case_id, ord, suite_id, plan_id)
			VALUES (?, ?, ?, ?)
		`, su.TestCase, ord[su.TestCase], su.Suite, su.Plan); err != nil {
			return stats, fmt.Errorf("insert suite %d of test case %d: %w", su.Suite, su.TestCase, err)
		}
		ord[su.TestCase]++
		stats.Suites++
	}

	for _, p := range doc.Points {
		project := p.Project
		if project == "" {
			project = doc.Project
		}
		var updated any
		if !p.LastUpdated.IsZero() {
			updated = p.LastUpdated.UTC().Format(timeLayout)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO test_points(id, project, plan_id, suite_id, test_case_id, outcome, last_updated, configuration)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, p.ID, project, p.Plan, p.Suite, p.TestCase, string(workitems.ParseOutcome(p.Outcome)), updated, p.Configuration); err != nil {
			return stats, fmt.Errorf("insert test point %d: %w", p.ID, err)
		}
		stats.Points++
	}

	if err := tx.Commit(); err != nil {
		return stats, err
	}
	return stats, nil
}

func insertWorkItem(ctx context.Context, tx *sql.Tx, doc *Document, wi WorkItemDoc) (int, error) {
	project := wi.Project
	if project == "" {
		project = doc.Project
	}
	rev := wi.Rev
	if rev == 0 {
		rev = 1
	}
	var parent any
	if wi.Parent > 0 {
		parent = wi.Parent
	}

	fields := maps.Clone(wi.Fields)
	if fields == nil {
		fields = make(map[string]any)
	}
	if wi.Steps != "" {
		fields[workitems.FieldSteps] = wi.Steps
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return 0, fmt.Errorf("marshal fields of %d: %w", wi.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO work_items(id, rev, project, type, title, parent_id, html_url, fields)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, wi.ID, rev, project, wi.Type, wi.Title, parent, wi.URL, string(raw)); err != nil {
		return 0, fmt.Errorf("insert work item %d: %w", wi.ID, err)
	}

	rels := doc.relations(wi)
	for i, r := range rels {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO relations(source_id, ord, rel, url)
			VALUES (?, ?, ?, ?)
		`, wi.ID, i, r.Rel, r.URL); err != nil {
			return 0, fmt.Errorf("insert relation %d of %d: %w", i, wi.ID, err)
		}
	}
	return len(rels), nil
}
