// Package snapshot serves work items, type metadata, suites and test points
// from a local SQLite mirror, for offline inspection of a test plan.
package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/satyaki-up/testplan/internal/workitems"
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

var (
	_ workitems.ItemReader = (*Store)(nil)
	_ workitems.TestReader = (*Store)(nil)
)

// GetWorkItem reads one item. The project argument is accepted for parity
// with the service API; ids are unique across the mirror.
func (s *Store) GetWorkItem(ctx context.Context, project string, id int, opts workitems.GetOptions) (*workitems.WorkItem, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: work item id must be positive, got %d", workitems.ErrInvalidInput, id)
	}
	if opts.AsOf != nil {
		return nil, fmt.Errorf("%w: snapshot has no revision history", workitems.ErrInvalidInput)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, rev, project, type, title, parent_id, html_url, fields
		FROM work_items
		WHERE id = ?
	`, id)
	item, err := scanWorkItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: work item %d", workitems.ErrNotFound, id)
		}
		return nil, err
	}

	if opts.Expand == workitems.ExpandRelations {
		rels, err := s.relations(ctx, id)
		if err != nil {
			return nil, err
		}
		item.Relations = rels
		return item, nil
	}
	if len(opts.Fields) > 0 {
		for name := range item.Fields {
			if !slices.Contains(opts.Fields, name) {
				delete(item.Fields, name)
			}
		}
	}
	return item, nil
}

func (s *Store) relations(ctx context.Context, id int) ([]workitems.Relation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT rel, url
		FROM relations
		WHERE source_id = ?
		ORDER BY ord ASC
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []workitems.Relation
	for rows.Next() {
		var rel, url string
		if err := rows.Scan(&rel, &url); err != nil {
			return nil, fmt.Errorf("scan relation of %d: %w", id, err)
		}
		out = append(out, workitems.Classify(rel, url))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) GetWorkItemType(ctx context.Context, project, name string) (*workitems.WorkItemType, error) {
	var t workitems.WorkItemType
	err := s.db.QueryRowContext(ctx, `
		SELECT name, icon_id, color
		FROM work_item_types
		WHERE project = ? AND name = ?
	`, project, name).Scan(&t.Name, &t.IconID, &t.ColorHex)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: work item type %q in %q", workitems.ErrNotFound, name, project)
		}
		return nil, err
	}
	return &t, nil
}

func (s *Store) GetSuitesByTestCaseID(ctx context.Context, testCaseID int) ([]workitems.SuiteRef, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT suite_id, plan_id
		FROM suites
		WHERE test_case_id = ?
		ORDER BY ord ASC
	`, testCaseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []workitems.SuiteRef{}
	for rows.Next() {
		var ref workitems.SuiteRef
		if err := rows.Scan(&ref.ID, &ref.PlanID); err != nil {
			return nil, fmt.Errorf("scan suite of %d: %w", testCaseID, err)
		}
		out = append(out, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) GetPoints(ctx context.Context, project string, planID, suiteID int) ([]workitems.TestPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, test_case_id, outcome, last_updated, configuration
		FROM test_points
		WHERE project = ? AND plan_id = ? AND suite_id = ?
		ORDER BY id ASC
	`, project, planID, suiteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []workitems.TestPoint{}
	for rows.Next() {
		var p workitems.TestPoint
		var outcome string
		var updated sql.NullString
		if err := rows.Scan(&p.ID, &p.TestCaseID, &outcome, &updated, &p.Configuration); err != nil {
			return nil, fmt.Errorf("scan test point: %w", err)
		}
		p.Outcome = workitems.ParseOutcome(outcome)
		if updated.Valid && updated.String != "" {
			t, err := parseTime(updated.String)
			if err != nil {
				return nil, fmt.Errorf("parse last_updated of point %d: %w", p.ID, err)
			}
			p.LastUpdated = t
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanWorkItem rebuilds the field map from the extra fields JSON plus the
// system fields kept in their own columns.
func scanWorkItem(row scanner) (*workitems.WorkItem, error) {
	var (
		item    workitems.WorkItem
		project string
		typ     string
		title   string
		parent  sql.NullInt64
		raw     string
	)
	if err := row.Scan(&item.ID, &item.Rev, &project, &typ, &title, &parent, &item.HTMLURL, &raw); err != nil {
		return nil, err
	}

	item.Fields = make(map[string]any)
	if strings.TrimSpace(raw) != "" {
		if err := json.Unmarshal([]byte(raw), &item.Fields); err != nil {
			return nil, fmt.Errorf("parse fields of %d: %w", item.ID, err)
		}
	}
	item.Fields[workitems.FieldID] = item.ID
	item.Fields[workitems.FieldTeamProject] = project
	item.Fields[workitems.FieldWorkItemType] = typ
	item.Fields[workitems.FieldTitle] = title
	if parent.Valid && parent.Int64 > 0 {
		item.Fields[workitems.FieldParent] = parent.Int64
	}
	return &item, nil
}

const timeLayout = time.RFC3339Nano

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(timeLayout, value)
	if err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02 15:04:05", value, time.UTC)
}
