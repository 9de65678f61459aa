package snapshot

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hay-kot/criterio"
	"gopkg.in/yaml.v3"

	"github.com/satyaki-up/testplan/internal/workitems"
)

// Document is the YAML interchange format accepted by Import.
//
//	project: Shop
//	types:
//	  - {name: Requirement, icon: icon_book, color: 009CCC}
//	work_items:
//	  - id: 1
//	    type: Feature
//	    title: Accounts
//	    children: [10, 11]
//	  - id: 10
//	    type: Requirement
//	    title: 1. Login
//	    parent: 1
//	    tested_by: [100]
//	suites:
//	  - {test_case: 100, plan: 5, suite: 50}
//	points:
//	  - {id: 1, plan: 5, suite: 50, test_case: 100, outcome: Passed, last_updated: 2026-03-10T09:00:00Z}
type Document struct {
	Project   string        `yaml:"project"`
	BaseURL   string        `yaml:"base_url"`
	Types     []TypeDoc     `yaml:"types"`
	WorkItems []WorkItemDoc `yaml:"work_items"`
	Suites    []SuiteDoc    `yaml:"suites"`
	Points    []PointDoc    `yaml:"points"`
}

type TypeDoc struct {
	Name  string `yaml:"name"`
	Icon  string `yaml:"icon"`
	Color string `yaml:"color"`
}

type WorkItemDoc struct {
	ID      int    `yaml:"id"`
	Rev     int    `yaml:"rev"`
	Project string `yaml:"project"`
	Type    string `yaml:"type"`
	Title   string `yaml:"title"`
	Parent  int    `yaml:"parent"`
	URL     string `yaml:"url"`
	Steps   string `yaml:"steps"`
	// Fields holds any other field by reference name, e.g.
	// Custom.UserAcceptanceStatus.
	Fields   map[string]any `yaml:"fields"`
	Children []int          `yaml:"children"`
	TestedBy []int          `yaml:"tested_by"`
}

type SuiteDoc struct {
	TestCase int `yaml:"test_case"`
	Plan     int `yaml:"plan"`
	Suite    int `yaml:"suite"`
}

type PointDoc struct {
	ID            int       `yaml:"id"`
	Project       string    `yaml:"project"`
	Plan          int       `yaml:"plan"`
	Suite         int       `yaml:"suite"`
	TestCase      int       `yaml:"test_case"`
	Outcome       string    `yaml:"outcome"`
	LastUpdated   time.Time `yaml:"last_updated"`
	Configuration string    `yaml:"configuration"`
}

const defaultBaseURL = "https://dev.azure.com/snapshot"

// Decode reads a Document, rejecting unknown keys.
func Decode(r io.Reader) (*Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: snapshot document is empty", workitems.ErrInvalidInput)
		}
		return nil, fmt.Errorf("%w: decode snapshot: %v", workitems.ErrInvalidInput, err)
	}
	if doc.BaseURL == "" {
		doc.BaseURL = defaultBaseURL
	}
	doc.BaseURL = strings.TrimRight(doc.BaseURL, "/")
	return &doc, nil
}

func (d *Document) Validate() error {
	if strings.TrimSpace(d.Project) == "" {
		return criterio.NewFieldErrors("project", fmt.Errorf("is required"))
	}

	var errs criterio.FieldErrorsBuilder

	seenTypes := make(map[string]bool)
	for i, t := range d.Types {
		field := fmt.Sprintf("types[%d]", i)
		if t.Name == "" {
			errs = errs.Append(field+".name", fmt.Errorf("is required"))
			continue
		}
		if seenTypes[t.Name] {
			errs = errs.Append(field+".name", fmt.Errorf("duplicate type %q", t.Name))
		}
		seenTypes[t.Name] = true
	}

	seenItems := make(map[int]bool)
	for i, wi := range d.WorkItems {
		field := fmt.Sprintf("work_items[%d]", i)
		if wi.ID <= 0 {
			errs = errs.Append(field+".id", fmt.Errorf("must be positive, got %d", wi.ID))
			continue
		}
		if seenItems[wi.ID] {
			errs = errs.Append(field+".id", fmt.Errorf("duplicate id %d", wi.ID))
		}
		seenItems[wi.ID] = true
		if wi.Type == "" {
			errs = errs.Append(field+".type", fmt.Errorf("is required"))
		}
		if wi.Parent < 0 || wi.Parent == wi.ID {
			errs = errs.Append(field+".parent", fmt.Errorf("invalid parent %d", wi.Parent))
		}
		for j, id := range append(append([]int(nil), wi.Children...), wi.TestedBy...) {
			if id <= 0 {
				errs = errs.Append(fmt.Sprintf("%s.links[%d]", field, j), fmt.Errorf("must be positive, got %d", id))
			}
		}
	}

	for i, s := range d.Suites {
		field := fmt.Sprintf("suites[%d]", i)
		if s.TestCase <= 0 || s.Plan <= 0 || s.Suite <= 0 {
			errs = errs.Append(field, fmt.Errorf("test_case, plan and suite must be positive"))
		}
	}

	seenPoints := make(map[int]bool)
	for i, p := range d.Points {
		field := fmt.Sprintf("points[%d]", i)
		if p.ID <= 0 {
			errs = errs.Append(field+".id", fmt.Errorf("must be positive, got %d", p.ID))
			continue
		}
		if seenPoints[p.ID] {
			errs = errs.Append(field+".id", fmt.Errorf("duplicate id %d", p.ID))
		}
		seenPoints[p.ID] = true
		if p.TestCase <= 0 || p.Plan <= 0 || p.Suite <= 0 {
			errs = errs.Append(field, fmt.Errorf("test_case, plan and suite must be positive"))
		}
	}

	return errs.ToError()
}

func (d *Document) itemURL(id int) string {
	return fmt.Sprintf("%s/_apis/wit/workItems/%d", d.BaseURL, id)
}

// relations lists the links of wi in the order they are stored: parent,
// children, then tested-by.
func (d *Document) relations(wi WorkItemDoc) []workitems.Relation {
	var out []workitems.Relation
	if wi.Parent > 0 {
		out = append(out, workitems.Classify(workitems.RelHierarchyReverse, d.itemURL(wi.Parent)))
	}
	for _, id := range wi.Children {
		out = append(out, workitems.Classify(workitems.RelHierarchyForward, d.itemURL(id)))
	}
	for _, id := range wi.TestedBy {
		out = append(out, workitems.Classify(workitems.RelTestedByForward, d.itemURL(id)))
	}
	return out
}
