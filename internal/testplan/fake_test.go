package testplan

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/satyaki-up/testplan/internal/workitems"
)

const testProject = "Shop"

// fakeService is an in-memory ItemReader and TestReader that counts calls.
type fakeService struct {
	mu sync.Mutex

	items  map[int]*workitems.WorkItem
	types  map[string]*workitems.WorkItemType
	suites map[int][]workitems.SuiteRef
	points map[SuiteKey][]workitems.TestPoint

	itemErr  map[int]error
	pointErr error
	delay    time.Duration

	itemCalls  map[int]int
	itemOpts   map[int][]workitems.GetOptions
	typeCalls  map[string]int
	suiteCalls map[int]int
	pointCalls map[SuiteKey]int
}

func newFakeService() *fakeService {
	return &fakeService{
		items:      make(map[int]*workitems.WorkItem),
		types:      make(map[string]*workitems.WorkItemType),
		suites:     make(map[int][]workitems.SuiteRef),
		points:     make(map[SuiteKey][]workitems.TestPoint),
		itemErr:    make(map[int]error),
		itemCalls:  make(map[int]int),
		itemOpts:   make(map[int][]workitems.GetOptions),
		typeCalls:  make(map[string]int),
		suiteCalls: make(map[int]int),
		pointCalls: make(map[SuiteKey]int),
	}
}

func (f *fakeService) add(id int, typ, title string, parent int, rels ...workitems.Relation) *workitems.WorkItem {
	fields := map[string]any{
		workitems.FieldID:           id,
		workitems.FieldWorkItemType: typ,
		workitems.FieldTitle:        title,
		workitems.FieldTeamProject:  testProject,
	}
	if parent > 0 {
		fields[workitems.FieldParent] = parent
	}
	wi := &workitems.WorkItem{
		ID:        id,
		Fields:    fields,
		Relations: rels,
		HTMLURL:   fmt.Sprintf("https://dev.azure.com/acme/Shop/_workitems/edit/%d", id),
	}
	f.items[id] = wi
	return wi
}

func (f *fakeService) addType(name, icon, color string) {
	f.types[name] = &workitems.WorkItemType{Name: name, IconID: icon, ColorHex: color}
}

func (f *fakeService) addSuite(testCaseID, planID, suiteID int) {
	f.suites[testCaseID] = append(f.suites[testCaseID], workitems.SuiteRef{ID: suiteID, PlanID: planID})
}

func (f *fakeService) addPoint(planID, suiteID int, p workitems.TestPoint) {
	key := SuiteKey{PlanID: planID, SuiteID: suiteID}
	f.points[key] = append(f.points[key], p)
}

func (f *fakeService) sleep(ctx context.Context) error {
	if f.delay == 0 {
		return nil
	}
	select {
	case <-time.After(f.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeService) GetWorkItem(ctx context.Context, project string, id int, opts workitems.GetOptions) (*workitems.WorkItem, error) {
	f.mu.Lock()
	f.itemCalls[id]++
	f.itemOpts[id] = append(f.itemOpts[id], opts)
	src, ok := f.items[id]
	err := f.itemErr[id]
	f.mu.Unlock()

	if err := f.sleep(ctx); err != nil {
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: work item %d", workitems.ErrNotFound, id)
	}

	out := &workitems.WorkItem{ID: src.ID, HTMLURL: src.HTMLURL, Fields: maps.Clone(src.Fields)}
	if len(opts.Fields) > 0 {
		for name := range out.Fields {
			if !slices.Contains(opts.Fields, name) {
				delete(out.Fields, name)
			}
		}
	}
	if opts.Expand == workitems.ExpandRelations {
		out.Relations = slices.Clone(src.Relations)
	}
	return out, nil
}

func (f *fakeService) GetWorkItemType(ctx context.Context, project, name string) (*workitems.WorkItemType, error) {
	f.mu.Lock()
	f.typeCalls[name]++
	t, ok := f.types[name]
	f.mu.Unlock()

	if err := f.sleep(ctx); err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: type %q", workitems.ErrNotFound, name)
	}
	cp := *t
	return &cp, nil
}

func (f *fakeService) GetSuitesByTestCaseID(ctx context.Context, testCaseID int) ([]workitems.SuiteRef, error) {
	f.mu.Lock()
	f.suiteCalls[testCaseID]++
	suites := slices.Clone(f.suites[testCaseID])
	f.mu.Unlock()
	return suites, nil
}

func (f *fakeService) GetPoints(ctx context.Context, project string, planID, suiteID int) ([]workitems.TestPoint, error) {
	key := SuiteKey{PlanID: planID, SuiteID: suiteID}
	f.mu.Lock()
	f.pointCalls[key]++
	pts := slices.Clone(f.points[key])
	err := f.pointErr
	f.mu.Unlock()

	if err := f.sleep(ctx); err != nil {
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	return pts, nil
}

func (f *fakeService) pointCallsFor(planID, suiteID int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pointCalls[SuiteKey{PlanID: planID, SuiteID: suiteID}]
}

func (f *fakeService) totalItemCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.itemCalls {
		n += c
	}
	return n
}

func childLink(id int) workitems.Relation {
	return workitems.Classify(workitems.RelHierarchyForward, fmt.Sprintf("https://dev.azure.com/acme/_apis/wit/workItems/%d", id))
}

func parentLink(id int) workitems.Relation {
	return workitems.Classify(workitems.RelHierarchyReverse, fmt.Sprintf("https://dev.azure.com/acme/_apis/wit/workItems/%d", id))
}

func testedByLink(id int) workitems.Relation {
	return workitems.Classify(workitems.RelTestedByForward, fmt.Sprintf("https://dev.azure.com/acme/_apis/wit/workItems/%d", id))
}

func newTestResolver(t *testing.T, svc *fakeService) *Resolver {
	t.Helper()
	return NewResolver(svc, svc, zerolog.Nop(), Options{Concurrency: 4})
}

func stepScript(steps ...[2]string) string {
	s := fmt.Sprintf(`<steps id="0" last="%d">`, len(steps)+1)
	for i, st := range steps {
		s += fmt.Sprintf(`<step id="%d" type="ActionStep">`+
			`<parameterizedString isformatted="true">%s</parameterizedString>`+
			`<parameterizedString isformatted="true">%s</parameterizedString>`+
			`<description/></step>`, i+2, escapeXML(st[0]), escapeXML(st[1]))
	}
	return s + `</steps>`
}

var xmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escapeXML(s string) string {
	return xmlEscaper.Replace(s)
}
