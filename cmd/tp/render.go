package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/satyaki-up/testplan/internal/testplan"
	"github.com/satyaki-up/testplan/internal/workitems"
)

// typeIcons maps work item type icon ids to glyphs.
var typeIcons = map[string]string{
	"icon_book":             "▤",
	"icon_test_case":        "✓",
	"icon_trophy":           "♛",
	"icon_crown":            "♔",
	"icon_list":             "☰",
	"icon_clipboard":        "▣",
	"icon_check_box":        "☑",
	"icon_insect":           "✱",
	"icon_chat_bubble":      "✉",
	"icon_review":           "◎",
	"icon_response":         "↩",
	"icon_test_plan":        "▥",
	"icon_test_suite":       "▦",
	"icon_test_step":        "▹",
	"icon_test_parameter":   "◇",
	"icon_sticky_note":      "✎",
	"icon_traffic_cone":     "△",
	"icon_diamond":          "◆",
	"icon_gift":             "✚",
	"icon_car":              "▶",
	"icon_government":       "⌂",
	"icon_paint_brush":      "✐",
	"icon_palette":          "◍",
	"icon_airplane":         "✈",
	"icon_asterisk":         "✳",
	"icon_key":              "⚷",
	"icon_headphone":        "☊",
	"icon_bell":             "♪",
	"icon_flame":            "♨",
	"icon_star":             "★",
	"icon_code_review":      "⌘",
	"icon_code_response":    "⌥",
	"icon_database_storage": "⛁",
}

const defaultIcon = "•"

var categoryGlyphs = map[workitems.Category]string{
	workitems.CategoryPassed:  "✔",
	workitems.CategoryFailed:  "✘",
	workitems.CategoryActive:  "●",
	workitems.CategoryBlocked: "⊘",
	workitems.CategoryNone:    "○",
}

var categoryColors = map[workitems.Category]lipgloss.Color{
	workitems.CategoryPassed:  lipgloss.Color("#339933"),
	workitems.CategoryFailed:  lipgloss.Color("#CC293D"),
	workitems.CategoryActive:  lipgloss.Color("#007ACC"),
	workitems.CategoryBlocked: lipgloss.Color("#F2CB1D"),
	workitems.CategoryNone:    lipgloss.Color("#888888"),
}

type Renderer struct {
	w     io.Writer
	style *lipgloss.Renderer
	now   func() time.Time

	muted lipgloss.Style
	title lipgloss.Style
}

func NewRenderer(w io.Writer) *Renderer {
	r := lipgloss.NewRenderer(w)
	return &Renderer{
		w:     w,
		style: r,
		now:   time.Now,
		muted: r.NewStyle().Foreground(lipgloss.Color("#888888")),
		title: r.NewStyle().Bold(true),
	}
}

func (r *Renderer) typeStyle(t *workitems.WorkItemType) lipgloss.Style {
	s := r.style.NewStyle()
	if t != nil && t.ColorHex != "" {
		s = s.Foreground(lipgloss.Color("#" + strings.TrimPrefix(t.ColorHex, "#")))
	}
	return s
}

func icon(t *workitems.WorkItemType) string {
	if t == nil {
		return defaultIcon
	}
	if g, ok := typeIcons[t.IconID]; ok {
		return g
	}
	return defaultIcon
}

func (r *Renderer) status(o workitems.Outcome) string {
	cat := o.Category()
	label := string(o)
	if !o.IsSet() {
		label = "not run"
	}
	return r.style.NewStyle().Foreground(categoryColors[cat]).Render(categoryGlyphs[cat] + " " + label)
}

// State prints a controller state in the form the work item view shows it.
func (r *Renderer) State(s testplan.State) {
	switch s.Phase {
	case testplan.PhaseResolving:
		fmt.Fprintln(r.w, r.muted.Render("Loading test plan..."))
	case testplan.PhaseUnsaved:
		fmt.Fprintln(r.w, "Save the work item to see its test plan.")
	case testplan.PhaseFailed:
		fmt.Fprintf(r.w, "Failed to load the test plan: %v\n", s.Err)
	case testplan.PhaseEmpty:
		fmt.Fprintln(r.w, "No tests for this work item.")
	case testplan.PhasePopulated:
		r.Tree(s.Tree)
	}
}

func (r *Renderer) Tree(tree *testplan.Tree) {
	if tree.RootItem != nil {
		root := tree.RootItem
		fmt.Fprintf(r.w, "%s %d %s\n", r.title.Render(root.Type()), root.ID, r.title.Render(root.Title()))
		if root.HTMLURL != "" {
			fmt.Fprintln(r.w, r.muted.Render(root.HTMLURL))
		}
	}

	for _, req := range tree.Requirements {
		line := fmt.Sprintf("  %s %d %s",
			r.typeStyle(req.Type).Render(icon(req.Type)), req.Item.ID, req.Item.Title())
		if req.Acceptance.IsSet() {
			line += "  " + r.status(req.Acceptance)
		}
		fmt.Fprintln(r.w, line)

		if len(req.TestCases) == 0 {
			fmt.Fprintln(r.w, r.muted.Render("      no test cases"))
		}
		for _, tc := range req.TestCases {
			r.testCase(tc)
		}
	}

	fmt.Fprintln(r.w, r.muted.Render(fmt.Sprintf("%d requirements, %d test cases, refresh %s",
		len(tree.Requirements), tree.TestCaseCount(), shortID(tree.RefreshID))))
}

func (r *Renderer) testCase(tc testplan.TestCaseNode) {
	line := fmt.Sprintf("      %s %d %s  ",
		r.typeStyle(tc.Type).Render(icon(tc.Type)), tc.Item.ID, tc.Item.Title())
	if tc.Outcome == nil {
		line += r.status(workitems.OutcomeUnspecified)
	} else {
		line += r.status(tc.Outcome.Outcome)
		if !tc.Outcome.LastUpdated.IsZero() {
			line += " " + r.muted.Render(humanize.RelTime(tc.Outcome.LastUpdated, r.now(), "ago", "from now"))
		}
		if tc.Outcome.Configuration != "" {
			line += " " + r.muted.Render("("+tc.Outcome.Configuration+")")
		}
	}
	fmt.Fprintln(r.w, line)
	r.steps(tc.Steps, "          ")
}

func (r *Renderer) steps(steps []workitems.TestStep, indent string) {
	for _, st := range steps {
		fmt.Fprintf(r.w, "%s%d. %s\n", indent, st.Index, st.Action)
		if st.ExpectedResult != "" {
			fmt.Fprintf(r.w, "%s   %s %s\n", indent, r.muted.Render("→"), st.ExpectedResult)
		}
	}
}

// Steps prints one test case with its parsed script.
func (r *Renderer) Steps(item *workitems.WorkItem, steps []workitems.TestStep) {
	fmt.Fprintf(r.w, "%s %d %s\n", r.title.Render(item.Type()), item.ID, r.title.Render(item.Title()))
	if len(steps) == 0 {
		fmt.Fprintln(r.w, r.muted.Render("  no steps"))
		return
	}
	r.steps(steps, "  ")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

type jsonState struct {
	Phase      testplan.Phase `json:"phase"`
	Generation uint64         `json:"generation"`
	Error      string         `json:"error,omitempty"`
	Tree       *testplan.Tree `json:"tree,omitempty"`
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeStateJSON(w io.Writer, s testplan.State) error {
	out := jsonState{Phase: s.Phase, Generation: s.Generation, Tree: s.Tree}
	if s.Err != nil {
		out.Error = s.Err.Error()
	}
	return writeJSON(w, out)
}
