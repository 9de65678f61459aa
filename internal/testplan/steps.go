package testplan

import (
	"encoding/xml"
	"regexp"
	"strings"

	"github.com/satyaki-up/testplan/internal/workitems"
)

var markupTag = regexp.MustCompile(`<[^>]*>`)

// StripTags removes <...> spans. Entities such as &nbsp; are left alone.
func StripTags(s string) string {
	return markupTag.ReplaceAllString(s, "")
}

type stepsDocument struct {
	Steps []stepElement `xml:"step"`
}

type stepElement struct {
	Parts []markupText `xml:",any"`
}

// markupText collects the character data of an element and its descendants.
type markupText string

func (m *markupText) UnmarshalXML(d *xml.Decoder, _ xml.StartElement) error {
	var b strings.Builder
	depth := 0
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			if depth == 0 {
				*m = markupText(b.String())
				return nil
			}
			depth--
		case xml.CharData:
			b.Write(t)
		}
	}
}

func (m markupText) plain() string {
	return strings.TrimSpace(StripTags(string(m)))
}

// ParseSteps turns a test case step script into ordered steps. Each top-level
// step element holds the action and the expected result as its first two
// children. Empty or malformed scripts produce no steps.
func ParseSteps(script string) []workitems.TestStep {
	steps := []workitems.TestStep{}
	if strings.TrimSpace(script) == "" {
		return steps
	}

	var doc stepsDocument
	if err := xml.Unmarshal([]byte(script), &doc); err != nil {
		return steps
	}

	for i, el := range doc.Steps {
		step := workitems.TestStep{Index: i + 1}
		if len(el.Parts) > 0 {
			step.Action = el.Parts[0].plain()
		}
		if len(el.Parts) > 1 {
			step.ExpectedResult = el.Parts[1].plain()
		}
		steps = append(steps, step)
	}
	return steps
}
