package testplan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satyaki-up/testplan/internal/workitems"
)

func TestParseStepsStripsMarkup(t *testing.T) {
	script := stepScript(
		[2]string{"<DIV><P>Open the <B>login</B> page</P></DIV>", "<DIV>Form is shown</DIV>"},
		[2]string{"<div>Submit&nbsp;credentials</div>", ""},
	)

	steps := ParseSteps(script)
	require.Len(t, steps, 2)

	assert.Equal(t, workitems.TestStep{Index: 1, Action: "Open the login page", ExpectedResult: "Form is shown"}, steps[0])
	assert.Equal(t, workitems.TestStep{Index: 2, Action: "Submit&nbsp;credentials", ExpectedResult: ""}, steps[1])
}

func TestParseStepsIsIdempotent(t *testing.T) {
	script := stepScript([2]string{"<div>a</div>", "<div>b</div>"}, [2]string{"c", "d"})
	assert.Equal(t, ParseSteps(script), ParseSteps(script))
}

func TestParseStepsDegenerateInput(t *testing.T) {
	tests := []struct {
		name   string
		script string
	}{
		{name: "empty", script: ""},
		{name: "whitespace", script: "   \n"},
		{name: "no steps", script: `<steps id="0" last="1"></steps>`},
		{name: "malformed", script: `<steps><step><parameterizedString>open`},
		{name: "not xml", script: "just some text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			steps := ParseSteps(tt.script)
			assert.NotNil(t, steps)
			assert.Empty(t, steps)
		})
	}
}

func TestParseStepsOnlyTopLevelSteps(t *testing.T) {
	script := `<steps id="0" last="5">` +
		`<step id="2" type="ActionStep"><parameterizedString>first</parameterizedString><parameterizedString>ok</parameterizedString></step>` +
		`<compref id="3" ref="77"><step id="4" type="ActionStep"><parameterizedString>shared</parameterizedString><parameterizedString/></step></compref>` +
		`<step id="5" type="ValidateStep"><parameterizedString>last</parameterizedString></step>` +
		`</steps>`

	steps := ParseSteps(script)
	require.Len(t, steps, 2)
	assert.Equal(t, "first", steps[0].Action)
	assert.Equal(t, "ok", steps[0].ExpectedResult)
	assert.Equal(t, 2, steps[1].Index)
	assert.Equal(t, "last", steps[1].Action)
	assert.Empty(t, steps[1].ExpectedResult)
}

func TestParseStepsNestedElements(t *testing.T) {
	script := `<steps><step><action>Click <b>Save</b></action><expected>Saved</expected></step></steps>`

	steps := ParseSteps(script)
	require.Len(t, steps, 1)
	assert.Equal(t, "Click Save", steps[0].Action)
	assert.Equal(t, "Saved", steps[0].ExpectedResult)
}

func TestStripTags(t *testing.T) {
	assert.Equal(t, "a b", StripTags("<p>a</p> <br/>b"))
	assert.Equal(t, "&amp; &lt;", StripTags("&amp; &lt;"))
	assert.Equal(t, "plain", StripTags("plain"))
}
