package usecase

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractUI_PlainPayload(t *testing.T) {
	x, err := extractUI("Here is your form.\n---a2ui_JSON---\n[{\"a\": 1}, {\"b\": [1, 2]}]")
	require.NoError(t, err)
	require.Equal(t, "Here is your form.", x.Prose)
	require.Len(t, x.Items, 2)

	payload := x.Payload()
	require.Equal(t, `[{"a":1},{"b":[1,2]}]`, string(payload))
}

func TestExtractUI_StripsCodeFence(t *testing.T) {
	x, err := extractUI("prose\n---a2ui_JSON---\n```json\n[1,2]\n```")
	require.NoError(t, err)
	require.Equal(t, "prose", x.Prose)

	payload := x.Payload()
	require.Equal(t, "[1,2]", string(payload))
}

func TestExtractUI_FenceLinesRemovedAnywhere(t *testing.T) {
	// Once the payload opens with a fence, every fence-marker line is dropped.
	x, err := extractUI("p\n---a2ui_JSON---\n```\n[1,\n```\n2]\n```")
	require.NoError(t, err)
	payload := x.Payload()
	require.Equal(t, "[1,2]", string(payload))
}

func TestExtractUI_UnfencedPayloadKeepsBacktickLines(t *testing.T) {
	_, err := extractUI("p\n---a2ui_JSON---\n[1]\n```")
	var xe *ExtractError
	require.ErrorAs(t, err, &xe)
	require.Equal(t, ReasonMalformedJSON, xe.Reason)
}

func TestExtractUI_SplitsAtFirstDelimiter(t *testing.T) {
	_, err := extractUI("a\n---a2ui_JSON---\n[1]\n---a2ui_JSON---\n[2]")
	var xe *ExtractError
	require.ErrorAs(t, err, &xe)
	require.Equal(t, ReasonMalformedJSON, xe.Reason)
}

func TestExtractUI_Failures(t *testing.T) {
	cases := []struct {
		name   string
		text   string
		reason ExtractReason
	}{
		{name: "no delimiter", text: "Here is a form: [1,2]", reason: ReasonDelimiterMissing},
		{name: "empty text", text: "", reason: ReasonDelimiterMissing},
		{name: "empty array", text: "p\n---a2ui_JSON---\n[]", reason: ReasonNotArray},
		{name: "object", text: "p\n---a2ui_JSON---\n{\"a\":1}", reason: ReasonNotArray},
		{name: "scalar", text: "p\n---a2ui_JSON---\n42", reason: ReasonNotArray},
		{name: "string", text: "p\n---a2ui_JSON---\n\"x\"", reason: ReasonNotArray},
		{name: "null", text: "p\n---a2ui_JSON---\nnull", reason: ReasonNotArray},
		{name: "malformed", text: "p\n---a2ui_JSON---\n[{\"a\":", reason: ReasonMalformedJSON},
		{name: "nothing after delimiter", text: "p\n---a2ui_JSON---", reason: ReasonMalformedJSON},
		{name: "trailing text", text: "p\n---a2ui_JSON---\n[1] and more", reason: ReasonMalformedJSON},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := extractUI(tc.text)
			var xe *ExtractError
			require.True(t, errors.As(err, &xe))
			require.Equal(t, tc.reason, xe.Reason)
			require.NotEmpty(t, xe.Detail())
		})
	}
}

func TestExtractUI_Idempotent(t *testing.T) {
	text := "UI.\n---a2ui_JSON---\n```json\n[{\"beginRendering\": {\"surfaceId\": \"s\"}}]\n```"
	a, errA := extractUI(text)
	b, errB := extractUI(text)
	require.NoError(t, errA)
	require.NoError(t, errB)
	require.Equal(t, a, b)

	_, errA = extractUI("no delimiter")
	_, errB = extractUI("no delimiter")
	require.Equal(t, errA, errB)
}

func TestExtraction_PayloadPreservesMemberOrder(t *testing.T) {
	x, err := extractUI("p\n---a2ui_JSON---\n[{\"z\": 1, \"a\": {\"y\": true, \"b\": null}}]")
	require.NoError(t, err)
	payload := x.Payload()
	require.Equal(t, `[{"z":1,"a":{"y":true,"b":null}}]`, string(payload))
	require.True(t, json.Valid(payload))
}

func TestExtraction_Render(t *testing.T) {
	x, err := extractUI("  The Apex Neural signup form.  \n---a2ui_JSON---\n\n[ {\"a\" : 1} ]\n")
	require.NoError(t, err)
	out := x.Render()
	require.Equal(t, "The Apex Neural signup form.\n---a2ui_JSON---\n[{\"a\":1}]", out)

	// Rendered output is a fixed point of extraction.
	again, err := extractUI(out)
	require.NoError(t, err)
	require.Equal(t, out, again.Render())
}

func TestExtractUI_PayloadMatchesItems(t *testing.T) {
	x, err := extractUI("p\n---a2ui_JSON---\n[ {\"a\" : 1},\n  [ 2, 3 ] ]")
	require.NoError(t, err)
	require.Len(t, x.Items, 2)
	require.JSONEq(t, `{"a":1}`, string(x.Items[0]))
	require.Equal(t, `[{"a":1},[2,3]]`, string(x.Payload()))
}

func TestExtractError_Detail(t *testing.T) {
	require.Contains(t, (&ExtractError{Reason: ReasonDelimiterMissing}).Detail(), Delimiter)
	require.Contains(t, (&ExtractError{Reason: ReasonNotArray}).Detail(), "non-empty array")
	require.Contains(t, (&ExtractError{Reason: ReasonMalformedJSON, Err: errors.New("unexpected end")}).Detail(), "unexpected end")
}
