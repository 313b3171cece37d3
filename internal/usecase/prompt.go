package usecase

import (
	_ "embed"
	"fmt"
	"strings"
)

// exampleSeparator divides the bundled full examples.
const exampleSeparator = "\n=====\n"

//go:embed ui_examples.txt
var bundledExamples string

// DefaultExamples returns the bundled full UI examples in response wire
// format, separated by a line of equals signs.
func DefaultExamples() string {
	return strings.TrimSpace(bundledExamples)
}

const processingMessage = "Generating your UI..."

const (
	schemaUnavailableMessage = "Schema not loaded."
	exhaustedMessage         = "Unable to generate UI. Please try again."
)

var bannedTitles = []string{
	"AI Startup", "Our Company", "Join Our Team", "Contact Us", "Application Form", "Dashboard",
}

var exampleCompanies = []string{"Synapse Labs", "Cortex AI", "Luminary Systems", "Apex Neural"}

// DefaultSystemPrompt returns the instruction block sent as the system prompt
// of every completion call, with the given UI examples appended.
func DefaultSystemPrompt(examples string) string {
	parts := []string{
		"You are a UI generation assistant. You output A2UI declarative JSON.",
		"",
		"YOUR RESPONSE MUST FOLLOW THIS EXACT FORMAT, NO EXCEPTIONS:",
		"",
		"One short sentence describing the UI.",
		Delimiter,
		"[A2UI JSON array here]",
		"",
		"RULES:",
		outputRules(),
		"",
		"CORRECT FORMAT EXAMPLE:",
		formatExample,
		"",
		"AVAILABLE COMPONENT TYPES (use ONLY these):",
		componentCatalog,
	}
	if strings.TrimSpace(examples) != "" {
		parts = append(parts, "", "FULL EXAMPLES TO COPY FROM:", strings.TrimSpace(examples))
	}
	return strings.Join(parts, "\n")
}

func outputRules() string {
	return strings.Join([]string{
		fmt.Sprintf("0. COMPANY NAME, MANDATORY: The very first component in EVERY UI must be an h1 Text with an invented fictional company name. Examples: %s.", quoteList(exampleCompanies)),
		fmt.Sprintf("00. FORBIDDEN h1 values: %s.", quoteList(bannedTitles)),
		"1. The delimiter " + Delimiter + " must appear exactly once",
		"2. After the delimiter, output ONLY a raw JSON array: no markdown, no backticks, no ```json",
		"3. The array must start with [ and end with ]",
		"4. Always include these 3 messages in order: beginRendering, surfaceUpdate, dataModelUpdate",
		"5. When refining an existing UI, keep the SAME surfaceId and modify/extend the components as requested. Re-output the COMPLETE updated UI, all components including unchanged ones.",
		"6. ALWAYS invent a specific fictional company/brand name and use it prominently as the UI title.",
	}, "\n")
}

// reinforceQuery appends the title rule to the newest user turn.
func reinforceQuery(query string) string {
	return query + "\n\n" + strings.Join([]string{
		"IMPORTANT: You MUST invent a specific fictional company name and use it as the h1 heading.",
		fmt.Sprintf("Do NOT use %s, or any generic title.", quoteList(bannedTitles[:3])),
		fmt.Sprintf("Pick something creative like %s.", quoteList(exampleCompanies)),
		"The h1 MUST be the invented company name.",
	}, " ")
}

// correctionPrompt is the user turn appended after a rejected response.
func correctionPrompt(errorDetail, query string) string {
	return strings.Join([]string{
		"WRONG FORMAT. " + errorDetail,
		"",
		"Output EXACTLY:",
		"One sentence.",
		Delimiter,
		`[{"beginRendering": ...}, {"surfaceUpdate": ...}, {"dataModelUpdate": ...}]`,
		"",
		"No markdown. Raw JSON array only. Original request: " + query,
	}, "\n")
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = "'" + s + "'"
	}
	return strings.Join(quoted, ", ")
}

const formatExample = `Here is the NeuralPath AI contact form.
---a2ui_JSON---
[
  {"beginRendering": {"surfaceId": "form-surface", "root": "form-col", "styles": {"primaryColor": "#9B8AFF", "font": "Plus Jakarta Sans"}}},
  {"surfaceUpdate": {"surfaceId": "form-surface", "components": [
    {"id": "form-col", "component": {"Column": {"children": {"explicitList": ["title", "subtitle", "name-field", "submit-btn"]}}}},
    {"id": "title", "component": {"Text": {"usageHint": "h1", "text": {"literalString": "NeuralPath AI"}}}},
    {"id": "subtitle", "component": {"Text": {"usageHint": "h3", "text": {"literalString": "Contact Us"}}}},
    {"id": "name-field", "component": {"TextField": {"label": {"literalString": "Name"}, "text": {"path": "name"}, "textFieldType": "shortText"}}},
    {"id": "submit-btn", "component": {"Button": {"child": "submit-text", "primary": true, "action": {"name": "submit_form", "context": [{"key": "name", "value": {"path": "name"}}]}}}},
    {"id": "submit-text", "component": {"Text": {"text": {"literalString": "Submit"}}}}
  ]}},
  {"dataModelUpdate": {"surfaceId": "form-surface", "path": "/", "contents": [{"key": "name", "valueString": ""}]}}
]`

const componentCatalog = `- Text: {"Text": {"text": {"literalString": "..."}, "usageHint": "h1|h2|h3|h4|h5|caption|body"}}
- TextField: {"TextField": {"label": {"literalString": "..."}, "text": {"path": "..."}, "textFieldType": "shortText|longText|number|date|obscured"}}
- MultipleChoice: native dropdown/select. {"MultipleChoice": {"description": {"literalString": "Years of Experience"}, "selections": {"path": "experience"}, "options": [{"label": {"literalString": "0-1 years"}}, {"label": {"literalString": "1-3 years"}}]}}
  Use this for ANY selection/dropdown field.
- Button: {"Button": {"child": "btn-text-id", "primary": true, "action": {"name": "action_name", "context": []}}}
- Column: {"Column": {"children": {"explicitList": ["id1", "id2"]}}}
- Row: {"Row": {"children": {"explicitList": ["id1", "id2"]}, "alignment": "center"}}
- Card: {"Card": {"child": "content-id"}}
- Icon: {"Icon": {"name": {"literalString": "check|mail|person|phone|search|settings|star|home|info|warning|error|favorite|send|accountCircle|add|close|delete|edit|notifications|share"}}}
- Divider: {"Divider": {}}
- List: {"List": {"direction": "vertical", "children": {"template": {"componentId": "...", "dataBinding": "/items"}}}}`
