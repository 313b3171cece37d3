package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

const validUI = `[
	{"beginRendering":{"surfaceId":"s","root":"col","styles":{"primaryColor":"#9B8AFF","font":"Inter"}}},
	{"surfaceUpdate":{"surfaceId":"s","components":[
		{"id":"col","component":{"Column":{"children":{"explicitList":["title"]}}}},
		{"id":"title","component":{"Text":{"usageHint":"h1","text":{"literalString":"Synapse Labs"}}}}
	]}},
	{"dataModelUpdate":{"surfaceId":"s","path":"/","contents":[{"key":"name","valueString":""}]}}
]`

func TestLoad_DefaultSource(t *testing.T) {
	s, err := Load(DefaultSource())
	require.NoError(t, err)
	require.True(t, s.Available())
	require.NoError(t, s.Validate([]byte(validUI)))
}

func TestLoad_MalformedSource(t *testing.T) {
	_, err := Load([]byte(`{"type":`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "parse message schema")
}

func TestLoad_NotAnObject(t *testing.T) {
	_, err := Load([]byte(`null`))
	require.Error(t, err)

	_, err = Load([]byte(`[1,2]`))
	require.Error(t, err)
}

func TestLoadOrDegrade_ReturnsNilOnFailure(t *testing.T) {
	s := LoadOrDegrade([]byte(`not json`), nil)
	require.Nil(t, s)
	require.False(t, s.Available())
	require.ErrorIs(t, s.Validate([]byte(`[]`)), ErrUnavailable)
}

func TestValidate_WrapsItemsAsArray(t *testing.T) {
	s, err := Load([]byte(`{"type":"object","required":["kind"]}`))
	require.NoError(t, err)

	require.NoError(t, s.Validate([]byte(`[{"kind":1},{"kind":2}]`)))

	err = s.Validate([]byte(`{"kind":1}`))
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.NotEmpty(t, verr.Message)

	err = s.Validate([]byte(`[{"kind":1},{"other":2}]`))
	require.True(t, errors.As(err, &verr))
	require.Contains(t, verr.Message, "kind")
}

func TestValidate_RejectsUnknownMessageKind(t *testing.T) {
	s, err := Load(DefaultSource())
	require.NoError(t, err)

	err = s.Validate([]byte(`[{"renderEverything":{"surfaceId":"s"}}]`))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestValidate_RejectsTwoKindsInOneMessage(t *testing.T) {
	s, err := Load(DefaultSource())
	require.NoError(t, err)

	err = s.Validate([]byte(`[{"beginRendering":{"surfaceId":"s","root":"r"},"deleteSurface":{"surfaceId":"s"}}]`))
	require.Error(t, err)
}

func TestValidate_InvalidInstanceJSON(t *testing.T) {
	s, err := Load(DefaultSource())
	require.NoError(t, err)

	err = s.Validate([]byte(`[{`))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestDefaultSource_ReturnsCopy(t *testing.T) {
	a := DefaultSource()
	a[0] = 'x'
	require.NotEqual(t, a[0], DefaultSource()[0])
}
