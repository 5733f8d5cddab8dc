package ir

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, doc string) (Request, error) {
	t.Helper()
	v, err := UnmarshalValue([]byte(doc))
	require.NoError(t, err)
	return ParseRequest(v)
}

func TestParseRequest_Full(t *testing.T) {
	req, err := mustParse(t, `{
		"version": 1,
		"action": {"verb": "create", "table": "branch", "payload": {"name": "x"}},
		"tables": {"branch": {"lastRowId": 4, "lastLogId": 2}, "erase": {}}
	}`)
	require.NoError(t, err)

	assert.Equal(t, 1, req.Version)
	require.NotNil(t, req.Action)
	assert.Equal(t, VerbCreate, req.Action.Verb)
	assert.Equal(t, "branch", req.Action.Table)
	assert.Equal(t, Object{"name": String("x")}, req.Action.Payload)
	assert.Equal(t, Cursor{LastRowID: 4, LastLogID: 2}, req.Tables["branch"])
	assert.Equal(t, Cursor{}, req.Tables["erase"])
}

func TestParseRequest_NullActionAndTables(t *testing.T) {
	req, err := mustParse(t, `{"version": 1, "action": null, "tables": null}`)
	require.NoError(t, err)
	assert.Nil(t, req.Action)
	assert.Empty(t, req.Tables)
}

func TestParseRequest_DeleteWithIntPayload(t *testing.T) {
	req, err := mustParse(t, `{"version": 1, "action": {"verb": "DELETE", "table": "branch", "payload": 3}}`)
	require.NoError(t, err)
	assert.Equal(t, Int(3), req.Action.Payload)
}

func TestParseVerbAliases(t *testing.T) {
	for in, want := range map[string]Verb{
		"POST":   VerbCreate,
		" put ":  VerbUpdate,
		"Delete": VerbDelete,
		"create": VerbCreate,
		"UPDATE": VerbUpdate,
	} {
		got, err := ParseVerb(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseVerb("PATCH")
	assert.ErrorIs(t, err, ErrMalformedRequest)
}

func TestParseRequest_Rejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not an object", `[1]`},
		{"missing version", `{"tables": {}}`},
		{"string version", `{"version": "1"}`},
		{"unknown top-level key", `{"version": 1, "extra": true}`},
		{"action array", `{"version": 1, "action": []}`},
		{"action unknown key", `{"version": 1, "action": {"verb": "CREATE", "table": "b", "payload": {}, "arguments": []}}`},
		{"action missing payload", `{"version": 1, "action": {"verb": "CREATE", "table": "b"}}`},
		{"action string payload", `{"version": 1, "action": {"verb": "CREATE", "table": "b", "payload": "x"}}`},
		{"action numeric table", `{"version": 1, "action": {"verb": "CREATE", "table": 2, "payload": {}}}`},
		{"bad verb", `{"version": 1, "action": {"verb": "PATCH", "table": "b", "payload": {}}}`},
		{"cursor not object", `{"version": 1, "tables": {"branch": 3}}`},
		{"cursor unknown key", `{"version": 1, "tables": {"branch": {"maxId": 3}}}`},
		{"cursor negative", `{"version": 1, "tables": {"branch": {"lastRowId": -1}}}`},
		{"cursor string", `{"version": 1, "tables": {"branch": {"lastLogId": "0"}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := mustParse(t, tt.doc)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedRequest), "got %v", err)
		})
	}
}

func TestRequestToValueRoundTrip(t *testing.T) {
	orig := Request{
		Version: ProtocolVersion,
		Action:  &Action{Verb: VerbUpdate, Table: "branch", Payload: Object{"id": Int(1), "name": String("y")}},
		Tables:  map[string]Cursor{"branch": {LastRowID: 1, LastLogID: 1}},
	}

	data, err := MarshalCanonical(orig.ToValue())
	require.NoError(t, err)
	assert.Equal(t,
		`{"action":{"payload":{"id":1,"name":"y"},"table":"branch","verb":"UPDATE"},"tables":{"branch":{"lastLogId":1,"lastRowId":1}},"version":1}`,
		string(data))

	back, err := mustParse(t, string(data))
	require.NoError(t, err)
	assert.Equal(t, orig, back)
}

func TestResponseToValue(t *testing.T) {
	msg := "forbidden"
	resp := Response{
		Version:      ProtocolVersion,
		ActionResult: &msg,
		EOF:          true,
		Tables: []TablePayload{{
			Name:      "branch",
			Columns:   []string{"id", "name"},
			Rows:      [][]Value{{Int(1), String("x")}},
			LastLogID: 1,
		}},
	}

	data, err := MarshalCanonical(resp.ToValue())
	require.NoError(t, err)
	assert.Equal(t,
		`{"actionResult":"forbidden","eof":true,"message":null,"tables":[{"columns":["id","name"],"lastLogId":1,"name":"branch","rows":[[1,"x"]]}],"version":1}`,
		string(data))

	v, err := UnmarshalValue(data)
	require.NoError(t, err)
	back, err := ParseResponse(v)
	require.NoError(t, err)
	assert.Equal(t, resp, back)
}

func TestCursorAdvance(t *testing.T) {
	c := Cursor{LastRowID: 10, LastLogID: 3}

	// A page of edited rows below the high-water mark keeps LastRowID.
	next := c.Advance(TablePayload{
		Columns:   []string{"id", "name"},
		Rows:      [][]Value{{Int(2), String("b")}, {Int(7), String("g")}},
		LastLogID: 5,
	})
	assert.Equal(t, Cursor{LastRowID: 10, LastLogID: 5}, next)

	next = next.Advance(TablePayload{
		Columns: []string{"id"},
		Rows:    [][]Value{{Int(12)}},
	})
	assert.Equal(t, Cursor{LastRowID: 12, LastLogID: 5}, next)
}
