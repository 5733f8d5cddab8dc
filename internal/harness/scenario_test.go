package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalScenario = `
name: minimal
description: one request
users:
  - name: ann
    password: secret
    account: acme
steps:
  - name: sync
    user: ann
    request:
      version: 1
      tables: {}
`

func TestParseScenario_Minimal(t *testing.T) {
	s, err := ParseScenario([]byte(minimalScenario))
	require.NoError(t, err)

	assert.Equal(t, "minimal", s.Name)
	assert.Zero(t, s.PageSize)
	require.Len(t, s.Users, 1)
	assert.Equal(t, User{Name: "ann", Password: "secret", Account: "acme"}, s.Users[0])
	require.Len(t, s.Steps, 1)
	assert.Equal(t, "ann", s.Steps[0].User)
	assert.Equal(t, 1, s.Steps[0].Request["version"])
	assert.Nil(t, s.Steps[0].Expect)
}

func TestParseScenario_Expectations(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: expect
description: expectations decode
page_size: 3
users:
  - {name: ann, password: secret, account: acme}
seed:
  - account: acme
    table: branch
    rows:
      - name: b1
steps:
  - name: sync
    user: ann
    request: {version: 1}
    expect:
      status: 200
      eof: false
      tables:
        branch:
          rows: [1, 2]
          last_log_id: 4
        erase:
          rows: []
      absent: [modify]
assertions:
  - type: row_count
    account: acme
    table: branch
    count: 1
`))
	require.NoError(t, err)

	assert.Equal(t, 3, s.PageSize)
	require.Len(t, s.Seed, 1)
	assert.Equal(t, "b1", s.Seed[0].Rows[0]["name"])

	exp := s.Steps[0].Expect
	require.NotNil(t, exp)
	require.NotNil(t, exp.EOF)
	assert.False(t, *exp.EOF)
	assert.Equal(t, []int64{1, 2}, exp.Tables["branch"].Rows)
	require.NotNil(t, exp.Tables["branch"].LastLogID)
	assert.Equal(t, int64(4), *exp.Tables["branch"].LastLogID)
	assert.NotNil(t, exp.Tables["erase"].Rows)
	assert.Empty(t, exp.Tables["erase"].Rows)
	assert.Equal(t, []string{"modify"}, exp.Absent)
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing name",
			yaml:    "description: d\nsteps: [{name: s, request: {version: 1}}]",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			yaml:    "name: n\nsteps: [{name: s, request: {version: 1}}]",
			wantErr: "description is required",
		},
		{
			name:    "no steps",
			yaml:    "name: n\ndescription: d",
			wantErr: "steps list is required",
		},
		{
			name:    "unknown field",
			yaml:    "name: n\ndescription: d\nflow: []\nsteps: [{name: s, request: {version: 1}}]",
			wantErr: "field flow not found",
		},
		{
			name: "duplicate user",
			yaml: `name: n
description: d
users: [{name: ann, account: a}, {name: ann, account: b}]
steps: [{name: s, request: {version: 1}}]`,
			wantErr: `duplicate user "ann"`,
		},
		{
			name: "unknown step user",
			yaml: `name: n
description: d
steps: [{name: s, user: bob, request: {version: 1}}]`,
			wantErr: `unknown user "bob"`,
		},
		{
			name: "duplicate step",
			yaml: `name: n
description: d
steps: [{name: s, request: {version: 1}}, {name: s, request: {version: 1}}]`,
			wantErr: `duplicate step name "s"`,
		},
		{
			name: "step without request",
			yaml: `name: n
description: d
steps: [{name: s}]`,
			wantErr: "request or body is required",
		},
		{
			name: "seed for unknown account",
			yaml: `name: n
description: d
seed: [{account: nobody, table: branch, rows: []}]
steps: [{name: s, request: {version: 1}}]`,
			wantErr: `unknown account "nobody"`,
		},
		{
			name: "seed for unknown table",
			yaml: `name: n
description: d
users: [{name: ann, account: a}]
seed: [{account: a, table: "branch; DROP TABLE user", rows: []}]
steps: [{name: s, request: {version: 1}}]`,
			wantErr: "unknown table",
		},
		{
			name: "unknown assertion type",
			yaml: `name: n
description: d
steps: [{name: s, request: {version: 1}}]
assertions: [{type: trace_contains}]`,
			wantErr: `unknown assertion type "trace_contains"`,
		},
		{
			name: "state sequence for unknown step",
			yaml: `name: n
description: d
steps: [{name: s, request: {version: 1}}]
assertions: [{type: state_sequence, step: other, states: [received]}]`,
			wantErr: `unknown step "other"`,
		},
		{
			name: "unknown state",
			yaml: `name: n
description: d
steps: [{name: s, request: {version: 1}}]
assertions: [{type: trace_count, state: finished, count: 1}]`,
			wantErr: `unknown state "finished"`,
		},
		{
			name: "final state without where",
			yaml: `name: n
description: d
steps: [{name: s, request: {version: 1}}]
assertions: [{type: final_state, table: branch, expect: {name: x}}]`,
			wantErr: "where is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minimal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalScenario), 0o644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "minimal", s.Name)

	_, err = LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}
