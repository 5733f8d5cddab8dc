// Package harness runs YAML sync scenarios against a fresh in-memory
// server and checks responses, final table state and the session trace.
//
// # Scenario Format
//
//	name: create_then_sync
//	description: "A created row comes back in the same round trip"
//	page_size: 2
//	users:
//	  - { name: ann, password: secret, account: acme }
//	seed:
//	  - account: acme
//	    table: branch
//	    rows: [ { name: north } ]
//	steps:
//	  - name: create
//	    user: ann
//	    request:
//	      version: 1
//	      action: { verb: CREATE, table: branch, payload: { name: x } }
//	      tables: { branch: { lastRowId: 0, lastLogId: 0 } }
//	    expect:
//	      status: 200
//	      eof: true
//	      action_ok: true
//	      tables:
//	        branch: { rows: [1, 2], last_log_id: 1 }
//	assertions:
//	  - type: row_count
//	    account: acme
//	    table: branch
//	    count: 2
//
// Seeded rows are written directly and get no change-log entries. Each
// step is posted to the sync endpoint as canonical JSON (or as body
// verbatim, for malformed input) with Basic credentials for user.
//
// # Assertion Types
//
//   - row_count: rows of table owned by account
//   - final_state: a row matching where has the expected column values
//   - state_sequence: the session states one step passed through
//   - trace_count: how many times a session state was entered
//
// # Determinism
//
// Request ids come from testutil.SequentialRequestIDGenerator and the
// store is in memory, so a scenario yields byte-identical traces across
// runs. RunWithGolden compares them with goldie.
package harness
