package harness

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"

	"github.com/roach88/tablesync/internal/app"
	"github.com/roach88/tablesync/internal/auth"
	"github.com/roach88/tablesync/internal/codec"
	"github.com/roach88/tablesync/internal/ir"
	"github.com/roach88/tablesync/internal/queryir"
	"github.com/roach88/tablesync/internal/registry"
	"github.com/roach88/tablesync/internal/server"
	"github.com/roach88/tablesync/internal/session"
	"github.com/roach88/tablesync/internal/store"
	"github.com/roach88/tablesync/internal/testutil"
)

// Harness runs one scenario against a private store and server.
type Harness struct {
	store    *store.Store
	handler  http.Handler
	ids      *testutil.SequentialRequestIDGenerator
	users    map[string]User
	accounts map[string]ir.AccountID
	result   *Result
	step     string
}

// Run executes a scenario in a fresh in-memory database.
//
// Execution order:
//  1. provision users and their accounts
//  2. insert seed rows
//  3. post each step to the sync endpoint, recording session states and
//     the response, and checking the step's expectations
//  4. evaluate assertions
//
// A returned error means the scenario could not be executed; expectation
// and assertion failures are reported in the Result.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	discard := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := &Harness{
		store:    st,
		ids:      testutil.NewSequentialRequestIDGenerator("req"),
		users:    make(map[string]User),
		accounts: make(map[string]ir.AccountID),
		result:   NewResult(),
	}

	ctx := context.Background()
	if err := h.provision(ctx, scenario.Users); err != nil {
		return nil, fmt.Errorf("failed to provision users: %w", err)
	}
	if err := h.seed(ctx, scenario.Seed); err != nil {
		return nil, fmt.Errorf("failed to seed: %w", err)
	}

	sess, err := app.NewSession(st, app.Options{
		PageSize:   scenario.PageSize,
		Logger:     discard,
		RequestIDs: h.ids,
		Observer:   h.observe,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build session: %w", err)
	}
	h.handler = server.New(sess, server.Config{}, discard).Handler()

	for _, step := range scenario.Steps {
		if err := h.runStep(step); err != nil {
			return nil, fmt.Errorf("step %q: %w", step.Name, err)
		}
	}

	actx := &AssertionContext{Ctx: ctx, Store: st, Accounts: h.accounts}
	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions, actx) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

func (h *Harness) provision(ctx context.Context, users []User) error {
	for _, u := range users {
		account, err := app.AddUser(ctx, h.store, u.Account, u.Name, u.Password)
		if err != nil {
			return err
		}
		h.accounts[u.Account] = account
		h.users[u.Name] = u
	}
	return nil
}

// seed writes rows directly, bypassing the applier, so they have no
// change-log entries.
func (h *Harness) seed(ctx context.Context, seeds []Seed) error {
	for _, s := range seeds {
		account := h.accounts[s.Account]
		for i, row := range s.Rows {
			columns := make([]string, 0, len(row)+1)
			for c := range row {
				columns = append(columns, c)
			}
			sort.Strings(columns)

			values := make([]ir.Value, 0, len(columns)+1)
			for _, c := range columns {
				v, err := ir.FromNative(row[c])
				if err != nil {
					return fmt.Errorf("%s row %d column %s: %w", s.Table, i, c, err)
				}
				values = append(values, v)
			}
			columns = append(columns, registry.ColumnAccount)
			values = append(values, ir.Int(account))

			if _, err := store.Exec(ctx, h.store.DB(), queryir.Insert{Into: s.Table, Columns: columns, Values: values}); err != nil {
				return fmt.Errorf("%s row %d: %w", s.Table, i, err)
			}
		}
	}
	return nil
}

func (h *Harness) observe(requestID string, s session.State) {
	h.result.addEvent(TraceEvent{
		Step:      h.step,
		Type:      EventState,
		RequestID: requestID,
		State:     s.String(),
	})
}

func (h *Harness) runStep(step Step) error {
	h.step = step.Name

	body := []byte(step.Body)
	if step.Body == "" {
		v, err := ir.FromNative(step.Request)
		if err != nil {
			return fmt.Errorf("request: %w", err)
		}
		body, err = ir.MarshalCanonical(v)
		if err != nil {
			return fmt.Errorf("request: %w", err)
		}
	}

	req := httptest.NewRequest(http.MethodPost, server.PathSync, bytes.NewReader(body))
	contentType := step.ContentType
	if contentType == "" {
		contentType = codec.ContentTypeJSON
	}
	req.Header.Set("Content-Type", contentType)
	if step.User != "" {
		u := h.users[step.User]
		password := u.Password
		if step.Password != "" {
			password = step.Password
		}
		req.Header.Set("Authorization", auth.SchemeBasic+" "+auth.BasicToken(u.Name, password))
	}

	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)

	event := TraceEvent{Step: step.Name, Type: EventResponse, Status: rec.Code}
	var resp *ir.Response
	if c, ok := codec.ForContentType(rec.Header().Get("Content-Type")); ok {
		if decoded, err := c.DecodeResponse(rec.Body.Bytes()); err == nil {
			resp = decoded
			event.Body = decoded.ToValue()
		}
	}
	h.result.addEvent(event)

	if step.Expect != nil {
		for _, msg := range checkExpect(step.Name, step.Expect, rec.Code, resp) {
			h.result.AddError(msg)
		}
	}
	return nil
}
