// Package client is a reference sync client. It drives rounds until the
// server reports EOF, keeps an in-memory replica and advances cursors.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/roach88/tablesync/internal/auth"
	"github.com/roach88/tablesync/internal/codec"
	"github.com/roach88/tablesync/internal/ir"
	"github.com/roach88/tablesync/internal/registry"
)

// DefaultMaxRounds bounds Sync when the server never reports EOF.
const DefaultMaxRounds = 1000

// ErrTooManyRounds is returned when Sync hits its round limit.
var ErrTooManyRounds = errors.New("sync did not reach eof")

// StatusError is a non-200 answer from the server.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// IsUnauthorized reports whether err is a 401 from the server.
func IsUnauthorized(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == http.StatusUnauthorized
}

// Client syncs against one server endpoint.
type Client struct {
	url       string
	user      string
	password  string
	http      *http.Client
	codec     codec.Codec
	registry  *registry.Registry
	maxRounds int
	logger    *slog.Logger

	cursors map[string]ir.Cursor
	replica *Replica
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithCodec sets the wire encoding. Defaults to JSON.
func WithCodec(cd codec.Codec) Option {
	return func(c *Client) { c.codec = cd }
}

// WithRegistry sets the registry used to map deletion entries to tables.
func WithRegistry(reg *registry.Registry) Option {
	return func(c *Client) { c.registry = reg }
}

// WithMaxRounds bounds the number of rounds per Sync.
func WithMaxRounds(n int) Option {
	return func(c *Client) { c.maxRounds = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a client for the sync endpoint at url.
func New(url, user, password string, opts ...Option) *Client {
	c := &Client{
		url:       url,
		user:      user,
		password:  password,
		http:      http.DefaultClient,
		codec:     codec.JSON,
		registry:  registry.Default(),
		maxRounds: DefaultMaxRounds,
		logger:    slog.Default(),
		cursors:   make(map[string]ir.Cursor),
		replica:   NewReplica(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Summary describes one Sync call.
type Summary struct {
	Rounds int

	// ActionResult is the server's verdict on the action, nil on success
	// or when no action was sent.
	ActionResult *string

	// Received counts rows applied per table, including deletion entries.
	Received map[string]int

	// Removed counts rows dropped from the replica.
	Removed int
}

// Sync sends action (may be nil) in the first round, then keeps requesting
// until the server reports EOF.
func (c *Client) Sync(ctx context.Context, action *ir.Action) (Summary, error) {
	sum := Summary{Received: make(map[string]int)}

	for sum.Rounds < c.maxRounds {
		var act *ir.Action
		if sum.Rounds == 0 {
			act = action
		}

		resp, err := c.Round(ctx, act)
		if err != nil {
			return sum, err
		}
		sum.Rounds++
		if sum.Rounds == 1 {
			sum.ActionResult = resp.ActionResult
		}

		removed := c.apply(resp)
		sum.Removed += removed
		for _, t := range resp.Tables {
			sum.Received[t.Name] += len(t.Rows)
		}

		c.logger.Debug("sync round", "round", sum.Rounds, "tables", len(resp.Tables), "eof", resp.EOF)
		if resp.EOF {
			return sum, nil
		}
	}
	return sum, fmt.Errorf("%w after %d rounds", ErrTooManyRounds, sum.Rounds)
}

// Round performs one request without touching the replica or cursors.
func (c *Client) Round(ctx context.Context, action *ir.Action) (*ir.Response, error) {
	req := ir.Request{
		Version: ir.ProtocolVersion,
		Action:  action,
		Tables:  c.Cursors(),
	}
	body, err := c.codec.EncodeRequest(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", c.codec.ContentType())
	httpReq.Header.Set("Authorization", auth.SchemeBasic+" "+auth.BasicToken(c.user, c.password))

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", c.url, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, &StatusError{Status: httpResp.StatusCode, Message: failureMessage(c.codec, data)}
	}

	resp, err := c.codec.DecodeResponse(data)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// apply merges a response into the replica and advances cursors. It returns
// the number of rows removed.
func (c *Client) apply(resp *ir.Response) int {
	removed := 0
	for _, p := range resp.Tables {
		c.cursors[p.Name] = c.cursors[p.Name].Advance(p)

		t, ok := c.registry.Lookup(p.Name)
		if !ok {
			c.logger.Warn("ignoring unknown table", "table", p.Name)
			continue
		}
		if t.Kind == registry.KindDeletionLog {
			removed += c.applyDeletions(p)
			continue
		}
		c.replica.Apply(p)
	}
	return removed
}

func (c *Client) applyDeletions(p ir.TablePayload) int {
	tableIdx := indexOf(p.Columns, registry.ColumnTableID)
	rowIdx := indexOf(p.Columns, registry.ColumnRowID)
	if tableIdx < 0 || rowIdx < 0 {
		return 0
	}

	removed := 0
	for _, row := range p.Rows {
		if tableIdx >= len(row) || rowIdx >= len(row) {
			continue
		}
		tableID, ok1 := row[tableIdx].(ir.Int)
		rowID, ok2 := row[rowIdx].(ir.Int)
		if !ok1 || !ok2 {
			continue
		}
		t, ok := c.registry.TableByID(int(tableID))
		if !ok {
			continue
		}
		if c.replica.Remove(t.Name, int64(rowID)) {
			removed++
		}
	}
	return removed
}

// Cursors returns a copy of the current cursors.
func (c *Client) Cursors() map[string]ir.Cursor {
	out := make(map[string]ir.Cursor, len(c.cursors))
	for k, v := range c.cursors {
		out[k] = v
	}
	return out
}

// SetCursors replaces the cursors, e.g. to resume from saved state.
func (c *Client) SetCursors(cursors map[string]ir.Cursor) {
	c.cursors = make(map[string]ir.Cursor, len(cursors))
	for k, v := range cursors {
		c.cursors[k] = v
	}
}

// Replica returns the local replica.
func (c *Client) Replica() *Replica {
	return c.replica
}

func failureMessage(cd codec.Codec, data []byte) string {
	if resp, err := cd.DecodeResponse(data); err == nil && resp.Message != nil {
		return *resp.Message
	}
	return strings.TrimSpace(string(data))
}
