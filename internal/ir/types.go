package ir

// AccountID identifies the tenant that owns rows and log entries.
// It is established by authentication and never read from a request body.
type AccountID int64

// Verb names a client mutation.
type Verb string

const (
	VerbCreate Verb = "CREATE"
	VerbUpdate Verb = "UPDATE"
	VerbDelete Verb = "DELETE"
)

// Cursor is the client's sync progress for one table.
type Cursor struct {
	LastRowID int64 `json:"lastRowId" yaml:"lastRowId"`
	LastLogID int64 `json:"lastLogId" yaml:"lastLogId"`
}

// Advance returns the cursor a client should send after receiving p.
// The row high-water mark never moves backwards: a page made only of
// edited rows may top out below what the client already holds.
func (c Cursor) Advance(p TablePayload) Cursor {
	next := c
	for _, id := range p.RowIDs() {
		if id > next.LastRowID {
			next.LastRowID = id
		}
	}
	if p.LastLogID > next.LastLogID {
		next.LastLogID = p.LastLogID
	}
	return next
}

// Action is the single mutation a request may carry.
//
// Payload is an Object for CREATE and UPDATE (UPDATE carries the target
// "id" inside it) and an Int row id for DELETE.
type Action struct {
	Verb    Verb
	Table   string
	Payload Value
}

// Request is one sync round trip from the client.
type Request struct {
	Version int
	Action  *Action
	Tables  map[string]Cursor
}

// TablePayload holds the rows of one table returned in a response.
type TablePayload struct {
	Name    string
	Columns []string
	Rows    [][]Value

	// LastLogID is the highest modification log id consumed for this table.
	LastLogID int64
}

// RowIDs returns the values of the "id" column for every row, skipping
// rows whose id is not an integer.
func (p TablePayload) RowIDs() []int64 {
	idx := -1
	for i, c := range p.Columns {
		if c == "id" {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}

	ids := make([]int64, 0, len(p.Rows))
	for _, row := range p.Rows {
		if idx >= len(row) {
			continue
		}
		if id, ok := row[idx].(Int); ok {
			ids = append(ids, int64(id))
		}
	}
	return ids
}

// Response is the server's answer to a Request.
type Response struct {
	Version int

	// ActionResult is nil when no action was sent or it succeeded.
	ActionResult *string

	EOF     bool
	Message *string
	Tables  []TablePayload
}

// Table returns the payload for the named table, if present.
func (r *Response) Table(name string) (TablePayload, bool) {
	for _, t := range r.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return TablePayload{}, false
}
