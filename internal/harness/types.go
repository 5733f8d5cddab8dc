package harness

import "github.com/roach88/tablesync/internal/ir"

// Trace event types.
const (
	EventState    = "state"
	EventResponse = "response"
)

// TraceEvent is one entry in a scenario trace: a session state transition
// or the HTTP response that ended a step.
type TraceEvent struct {
	Seq       int64
	Step      string
	Type      string
	RequestID string   // state events
	State     string   // state events
	Status    int      // response events
	Body      ir.Value // response events, decoded
}

// ToValue renders the event for canonical JSON. Empty fields are omitted.
func (e TraceEvent) ToValue() ir.Object {
	obj := ir.Object{
		"seq":  ir.Int(e.Seq),
		"step": ir.String(e.Step),
		"type": ir.String(e.Type),
	}
	switch e.Type {
	case EventState:
		obj["request_id"] = ir.String(e.RequestID)
		obj["state"] = ir.String(e.State)
	case EventResponse:
		obj["status"] = ir.Int(e.Status)
		if e.Body != nil {
			obj["body"] = e.Body
		}
	}
	return obj
}

// Result is the outcome of running a scenario.
type Result struct {
	Pass   bool
	Trace  []TraceEvent
	Errors []string
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failure and marks the result failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) addEvent(e TraceEvent) {
	e.Seq = int64(len(r.Trace) + 1)
	r.Trace = append(r.Trace, e)
}
