package ir

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedRequest is returned when a request does not match the
// protocol schema. Requests are rejected rather than read best-effort.
var ErrMalformedRequest = errors.New("malformed request")

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedRequest, fmt.Sprintf(format, args...))
}

// ParseVerb normalizes a verb name. The legacy HTTP-style names POST and
// PUT are accepted as aliases for CREATE and UPDATE.
func ParseVerb(s string) (Verb, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CREATE", "POST":
		return VerbCreate, nil
	case "UPDATE", "PUT":
		return VerbUpdate, nil
	case "DELETE":
		return VerbDelete, nil
	default:
		return "", malformed("unknown verb %q", s)
	}
}

// ParseRequest converts a decoded request document into a Request.
//
// Accepted shape:
//
//	{ version: int,
//	  action: null | { verb: string, table: string, payload: object|int },
//	  tables: { <name>: { lastRowId: int, lastLogId: int } } }
//
// Unknown keys, wrong types and negative cursors are rejected.
func ParseRequest(v Value) (Request, error) {
	obj, ok := v.(Object)
	if !ok {
		return Request{}, malformed("request must be an object, got %s", typeName(v))
	}
	if err := onlyKeys(obj, "request", "version", "action", "tables"); err != nil {
		return Request{}, err
	}

	version, ok := obj["version"].(Int)
	if !ok {
		return Request{}, malformed("version must be an integer")
	}

	req := Request{
		Version: int(version),
		Tables:  map[string]Cursor{},
	}

	if raw, present := obj["action"]; present {
		if _, isNull := raw.(Null); !isNull {
			action, err := parseAction(raw)
			if err != nil {
				return Request{}, err
			}
			req.Action = action
		}
	}

	if raw, present := obj["tables"]; present {
		if _, isNull := raw.(Null); !isNull {
			tables, ok := raw.(Object)
			if !ok {
				return Request{}, malformed("tables must be an object")
			}
			for name, rawCursor := range tables {
				cursor, err := parseCursor(name, rawCursor)
				if err != nil {
					return Request{}, err
				}
				req.Tables[name] = cursor
			}
		}
	}

	return req, nil
}

func parseAction(v Value) (*Action, error) {
	obj, ok := v.(Object)
	if !ok {
		return nil, malformed("action must be an object or null")
	}
	if err := onlyKeys(obj, "action", "verb", "table", "payload"); err != nil {
		return nil, err
	}

	verbStr, ok := obj["verb"].(String)
	if !ok {
		return nil, malformed("action.verb must be a string")
	}
	verb, err := ParseVerb(string(verbStr))
	if err != nil {
		return nil, err
	}

	table, ok := obj["table"].(String)
	if !ok {
		return nil, malformed("action.table must be a string")
	}

	payload, present := obj["payload"]
	if !present {
		return nil, malformed("action.payload is required")
	}
	switch payload.(type) {
	case Object, Int:
	default:
		return nil, malformed("action.payload must be an object or an integer")
	}

	return &Action{Verb: verb, Table: string(table), Payload: payload}, nil
}

func parseCursor(table string, v Value) (Cursor, error) {
	obj, ok := v.(Object)
	if !ok {
		return Cursor{}, malformed("tables[%q] must be an object", table)
	}
	if err := onlyKeys(obj, fmt.Sprintf("tables[%q]", table), "lastRowId", "lastLogId"); err != nil {
		return Cursor{}, err
	}

	var c Cursor
	for key, dst := range map[string]*int64{"lastRowId": &c.LastRowID, "lastLogId": &c.LastLogID} {
		raw, present := obj[key]
		if !present {
			continue
		}
		n, ok := raw.(Int)
		if !ok {
			return Cursor{}, malformed("tables[%q].%s must be an integer", table, key)
		}
		if n < 0 {
			return Cursor{}, malformed("tables[%q].%s must not be negative", table, key)
		}
		*dst = int64(n)
	}
	return c, nil
}

func onlyKeys(obj Object, where string, allowed ...string) error {
	for _, k := range obj.SortedKeys() {
		known := false
		for _, a := range allowed {
			if k == a {
				known = true
				break
			}
		}
		if !known {
			return malformed("%s: unknown key %q", where, k)
		}
	}
	return nil
}

func typeName(v Value) string {
	switch v.(type) {
	case nil, Null:
		return "null"
	case String:
		return "string"
	case Int:
		return "integer"
	case Bool:
		return "bool"
	case Array:
		return "array"
	case Object:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// ToValue renders the request in its wire shape. Used by clients.
func (r Request) ToValue() Object {
	tables := make(Object, len(r.Tables))
	for name, c := range r.Tables {
		tables[name] = Object{
			"lastRowId": Int(c.LastRowID),
			"lastLogId": Int(c.LastLogID),
		}
	}

	var action Value = Null{}
	if r.Action != nil {
		payload := r.Action.Payload
		if payload == nil {
			payload = Null{}
		}
		action = Object{
			"verb":    String(r.Action.Verb),
			"table":   String(r.Action.Table),
			"payload": payload,
		}
	}

	return Object{
		"version": Int(r.Version),
		"action":  action,
		"tables":  tables,
	}
}
