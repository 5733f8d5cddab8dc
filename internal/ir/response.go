package ir

import "fmt"

// ToValue renders the response in its wire shape:
//
//	{ version, actionResult, eof, message,
//	  tables: [ { name, columns, rows, lastLogId } ] }
func (r Response) ToValue() Object {
	tables := make(Array, len(r.Tables))
	for i, t := range r.Tables {
		columns := make(Array, len(t.Columns))
		for j, c := range t.Columns {
			columns[j] = String(c)
		}
		rows := make(Array, len(t.Rows))
		for j, row := range t.Rows {
			cells := make(Array, len(row))
			for k, cell := range row {
				if cell == nil {
					cell = Null{}
				}
				cells[k] = cell
			}
			rows[j] = cells
		}
		tables[i] = Object{
			"name":      String(t.Name),
			"columns":   columns,
			"rows":      rows,
			"lastLogId": Int(t.LastLogID),
		}
	}

	return Object{
		"version":      Int(r.Version),
		"actionResult": optionalString(r.ActionResult),
		"eof":          Bool(r.EOF),
		"message":      optionalString(r.Message),
		"tables":       tables,
	}
}

func optionalString(s *string) Value {
	if s == nil {
		return Null{}
	}
	return String(*s)
}

// ParseResponse converts a decoded response document into a Response.
// Clients use it; it tolerates unknown keys so newer servers stay readable.
func ParseResponse(v Value) (Response, error) {
	obj, ok := v.(Object)
	if !ok {
		return Response{}, fmt.Errorf("response must be an object, got %s", typeName(v))
	}

	var resp Response
	version, ok := obj["version"].(Int)
	if !ok {
		return Response{}, fmt.Errorf("response version must be an integer")
	}
	resp.Version = int(version)

	eof, ok := obj["eof"].(Bool)
	if !ok {
		return Response{}, fmt.Errorf("response eof must be a bool")
	}
	resp.EOF = bool(eof)

	if s, ok := obj["actionResult"].(String); ok {
		str := string(s)
		resp.ActionResult = &str
	}
	if s, ok := obj["message"].(String); ok {
		str := string(s)
		resp.Message = &str
	}

	tables, _ := obj["tables"].(Array)
	for i, rawTable := range tables {
		t, ok := rawTable.(Object)
		if !ok {
			return Response{}, fmt.Errorf("tables[%d] must be an object", i)
		}
		name, ok := t["name"].(String)
		if !ok {
			return Response{}, fmt.Errorf("tables[%d].name must be a string", i)
		}
		payload := TablePayload{Name: string(name)}

		columns, _ := t["columns"].(Array)
		for _, c := range columns {
			col, ok := c.(String)
			if !ok {
				return Response{}, fmt.Errorf("tables[%d].columns must hold strings", i)
			}
			payload.Columns = append(payload.Columns, string(col))
		}

		rows, _ := t["rows"].(Array)
		for j, r := range rows {
			row, ok := r.(Array)
			if !ok {
				return Response{}, fmt.Errorf("tables[%d].rows[%d] must be an array", i, j)
			}
			payload.Rows = append(payload.Rows, []Value(row))
		}

		if lastLogID, ok := t["lastLogId"].(Int); ok {
			payload.LastLogID = int64(lastLogID)
		}
		resp.Tables = append(resp.Tables, payload)
	}

	return resp, nil
}
