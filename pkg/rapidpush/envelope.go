package rapidpush

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
)

// StatusOK is the service code for a successful command.
const StatusOK = 200

// Response is the outcome of one command for one API key.
type Response struct {
	Code    int
	Message string
	// Data is the payload as JSON text. A plain string payload is stored
	// unquoted; arrays and objects keep their compact JSON form.
	Data string
}

// OK reports whether the service accepted the command.
func (r Response) OK() bool { return r.Code == StatusOK }

// Envelope is a decoded service reply. It is either a Single or a Multi.
type Envelope interface {
	isEnvelope()
}

// Single is the reply of a request made with one API key.
type Single struct {
	Response
}

// Multi is the reply of a request made with several API keys, keyed by key.
type Multi struct {
	keys    []string
	entries map[string]Response
}

func (Single) isEnvelope() {}
func (Multi) isEnvelope()  {}

// Keys returns the API keys in the order the service sent them.
func (m Multi) Keys() []string {
	return append([]string(nil), m.keys...)
}

// Get returns the entry for one API key.
func (m Multi) Get(apiKey string) (Response, bool) {
	r, ok := m.entries[apiKey]
	return r, ok
}

// Len is the number of API keys in the reply.
func (m Multi) Len() int { return len(m.keys) }

// First returns the entry the service sent first. It exists for callers that
// treat every reply as a single one; new code should walk Keys instead.
func (m Multi) First() (string, Response, bool) {
	if len(m.keys) == 0 {
		return "", Response{}, false
	}
	key := m.keys[0]
	return key, m.entries[key], true
}

// AsSingle collapses an envelope into one Response. A Multi collapses to its
// first entry. A non-200 code is returned as a *ResponseError.
func AsSingle(env Envelope) (Response, error) {
	var (
		resp   Response
		apiKey string
	)
	switch e := env.(type) {
	case Single:
		resp = e.Response
	case Multi:
		key, first, ok := e.First()
		if !ok {
			return Response{}, &MalformedResponseError{Cause: errors.New("multi response has no entries")}
		}
		resp, apiKey = first, key
	default:
		return Response{}, &MalformedResponseError{Cause: fmt.Errorf("unsupported envelope %T", env)}
	}
	if !resp.OK() {
		return resp, &ResponseError{APIKey: apiKey, Code: resp.Code, Message: resp.Message}
	}
	return resp, nil
}

// ParseEnvelope decodes a raw reply body. A top-level integer "code" and
// string "desc" make it a Single; otherwise every top-level key is taken as
// an API key whose value is a single reply.
func ParseEnvelope(body []byte) (Envelope, error) {
	fields, keys, err := decodeObject(body)
	if err != nil {
		return nil, &MalformedResponseError{Cause: err}
	}
	if resp, ok := decodeResponse(fields); ok {
		return Single{Response: resp}, nil
	}
	if len(keys) == 0 {
		return nil, &MalformedResponseError{Cause: errors.New("envelope has neither a code nor api key entries")}
	}

	entries := make(map[string]Response, len(keys))
	for _, key := range keys {
		nested, _, err := decodeObject(fields[key])
		if err != nil {
			return nil, &MalformedResponseError{Cause: fmt.Errorf("api key %s: %w", key, err)}
		}
		resp, ok := decodeResponse(nested)
		if !ok {
			return nil, &MalformedResponseError{Cause: fmt.Errorf("api key %s: entry has no code/desc", key)}
		}
		entries[key] = resp
	}
	return Multi{keys: keys, entries: entries}, nil
}

// decodeObject reads one JSON object and keeps its key order.
func decodeObject(data []byte) (map[string]json.RawMessage, []string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, fmt.Errorf("expected a json object, got %v", tok)
	}

	fields := make(map[string]json.RawMessage)
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("unexpected object key %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, nil, fmt.Errorf("field %q: %w", key, err)
		}
		if _, seen := fields[key]; !seen {
			keys = append(keys, key)
		}
		fields[key] = raw
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, nil, errors.New("unexpected data after json object")
	}
	return fields, keys, nil
}

func decodeResponse(fields map[string]json.RawMessage) (Response, bool) {
	code, ok := decodeCode(fields["code"])
	if !ok {
		return Response{}, false
	}
	desc, ok := asString(fields["desc"])
	if !ok {
		return Response{}, false
	}
	return Response{Code: code, Message: desc, Data: coerceData(fields["data"])}, true
}

// decodeCode accepts an integral JSON number or a string holding one.
func decodeCode(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, false
	}

	var n json.Number
	switch x := v.(type) {
	case json.Number:
		n = x
	case string:
		n = json.Number(x)
	default:
		return 0, false
	}
	if i, err := n.Int64(); err == nil && i >= math.MinInt32 && i <= math.MaxInt32 {
		return int(i), true
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

// dataCoercions are tried in order; the first success wins and anything
// else (null, numbers, booleans, absent) becomes "".
var dataCoercions = []func(json.RawMessage) (string, bool){
	asString,
	asArrayText,
	asObjectText,
}

func coerceData(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	for _, coerce := range dataCoercions {
		if s, ok := coerce(raw); ok {
			return s
		}
	}
	return ""
}

func asString(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func asArrayText(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || raw[0] != '[' {
		return "", false
	}
	return compactText(raw)
}

func asObjectText(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || raw[0] != '{' {
		return "", false
	}
	return compactText(raw)
}

func compactText(raw json.RawMessage) (string, bool) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return "", false
	}
	return buf.String(), true
}
