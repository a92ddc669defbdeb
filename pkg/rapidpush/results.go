package rapidpush

import (
	"encoding/json"
	"fmt"

	"go.uber.org/multierr"
)

// NotifyResult is the outcome of a notify command.
//
// For a single-key reply it only exists when the service accepted the
// notification. For a multi-key reply it always exists and reports each key
// separately.
type NotifyResult struct {
	envelope Envelope
	valid    bool
	perKey   map[string]bool
}

// NewNotifyResult wraps a parsed envelope. A Single with a non-200 code is
// returned as a *ResponseError; a Multi never fails here.
func NewNotifyResult(env Envelope) (*NotifyResult, error) {
	switch e := env.(type) {
	case Single:
		if !e.OK() {
			return nil, &ResponseError{Code: e.Code, Message: e.Message}
		}
		return &NotifyResult{envelope: env, valid: true}, nil
	case Multi:
		perKey := make(map[string]bool, e.Len())
		for _, key := range e.keys {
			perKey[key] = e.entries[key].OK()
		}
		return &NotifyResult{envelope: env, perKey: perKey}, nil
	default:
		return nil, &MalformedResponseError{Cause: fmt.Errorf("unsupported envelope %T", env)}
	}
}

// Valid is true for an accepted single-key notification and always false
// for a multi-key one; use PerKeyValid there.
func (r *NotifyResult) Valid() bool { return r.valid }

// IsMulti reports whether the reply was keyed by API key.
func (r *NotifyResult) IsMulti() bool {
	_, ok := r.envelope.(Multi)
	return ok
}

// PerKeyValid maps each API key to whether the service accepted it.
// It is nil for a single-key result.
func (r *NotifyResult) PerKeyValid() map[string]bool {
	if r.perKey == nil {
		return nil
	}
	out := make(map[string]bool, len(r.perKey))
	for k, v := range r.perKey {
		out[k] = v
	}
	return out
}

// Envelope returns the parsed reply the result was built from.
func (r *NotifyResult) Envelope() Envelope { return r.envelope }

// Err combines the failures of a multi-key result, in key order.
func (r *NotifyResult) Err() error {
	return perKeyErr(r.envelope)
}

// GroupsResult is the outcome of a get_groups command.
type GroupsResult struct {
	envelope Envelope
	groups   []string
	perKey   map[string][]string
}

// NewGroupsResult wraps a parsed envelope. A Single with a non-200 code is
// returned as a *ResponseError. A payload that is not a list of
// {"group": "..."} objects yields no groups rather than an error.
func NewGroupsResult(env Envelope) (*GroupsResult, error) {
	switch e := env.(type) {
	case Single:
		if !e.OK() {
			return nil, &ResponseError{Code: e.Code, Message: e.Message}
		}
		return &GroupsResult{envelope: env, groups: parseGroups(e.Data)}, nil
	case Multi:
		perKey := make(map[string][]string, e.Len())
		for _, key := range e.keys {
			perKey[key] = parseGroups(e.entries[key].Data)
		}
		return &GroupsResult{envelope: env, perKey: perKey}, nil
	default:
		return nil, &MalformedResponseError{Cause: fmt.Errorf("unsupported envelope %T", env)}
	}
}

// Groups returns the device groups of a single-key result, nil for multi.
func (r *GroupsResult) Groups() []string {
	if r.IsMulti() {
		return nil
	}
	return append([]string{}, r.groups...)
}

// IsMulti reports whether the reply was keyed by API key.
func (r *GroupsResult) IsMulti() bool {
	_, ok := r.envelope.(Multi)
	return ok
}

// PerKeyGroups maps each API key to its device groups. A key whose entry
// failed or carried an unreadable payload maps to an empty list.
func (r *GroupsResult) PerKeyGroups() map[string][]string {
	if r.perKey == nil {
		return nil
	}
	out := make(map[string][]string, len(r.perKey))
	for k, v := range r.perKey {
		out[k] = append([]string{}, v...)
	}
	return out
}

// Envelope returns the parsed reply the result was built from.
func (r *GroupsResult) Envelope() Envelope { return r.envelope }

// Err combines the failures of a multi-key result, in key order.
func (r *GroupsResult) Err() error {
	return perKeyErr(r.envelope)
}

func perKeyErr(env Envelope) error {
	m, ok := env.(Multi)
	if !ok {
		return nil
	}
	var err error
	for _, key := range m.keys {
		if resp := m.entries[key]; !resp.OK() {
			err = multierr.Append(err, &ResponseError{APIKey: key, Code: resp.Code, Message: resp.Message})
		}
	}
	return err
}

// parseGroups is all-or-nothing: one malformed item empties the list.
func parseGroups(data string) []string {
	var items []map[string]json.RawMessage
	if err := json.Unmarshal([]byte(data), &items); err != nil {
		return []string{}
	}
	groups := make([]string, 0, len(items))
	for _, item := range items {
		group, ok := asString(item["group"])
		if !ok {
			return []string{}
		}
		groups = append(groups, group)
	}
	return groups
}
