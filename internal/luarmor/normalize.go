package luarmor

import (
	"bytes"
	"encoding/json"
)

// The provider is inconsistent about response envelopes: user queries come
// back as {"users":[...]}, sometimes as a bare array, and single-record
// endpoints return a bare object. normalizeUsers folds all three into one
// tagged variant instead of scattering shape checks across operations.

type envelopeKind int

const (
	envelopeEmpty envelopeKind = iota
	envelopeSingle
	envelopeList
)

type userEnvelope struct {
	kind  envelopeKind
	user  *User
	users []User
}

func normalizeUsers(raw json.RawMessage) userEnvelope {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return userEnvelope{kind: envelopeEmpty}
	}

	switch trimmed[0] {
	case '[':
		var users []User
		if err := json.Unmarshal(trimmed, &users); err != nil || len(users) == 0 {
			return userEnvelope{kind: envelopeEmpty}
		}
		return userEnvelope{kind: envelopeList, users: users}
	case '{':
		var wrapped struct {
			Users []User `json:"users"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err == nil && len(wrapped.Users) > 0 {
			return userEnvelope{kind: envelopeList, users: wrapped.Users}
		}

		var single User
		if err := json.Unmarshal(trimmed, &single); err == nil && single.UserKey != "" {
			return userEnvelope{kind: envelopeSingle, user: &single}
		}
	}

	// Malformed bodies are no-data, not errors.
	return userEnvelope{kind: envelopeEmpty}
}

// first returns the single user the envelope resolves to, if any.
func (e userEnvelope) first() (*User, bool) {
	switch e.kind {
	case envelopeSingle:
		return e.user, true
	case envelopeList:
		u := e.users[0]
		return &u, true
	}
	return nil, false
}

// apiAck is the provider's mutation acknowledgement body.
type apiAck struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	UserKey string `json:"user_key,omitempty"`
}

// parseAck tolerates empty and malformed bodies, reporting them as a
// non-success acknowledgement with no message.
func parseAck(raw json.RawMessage) apiAck {
	var ack apiAck
	if len(bytes.TrimSpace(raw)) == 0 {
		return ack
	}
	_ = json.Unmarshal(raw, &ack)
	return ack
}
