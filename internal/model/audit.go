package model

import (
	"encoding/json"
	"strings"
)

// TriState is a risk flag that distinguishes "not fetched yet" from a negative answer.
type TriState int8

const (
	Unknown TriState = iota
	No
	Yes
)

// ParseFlag maps the upstream "0"/"1" encoding to a TriState.
func ParseFlag(raw string) TriState {
	switch strings.TrimSpace(strings.ToLower(raw)) {
	case "1", "true":
		return Yes
	case "0", "false":
		return No
	default:
		return Unknown
	}
}

func (t TriState) String() string {
	switch t {
	case Yes:
		return "yes"
	case No:
		return "no"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes Unknown as null so clients can render a pending state.
func (t TriState) MarshalJSON() ([]byte, error) {
	switch t {
	case Yes:
		return []byte("true"), nil
	case No:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

func (t *TriState) UnmarshalJSON(data []byte) error {
	var v *bool
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch {
	case v == nil:
		*t = Unknown
	case *v:
		*t = Yes
	default:
		*t = No
	}
	return nil
}

// AuditRecord holds the risk attributes of one base token.
type AuditRecord struct {
	Address        string   `json:"address"`
	Mintable       TriState `json:"mintable"`
	LiquidityBurnt TriState `json:"liquidity_burnt"`
	Honeypot       TriState `json:"honeypot"`
}
