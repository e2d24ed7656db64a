package common

import "encoding/json"

// CallFrame is one node of a callTracer result.
type CallFrame struct {
	Type    string      `json:"type"`
	From    string      `json:"from"`
	To      string      `json:"to"`
	Input   string      `json:"input"`
	Output  string      `json:"output,omitempty"`
	Value   string      `json:"value,omitempty"`
	Gas     string      `json:"gas,omitempty"`
	GasUsed string      `json:"gasUsed,omitempty"`
	Error   string      `json:"error,omitempty"`
	Calls   []CallFrame `json:"calls,omitempty"`
}

// PrestateAccount is the pre-execution state of one address as reported by prestateTracer.
// Only field presence matters, so scalar fields are kept raw.
type PrestateAccount struct {
	Balance json.RawMessage   `json:"balance,omitempty"`
	Nonce   json.RawMessage   `json:"nonce,omitempty"`
	Code    json.RawMessage   `json:"code,omitempty"`
	Storage map[string]string `json:"storage,omitempty"`
}

// PrestateTrace maps addresses (any case) to their pre-execution state.
type PrestateTrace map[string]PrestateAccount

func HasField(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}
