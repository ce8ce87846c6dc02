package types

// Event represents a typed event emitted during state transitions.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Log is the EVM-compatible encoding of an event: the first topic is the
// event signature hash, followed by indexed arguments. Data carries the
// ABI-packed non-indexed arguments.
type Log struct {
	Address string   `json:"address"`
	Topics  []string `json:"topics"`
	Data    string   `json:"data"`
}
