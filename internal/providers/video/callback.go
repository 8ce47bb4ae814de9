package video

import (
	"encoding/json"
	"strings"
)

// OutcomeKind tags the parsed webhook result.
type OutcomeKind int

const (
	// OutcomeSuccess carries a retrievable artifact URL.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeFailure carries the vendor's error message.
	OutcomeFailure
	// OutcomeUnexpected covers any status outside the documented envelope.
	OutcomeUnexpected
)

// Outcome is the vendor callback reduced to a tagged variant. The raw vendor
// shape never travels past this package.
type Outcome struct {
	Kind      OutcomeKind
	VideoURL  string
	Seed      int
	Message   string
	RawStatus string
}

type callbackEnvelope struct {
	Status  string `json:"status"`
	Error   string `json:"error"`
	Payload *struct {
		Video *struct {
			URL string `json:"url"`
		} `json:"video"`
		Seed int `json:"seed"`
	} `json:"payload"`
}

// ParseCallback classifies a raw webhook body. A non-nil error means the body
// was not valid JSON for the envelope and no state should be mutated.
func ParseCallback(body []byte) (*Outcome, error) {
	var env callbackEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	switch strings.ToUpper(strings.TrimSpace(env.Status)) {
	case "OK":
		out := &Outcome{Kind: OutcomeSuccess, RawStatus: env.Status}
		if env.Payload != nil {
			out.Seed = env.Payload.Seed
			if env.Payload.Video != nil {
				out.VideoURL = strings.TrimSpace(env.Payload.Video.URL)
			}
		}
		return out, nil
	case "ERROR":
		msg := strings.TrimSpace(env.Error)
		if msg == "" {
			msg = "generation failed"
		}
		return &Outcome{Kind: OutcomeFailure, Message: msg, RawStatus: env.Status}, nil
	default:
		return &Outcome{Kind: OutcomeUnexpected, RawStatus: env.Status}, nil
	}
}
