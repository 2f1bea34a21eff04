package message

import (
	"encoding/json"

	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/errors"
)

// Envelope is the reply shape of every api operation. Exactly one of
// Data or Error is set.
type Envelope struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *ErrorBody      `json:"error,omitempty"`
}

// ErrorBody carries a classified error across the wire. Store failures
// are reduced to their public-safe message before they get here.
type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// OKEnvelope wraps data in a successful envelope.
func OKEnvelope(data any) Envelope {
	raw, err := json.Marshal(data)
	if err != nil {
		return ErrorEnvelope(errors.WrapStore(err, "message", "OKEnvelope", "marshal response"))
	}
	return Envelope{OK: true, Data: raw}
}

// ErrorEnvelope converts a classified error into a reply envelope.
func ErrorEnvelope(err error) Envelope {
	return Envelope{
		OK: false,
		Error: &ErrorBody{
			Kind:    errors.KindOf(err).String(),
			Message: err.Error(),
		},
	}
}
