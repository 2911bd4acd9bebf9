package model

import "time"

type (
	// Envelope is the unit exchanged with the network.
	Envelope struct {
		ContentTopic string `json:"contentTopic"`
		Message      []byte `json:"message"`
		TimestampNs  uint64 `json:"timestampNs,omitempty"`
	}
)

func (e Envelope) Time() time.Time {
	if e.TimestampNs == 0 {
		return time.Time{}
	}
	return time.Unix(0, int64(e.TimestampNs))
}
