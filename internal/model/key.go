package model

import "time"

type (
	// StoredKeyBundle is an encrypted private key bundle at rest.
	StoredKeyBundle struct {
		Key       string    `bson:"key" json:"key"`
		Bundle    []byte    `bson:"bundle" json:"bundle"`
		UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
	}
)
