package model

type (
	// SenderKeyBundle holds the keys the author of a message combines.
	SenderKeyBundle struct {
		IKPrivA []byte
		PKPrivA []byte

		IKPubB []byte
		PKPubB []byte
	}

	// ReceiverKeyBundle holds the keys the recipient of a message combines.
	ReceiverKeyBundle struct {
		IKPubA []byte
		PKPubA []byte

		IKPrivB []byte
		PKPrivB []byte
	}
)
