package x3dh

import (
	"e2e_xmtp/internal/cryptographic/dh"
	"e2e_xmtp/internal/model"
)

// The triple DH between two bundles of (identity key, pre key). Both sides
// compute the same three products in the same order, so the concatenation
// can be fed straight into a KDF by either party.
type (
	X3DHBase struct {
	}

	X3DHSender struct {
		*X3DHBase
	}

	X3DHReceiver struct {
		*X3DHBase
	}
)

func (s *X3DHBase) SharedSecret(dh1, dh2, dh3 []byte) []byte {
	concat := make([]byte, 0, len(dh1)+len(dh2)+len(dh3))
	concat = append(concat, dh1...)
	concat = append(concat, dh2...)
	concat = append(concat, dh3...)
	return concat
}

func (s *X3DHSender) SharedSecret(skb *model.SenderKeyBundle) ([]byte, error) {
	dh1, err := dh.X25519SharedSecret(skb.IKPrivA, skb.PKPubB)
	if err != nil {
		return nil, err
	}

	dh2, err := dh.X25519SharedSecret(skb.PKPrivA, skb.IKPubB)
	if err != nil {
		return nil, err
	}

	dh3, err := dh.X25519SharedSecret(skb.PKPrivA, skb.PKPubB)
	if err != nil {
		return nil, err
	}

	return s.X3DHBase.SharedSecret(dh1, dh2, dh3), nil
}

func (s *X3DHReceiver) SharedSecret(rkb *model.ReceiverKeyBundle) ([]byte, error) {
	dh1, err := dh.X25519SharedSecret(rkb.PKPrivB, rkb.IKPubA)
	if err != nil {
		return nil, err
	}

	dh2, err := dh.X25519SharedSecret(rkb.IKPrivB, rkb.PKPubA)
	if err != nil {
		return nil, err
	}

	dh3, err := dh.X25519SharedSecret(rkb.PKPrivB, rkb.PKPubA)
	if err != nil {
		return nil, err
	}

	return s.X3DHBase.SharedSecret(dh1, dh2, dh3), nil
}
