package content

var ContentTypeReadReceipt = ContentTypeID{AuthorityID: "xmtp.org", TypeID: "readReceipt", VersionMajor: 1, VersionMinor: 0}

// ReadReceipt carries no data; its presence is the signal.
type ReadReceipt struct{}

type ReadReceiptCodec struct{}

func (ReadReceiptCodec) ContentType() ContentTypeID {
	return ContentTypeReadReceipt
}

func (ReadReceiptCodec) Encode(any) (*EncodedContent, error) {
	return &EncodedContent{
		Type:       ContentTypeReadReceipt,
		Parameters: map[string]string{},
	}, nil
}

func (ReadReceiptCodec) Decode(*EncodedContent) (any, error) {
	return ReadReceipt{}, nil
}

func (ReadReceiptCodec) Fallback(any) (string, bool) {
	return "", false
}

func (ReadReceiptCodec) ShouldPush(any) bool {
	return false
}

// BuiltinCodecs returns every codec shipped with the client besides text.
func BuiltinCodecs() []Codec {
	return []Codec{
		AttachmentCodec{},
		RemoteAttachmentCodec{},
		ReactionCodec{},
		ReadReceiptCodec{},
	}
}
