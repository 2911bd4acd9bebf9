package content

import "fmt"

var ContentTypeText = ContentTypeID{AuthorityID: "xmtp.org", TypeID: "text", VersionMajor: 1, VersionMinor: 0}

const textEncodingUTF8 = "UTF-8"

// TextCodec carries plain UTF-8 strings.
type TextCodec struct{}

func (TextCodec) ContentType() ContentTypeID {
	return ContentTypeText
}

func (TextCodec) Encode(content any) (*EncodedContent, error) {
	s, ok := content.(string)
	if !ok {
		return nil, fmt.Errorf("%w: text codec expects string, got %T", ErrInvalidContent, content)
	}
	return &EncodedContent{
		Type:       ContentTypeText,
		Parameters: map[string]string{"encoding": textEncodingUTF8},
		Content:    []byte(s),
	}, nil
}

func (TextCodec) Decode(ec *EncodedContent) (any, error) {
	if enc, ok := ec.Parameters["encoding"]; ok && enc != textEncodingUTF8 {
		return nil, fmt.Errorf("%w: unrecognized text encoding %q", ErrInvalidContent, enc)
	}
	return string(ec.Content), nil
}

func (TextCodec) Fallback(any) (string, bool) {
	return "", false
}

func (TextCodec) ShouldPush(any) bool {
	return true
}
