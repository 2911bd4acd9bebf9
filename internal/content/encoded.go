package content

import (
	"fmt"
	"sort"

	"google.golang.org/protobuf/encoding/protowire"
)

// Compression is the algorithm applied to EncodedContent.Content.
type Compression int32

const (
	CompressionDeflate Compression = 0
	CompressionGzip    Compression = 1
)

func (c Compression) String() string {
	switch c {
	case CompressionDeflate:
		return "deflate"
	case CompressionGzip:
		return "gzip"
	default:
		return fmt.Sprintf("compression(%d)", int32(c))
	}
}

// ParseCompression accepts "deflate", "gzip" and "" (none).
func ParseCompression(s string) (*Compression, error) {
	var c Compression
	switch s {
	case "", "none":
		return nil, nil
	case "deflate":
		c = CompressionDeflate
	case "gzip":
		c = CompressionGzip
	default:
		return nil, fmt.Errorf("unknown compression %q", s)
	}
	return &c, nil
}

// EncodedContent is the plaintext record sealed inside a message.
// A nil Compression means the content is stored as is.
type EncodedContent struct {
	Type        ContentTypeID
	Parameters  map[string]string
	Fallback    string
	Compression *Compression
	Content     []byte
}

// field numbers of the EncodedContent and ContentTypeId protobuf messages
const (
	fieldType        protowire.Number = 1
	fieldParameters  protowire.Number = 2
	fieldFallback    protowire.Number = 3
	fieldContent     protowire.Number = 4
	fieldCompression protowire.Number = 5

	fieldAuthorityID  protowire.Number = 1
	fieldTypeID       protowire.Number = 2
	fieldVersionMajor protowire.Number = 3
	fieldVersionMinor protowire.Number = 4

	fieldMapKey   protowire.Number = 1
	fieldMapValue protowire.Number = 2
)

// Marshal produces the protobuf encoding. Parameters are written in key
// order so the output is deterministic.
func (ec *EncodedContent) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldType, protowire.BytesType)
	b = protowire.AppendBytes(b, marshalContentType(ec.Type))

	keys := make([]string, 0, len(ec.Parameters))
	for k := range ec.Parameters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		var entry []byte
		entry = protowire.AppendTag(entry, fieldMapKey, protowire.BytesType)
		entry = protowire.AppendString(entry, k)
		entry = protowire.AppendTag(entry, fieldMapValue, protowire.BytesType)
		entry = protowire.AppendString(entry, ec.Parameters[k])

		b = protowire.AppendTag(b, fieldParameters, protowire.BytesType)
		b = protowire.AppendBytes(b, entry)
	}

	if ec.Fallback != "" {
		b = protowire.AppendTag(b, fieldFallback, protowire.BytesType)
		b = protowire.AppendString(b, ec.Fallback)
	}
	if len(ec.Content) > 0 {
		b = protowire.AppendTag(b, fieldContent, protowire.BytesType)
		b = protowire.AppendBytes(b, ec.Content)
	}
	if ec.Compression != nil {
		b = protowire.AppendTag(b, fieldCompression, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(*ec.Compression))
	}
	return b
}

func marshalContentType(id ContentTypeID) []byte {
	var b []byte
	if id.AuthorityID != "" {
		b = protowire.AppendTag(b, fieldAuthorityID, protowire.BytesType)
		b = protowire.AppendString(b, id.AuthorityID)
	}
	if id.TypeID != "" {
		b = protowire.AppendTag(b, fieldTypeID, protowire.BytesType)
		b = protowire.AppendString(b, id.TypeID)
	}
	if id.VersionMajor != 0 {
		b = protowire.AppendTag(b, fieldVersionMajor, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(id.VersionMajor))
	}
	if id.VersionMinor != 0 {
		b = protowire.AppendTag(b, fieldVersionMinor, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(id.VersionMinor))
	}
	return b
}

// UnmarshalEncodedContent parses the protobuf encoding. Unknown fields are skipped.
func UnmarshalEncodedContent(b []byte) (*EncodedContent, error) {
	ec := &EncodedContent{Parameters: make(map[string]string)}
	hasType := false

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, parseError(protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldType && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, parseError(protowire.ParseError(n))
			}
			id, err := unmarshalContentType(v)
			if err != nil {
				return nil, err
			}
			ec.Type = id
			hasType = true
			b = b[n:]
		case num == fieldParameters && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, parseError(protowire.ParseError(n))
			}
			k, val, err := unmarshalMapEntry(v)
			if err != nil {
				return nil, err
			}
			ec.Parameters[k] = val
			b = b[n:]
		case num == fieldFallback && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return nil, parseError(protowire.ParseError(n))
			}
			ec.Fallback = v
			b = b[n:]
		case num == fieldContent && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, parseError(protowire.ParseError(n))
			}
			ec.Content = append([]byte(nil), v...)
			b = b[n:]
		case num == fieldCompression && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, parseError(protowire.ParseError(n))
			}
			c := Compression(int32(v))
			ec.Compression = &c
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, parseError(protowire.ParseError(n))
			}
			b = b[n:]
		}
	}

	if !hasType {
		return nil, fmt.Errorf("%w: missing content type", ErrInvalidContent)
	}
	return ec, nil
}

func unmarshalContentType(b []byte) (ContentTypeID, error) {
	var id ContentTypeID
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return id, parseError(protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldAuthorityID && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return id, parseError(protowire.ParseError(n))
			}
			id.AuthorityID = v
			b = b[n:]
		case num == fieldTypeID && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return id, parseError(protowire.ParseError(n))
			}
			id.TypeID = v
			b = b[n:]
		case (num == fieldVersionMajor || num == fieldVersionMinor) && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return id, parseError(protowire.ParseError(n))
			}
			if num == fieldVersionMajor {
				id.VersionMajor = uint32(v)
			} else {
				id.VersionMinor = uint32(v)
			}
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return id, parseError(protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return id, nil
}

func unmarshalMapEntry(b []byte) (key, value string, err error) {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return "", "", parseError(protowire.ParseError(n))
		}
		b = b[n:]

		if (num == fieldMapKey || num == fieldMapValue) && typ == protowire.BytesType {
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return "", "", parseError(protowire.ParseError(n))
			}
			if num == fieldMapKey {
				key = v
			} else {
				value = v
			}
			b = b[n:]
			continue
		}
		n = protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return "", "", parseError(protowire.ParseError(n))
		}
		b = b[n:]
	}
	return key, value, nil
}

func parseError(err error) error {
	return fmt.Errorf("%w: %v", ErrInvalidContent, err)
}
