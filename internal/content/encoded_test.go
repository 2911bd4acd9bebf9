package content

import (
	"bytes"
	"compress/zlib"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compression(c Compression) *Compression {
	return &c
}

// encode -> compress -> marshal -> unmarshal -> decompress -> decode
func roundTrip(t *testing.T, codec Codec, value any, c *Compression) any {
	t.Helper()

	ec, err := codec.Encode(value)
	require.NoError(t, err)
	ec.Compression = c
	require.NoError(t, Compress(ec))

	parsed, err := UnmarshalEncodedContent(ec.Marshal())
	require.NoError(t, err)
	require.NoError(t, Decompress(parsed, DefaultMaxContentSize))
	assert.Nil(t, parsed.Compression)

	out, err := codec.Decode(parsed)
	require.NoError(t, err)
	return out
}

func TestBuiltinCodecsRoundTrip(t *testing.T) {
	cases := []struct {
		name  string
		codec Codec
		value any
	}{
		{"text", TextCodec{}, "hello, world"},
		{"empty text", TextCodec{}, ""},
		{"attachment", AttachmentCodec{}, Attachment{Filename: "a.txt", MimeType: "text/plain", Data: []byte("file body")}},
		{"remote attachment", RemoteAttachmentCodec{}, RemoteAttachment{
			URL: "https://example.com/blob", ContentDigest: "abcd", Secret: []byte{1, 2}, Salt: []byte{3},
			Nonce: []byte{4, 5, 6}, Scheme: "https://", ContentLength: 42, Filename: "blob.bin",
		}},
		{"reaction", ReactionCodec{}, Reaction{Reference: "msg-1", Action: ReactionAdded, Content: "👍", Schema: "unicode"}},
		{"read receipt", ReadReceiptCodec{}, ReadReceipt{}},
	}

	compressions := map[string]*Compression{
		"none":    nil,
		"deflate": compression(CompressionDeflate),
		"gzip":    compression(CompressionGzip),
	}

	for _, tc := range cases {
		for cname, c := range compressions {
			t.Run(tc.name+"/"+cname, func(t *testing.T) {
				assert.Equal(t, tc.value, roundTrip(t, tc.codec, tc.value, c))
			})
		}
	}
}

func TestMarshalKeepsAllFields(t *testing.T) {
	ec := &EncodedContent{
		Type:        ContentTypeID{AuthorityID: "example.com", TypeID: "x", VersionMajor: 2, VersionMinor: 7},
		Parameters:  map[string]string{"b": "2", "a": "1"},
		Fallback:    "fallback text",
		Compression: compression(CompressionGzip),
		Content:     []byte{0, 1, 2},
	}
	data := ec.Marshal()
	assert.Equal(t, data, ec.Marshal())

	parsed, err := UnmarshalEncodedContent(data)
	require.NoError(t, err)
	assert.Equal(t, ec, parsed)
}

func TestDeflateIsZeroValueButPresent(t *testing.T) {
	ec := &EncodedContent{Type: ContentTypeText, Compression: compression(CompressionDeflate)}
	parsed, err := UnmarshalEncodedContent(ec.Marshal())
	require.NoError(t, err)
	require.NotNil(t, parsed.Compression)
	assert.Equal(t, CompressionDeflate, *parsed.Compression)
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	_, err := UnmarshalEncodedContent([]byte{0x0a, 0xff})
	assert.ErrorIs(t, err, ErrInvalidContent)

	_, err = UnmarshalEncodedContent(nil)
	assert.ErrorIs(t, err, ErrInvalidContent)
}

func TestDecompressOversize(t *testing.T) {
	for _, c := range []Compression{CompressionDeflate, CompressionGzip} {
		t.Run(c.String(), func(t *testing.T) {
			ec := &EncodedContent{
				Type:        ContentTypeText,
				Compression: compression(c),
				Content:     bytes.Repeat([]byte("a"), 10_000),
			}
			require.NoError(t, Compress(ec))
			compressed := ec.Content

			err := Decompress(ec, 9_999)
			assert.ErrorIs(t, err, ErrOversizeContent)

			ec.Content = compressed
			require.NoError(t, Decompress(&EncodedContent{Compression: compression(c), Content: compressed}, 10_000))
		})
	}
}

func TestDeflateUsesZlibFraming(t *testing.T) {
	ec := &EncodedContent{Type: ContentTypeText, Compression: compression(CompressionDeflate), Content: []byte("hello deflate")}
	require.NoError(t, Compress(ec))
	require.GreaterOrEqual(t, len(ec.Content), 2)
	assert.Equal(t, byte(0x78), ec.Content[0])

	zr, err := zlib.NewReader(bytes.NewReader(ec.Content))
	require.NoError(t, err)
	plain, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, "hello deflate", string(plain))

	err = Decompress(&EncodedContent{Compression: compression(CompressionDeflate), Content: []byte{0x01, 0x02, 0x03}}, 0)
	assert.ErrorIs(t, err, ErrInvalidContent)
}

func TestReadBoundedNeverGrowsPastLimit(t *testing.T) {
	r := strings.NewReader(strings.Repeat("x", 1<<20))
	_, err := readBounded(r, 16, 4096)
	assert.ErrorIs(t, err, ErrOversizeContent)

	out, err := readBounded(strings.NewReader("abc"), 1, 3)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(out))
	assert.LessOrEqual(t, cap(out), 4)
}

func TestParseCompression(t *testing.T) {
	c, err := ParseCompression("gzip")
	require.NoError(t, err)
	assert.Equal(t, CompressionGzip, *c)

	c, err = ParseCompression("")
	require.NoError(t, err)
	assert.Nil(t, c)

	_, err = ParseCompression("brotli")
	assert.Error(t, err)
}
