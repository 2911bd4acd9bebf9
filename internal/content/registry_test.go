package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type versionedCodec struct {
	TextCodec
	id ContentTypeID
}

func (c versionedCodec) ContentType() ContentTypeID {
	return c.id
}

func TestTextAlwaysRegistered(t *testing.T) {
	r := NewRegistry(ReactionCodec{})
	codec, err := r.Resolve(ContentTypeText)
	require.NoError(t, err)
	assert.Equal(t, ContentTypeText, codec.ContentType())

	_, err = r.Resolve(ContentTypeReaction)
	assert.NoError(t, err)
	assert.Len(t, r.Codecs(), 2)
}

func TestResolveVersionGating(t *testing.T) {
	v1 := ContentTypeID{AuthorityID: "example.com", TypeID: "thing", VersionMajor: 1}
	v2 := ContentTypeID{AuthorityID: "example.com", TypeID: "thing", VersionMajor: 2}

	r := NewRegistry(versionedCodec{id: v1})
	_, err := r.Resolve(v2)
	assert.ErrorIs(t, err, ErrUnknownContentType)

	r = NewRegistry(versionedCodec{id: v2})
	codec, err := r.Resolve(v1)
	require.NoError(t, err)
	assert.Equal(t, v2, codec.ContentType())
}

func TestLastRegisterWins(t *testing.T) {
	a := ContentTypeID{AuthorityID: "example.com", TypeID: "thing", VersionMajor: 1, VersionMinor: 0}
	b := ContentTypeID{AuthorityID: "example.com", TypeID: "thing", VersionMajor: 3, VersionMinor: 1}

	r := NewRegistry(versionedCodec{id: a})
	r.Register(versionedCodec{id: b})

	codec, err := r.Resolve(a)
	require.NoError(t, err)
	assert.Equal(t, b, codec.ContentType())
}

func TestUnknownType(t *testing.T) {
	r := NewRegistry()
	_, err := r.Resolve(ContentTypeID{AuthorityID: "nobody", TypeID: "nothing", VersionMajor: 1})
	assert.ErrorIs(t, err, ErrUnknownContentType)
	assert.Contains(t, err.Error(), "nobody/nothing:1.0")
}

func TestParseContentTypeID(t *testing.T) {
	id, err := ParseContentTypeID("xmtp.org/text:1.0")
	require.NoError(t, err)
	assert.Equal(t, ContentTypeText, id)
	assert.Equal(t, "xmtp.org/text:1.0", id.String())
	assert.True(t, id.SameAs(ContentTypeID{AuthorityID: "xmtp.org", TypeID: "text", VersionMajor: 9}))

	for _, bad := range []string{"", "xmtp.org/text", "text:1.0", "xmtp.org/text:x.0", "xmtp.org/text:1"} {
		_, err := ParseContentTypeID(bad)
		assert.Error(t, err, bad)
	}
}
