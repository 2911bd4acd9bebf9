// Package content holds the plaintext record carried inside every sealed
// message and the codecs that translate application values to and from it.
package content

import (
	"fmt"
	"strconv"
	"strings"
)

// ContentTypeID names the scheme a payload is encoded with. Codec lookup uses
// AuthorityID and TypeID only; the versions gate applicability.
type ContentTypeID struct {
	AuthorityID  string `json:"authorityId"`
	TypeID       string `json:"typeId"`
	VersionMajor uint32 `json:"versionMajor"`
	VersionMinor uint32 `json:"versionMinor"`
}

var (
	// ContentTypeFallback marks content replaced by its fallback text.
	ContentTypeFallback = ContentTypeID{AuthorityID: "xmtp.org", TypeID: "fallback", VersionMajor: 1}
)

func (id ContentTypeID) String() string {
	return fmt.Sprintf("%s/%s:%d.%d", id.AuthorityID, id.TypeID, id.VersionMajor, id.VersionMinor)
}

// SameAs reports whether both ids name the same type, ignoring versions.
func (id ContentTypeID) SameAs(other ContentTypeID) bool {
	return id.AuthorityID == other.AuthorityID && id.TypeID == other.TypeID
}

// ParseContentTypeID parses the "authority/type:major.minor" form.
func ParseContentTypeID(s string) (ContentTypeID, error) {
	idPart, versionPart, ok := strings.Cut(s, ":")
	if !ok {
		return ContentTypeID{}, fmt.Errorf("content type %q: missing version", s)
	}
	authority, typ, ok := strings.Cut(idPart, "/")
	if !ok || authority == "" || typ == "" {
		return ContentTypeID{}, fmt.Errorf("content type %q: expected authority/type", s)
	}
	majorStr, minorStr, ok := strings.Cut(versionPart, ".")
	if !ok {
		return ContentTypeID{}, fmt.Errorf("content type %q: expected major.minor", s)
	}
	major, err := strconv.ParseUint(majorStr, 10, 32)
	if err != nil {
		return ContentTypeID{}, fmt.Errorf("content type %q: %w", s, err)
	}
	minor, err := strconv.ParseUint(minorStr, 10, 32)
	if err != nil {
		return ContentTypeID{}, fmt.Errorf("content type %q: %w", s, err)
	}
	return ContentTypeID{
		AuthorityID:  authority,
		TypeID:       typ,
		VersionMajor: uint32(major),
		VersionMinor: uint32(minor),
	}, nil
}

type codecKey struct {
	authority string
	typ       string
}

func (id ContentTypeID) key() codecKey {
	return codecKey{authority: id.AuthorityID, typ: id.TypeID}
}
