package content

type (
	// Codec translates between an application value and EncodedContent.
	// Implementations must be safe for concurrent use.
	Codec interface {
		ContentType() ContentTypeID
		Encode(content any) (*EncodedContent, error)
		Decode(ec *EncodedContent) (any, error)
		// Fallback returns text shown by clients that cannot decode the content.
		Fallback(content any) (string, bool)
		ShouldPush(content any) bool
	}

	// Resolver looks a codec up by content type.
	Resolver interface {
		Resolve(contentType ContentTypeID) (Codec, error)
	}
)
