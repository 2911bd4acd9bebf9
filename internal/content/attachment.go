package content

import "fmt"

var ContentTypeAttachment = ContentTypeID{AuthorityID: "xmtp.org", TypeID: "attachment", VersionMajor: 1, VersionMinor: 0}

// Attachment is a small file sent inline.
type Attachment struct {
	Filename string `json:"filename"`
	MimeType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

type AttachmentCodec struct{}

func (AttachmentCodec) ContentType() ContentTypeID {
	return ContentTypeAttachment
}

func (AttachmentCodec) Encode(content any) (*EncodedContent, error) {
	a, err := asAttachment(content)
	if err != nil {
		return nil, err
	}
	return &EncodedContent{
		Type: ContentTypeAttachment,
		Parameters: map[string]string{
			"filename": a.Filename,
			"mimeType": a.MimeType,
		},
		Content: a.Data,
	}, nil
}

func (AttachmentCodec) Decode(ec *EncodedContent) (any, error) {
	return Attachment{
		Filename: ec.Parameters["filename"],
		MimeType: ec.Parameters["mimeType"],
		Data:     ec.Content,
	}, nil
}

func (AttachmentCodec) Fallback(content any) (string, bool) {
	a, err := asAttachment(content)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("Can't display %q. This app doesn't support attachments.", a.Filename), true
}

func (AttachmentCodec) ShouldPush(any) bool {
	return true
}

func asAttachment(content any) (Attachment, error) {
	switch a := content.(type) {
	case Attachment:
		return a, nil
	case *Attachment:
		if a != nil {
			return *a, nil
		}
	}
	return Attachment{}, fmt.Errorf("%w: attachment codec expects Attachment, got %T", ErrInvalidContent, content)
}
