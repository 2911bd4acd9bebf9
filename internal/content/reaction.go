package content

import (
	"encoding/json"
	"fmt"
)

var ContentTypeReaction = ContentTypeID{AuthorityID: "xmtp.org", TypeID: "reaction", VersionMajor: 1, VersionMinor: 0}

const (
	ReactionAdded   = "added"
	ReactionRemoved = "removed"
)

// Reaction references an earlier message by id.
type Reaction struct {
	Reference string `json:"reference"`
	Action    string `json:"action"`
	Content   string `json:"content"`
	Schema    string `json:"schema"`
}

type ReactionCodec struct{}

func (ReactionCodec) ContentType() ContentTypeID {
	return ContentTypeReaction
}

func (ReactionCodec) Encode(content any) (*EncodedContent, error) {
	r, err := asReaction(content)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return &EncodedContent{
		Type:       ContentTypeReaction,
		Parameters: map[string]string{},
		Content:    data,
	}, nil
}

func (ReactionCodec) Decode(ec *EncodedContent) (any, error) {
	// older senders put everything except the emoji in parameters
	if action, ok := ec.Parameters["action"]; ok {
		return Reaction{
			Reference: ec.Parameters["reference"],
			Action:    action,
			Content:   string(ec.Content),
			Schema:    ec.Parameters["schema"],
		}, nil
	}

	var r Reaction
	if err := json.Unmarshal(ec.Content, &r); err != nil {
		return nil, fmt.Errorf("%w: reaction: %v", ErrInvalidContent, err)
	}
	return r, nil
}

func (ReactionCodec) Fallback(content any) (string, bool) {
	r, err := asReaction(content)
	if err != nil {
		return "", false
	}
	switch r.Action {
	case ReactionAdded:
		return fmt.Sprintf("Reacted %q to an earlier message", r.Content), true
	case ReactionRemoved:
		return fmt.Sprintf("Removed %q from an earlier message", r.Content), true
	default:
		return "", false
	}
}

func (ReactionCodec) ShouldPush(any) bool {
	return false
}

func asReaction(content any) (Reaction, error) {
	switch r := content.(type) {
	case Reaction:
		return r, nil
	case *Reaction:
		if r != nil {
			return *r, nil
		}
	}
	return Reaction{}, fmt.Errorf("%w: reaction codec expects Reaction, got %T", ErrInvalidContent, content)
}
