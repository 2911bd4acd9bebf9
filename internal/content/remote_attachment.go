package content

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"e2e_xmtp/internal/cryptographic/encryption"
)

var ContentTypeRemoteAttachment = ContentTypeID{AuthorityID: "xmtp.org", TypeID: "remoteStaticAttachment", VersionMajor: 1, VersionMinor: 0}

const remoteScheme = "https://"

type (
	// RemoteAttachment points at an encrypted EncodedContent stored off-network.
	RemoteAttachment struct {
		URL           string `json:"url"`
		ContentDigest string `json:"contentDigest"`
		Secret        []byte `json:"secret"`
		Salt          []byte `json:"salt"`
		Nonce         []byte `json:"nonce"`
		Scheme        string `json:"scheme"`
		ContentLength int    `json:"contentLength"`
		Filename      string `json:"filename"`
	}

	// EncryptedEncodedContent is what EncodeEncrypted hands back for upload.
	EncryptedEncodedContent struct {
		Digest  string
		Secret  []byte
		Salt    []byte
		Nonce   []byte
		Payload []byte
	}

	Fetcher interface {
		Fetch(ctx context.Context, url string) ([]byte, error)
	}

	// HTTPFetcher downloads payloads over HTTP(S), reading at most MaxSize bytes.
	HTTPFetcher struct {
		Client  *http.Client
		MaxSize int64
	}

	RemoteAttachmentCodec struct{}
)

func (RemoteAttachmentCodec) ContentType() ContentTypeID {
	return ContentTypeRemoteAttachment
}

func (RemoteAttachmentCodec) Encode(content any) (*EncodedContent, error) {
	ra, err := asRemoteAttachment(content)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(ra.URL, remoteScheme) {
		return nil, fmt.Errorf("%w: scheme must be https", ErrSchemeValidation)
	}
	return &EncodedContent{
		Type: ContentTypeRemoteAttachment,
		Parameters: map[string]string{
			"contentDigest": ra.ContentDigest,
			"secret":        hex.EncodeToString(ra.Secret),
			"salt":          hex.EncodeToString(ra.Salt),
			"nonce":         hex.EncodeToString(ra.Nonce),
			"scheme":        ra.Scheme,
			"contentLength": strconv.Itoa(ra.ContentLength),
			"filename":      ra.Filename,
		},
		Content: []byte(ra.URL),
	}, nil
}

func (RemoteAttachmentCodec) Decode(ec *EncodedContent) (any, error) {
	secret, err := hex.DecodeString(ec.Parameters["secret"])
	if err != nil {
		return nil, fmt.Errorf("%w: secret: %v", ErrInvalidContent, err)
	}
	salt, err := hex.DecodeString(ec.Parameters["salt"])
	if err != nil {
		return nil, fmt.Errorf("%w: salt: %v", ErrInvalidContent, err)
	}
	nonce, err := hex.DecodeString(ec.Parameters["nonce"])
	if err != nil {
		return nil, fmt.Errorf("%w: nonce: %v", ErrInvalidContent, err)
	}
	length := 0
	if s := ec.Parameters["contentLength"]; s != "" {
		if length, err = strconv.Atoi(s); err != nil {
			return nil, fmt.Errorf("%w: contentLength: %v", ErrInvalidContent, err)
		}
	}
	return RemoteAttachment{
		URL:           string(ec.Content),
		ContentDigest: ec.Parameters["contentDigest"],
		Secret:        secret,
		Salt:          salt,
		Nonce:         nonce,
		Scheme:        ec.Parameters["scheme"],
		ContentLength: length,
		Filename:      ec.Parameters["filename"],
	}, nil
}

func (RemoteAttachmentCodec) Fallback(content any) (string, bool) {
	ra, err := asRemoteAttachment(content)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("Can't display %q. This app doesn't support attachments.", ra.Filename), true
}

func (RemoteAttachmentCodec) ShouldPush(any) bool {
	return true
}

// EncodeEncrypted encodes content with codec and encrypts the result under a
// fresh random secret. The caller uploads Payload and sends a RemoteAttachment
// built from the other fields.
func EncodeEncrypted(content any, codec Codec) (*EncryptedEncodedContent, error) {
	ec, err := codec.Encode(content)
	if err != nil {
		return nil, err
	}

	secret := make([]byte, encryption.KeySize)
	if _, err := io.ReadFull(rand.Reader, secret); err != nil {
		return nil, fmt.Errorf("rand.Read secret: %w", err)
	}
	ct, err := encryption.Encrypt(ec.Marshal(), secret, nil)
	if err != nil {
		return nil, err
	}
	return &EncryptedEncodedContent{
		Digest:  digest(ct.Payload),
		Secret:  secret,
		Salt:    ct.HkdfSalt,
		Nonce:   ct.GcmNonce,
		Payload: ct.Payload,
	}, nil
}

// LoadRemoteAttachment downloads, verifies and decodes the content ra points at.
func LoadRemoteAttachment(ctx context.Context, ra RemoteAttachment, fetcher Fetcher, resolver Resolver) (any, error) {
	if !strings.HasPrefix(ra.URL, remoteScheme) {
		return nil, fmt.Errorf("%w: scheme must be https", ErrSchemeValidation)
	}

	payload, err := fetcher.Fetch(ctx, ra.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", ra.URL, err)
	}
	if digest(payload) != ra.ContentDigest {
		return nil, fmt.Errorf("%w: content digest does not match", ErrSchemeValidation)
	}

	plain, err := encryption.Decrypt(&encryption.Ciphertext{
		HkdfSalt: ra.Salt,
		GcmNonce: ra.Nonce,
		Payload:  payload,
	}, ra.Secret, nil)
	if err != nil {
		return nil, err
	}

	ec, err := UnmarshalEncodedContent(plain)
	if err != nil {
		return nil, err
	}
	codec, err := resolver.Resolve(ec.Type)
	if err != nil {
		return nil, err
	}
	return codec.Decode(ec)
}

func (f HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	maxSize := f.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultMaxContentSize
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	defer io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxSize {
		return nil, fmt.Errorf("%w: limit %d bytes", ErrOversizeContent, maxSize)
	}
	return data, nil
}

func digest(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func asRemoteAttachment(content any) (RemoteAttachment, error) {
	switch ra := content.(type) {
	case RemoteAttachment:
		return ra, nil
	case *RemoteAttachment:
		if ra != nil {
			return *ra, nil
		}
	}
	return RemoteAttachment{}, fmt.Errorf("%w: remote attachment codec expects RemoteAttachment, got %T", ErrInvalidContent, content)
}
