package client

import (
	"fmt"
	"net/http"
	"strings"

	"e2e_xmtp/internal/content"
	"e2e_xmtp/internal/repository/keystore"
	"e2e_xmtp/internal/transport"

	"github.com/benbjohnson/clock"
)

type KeyStoreType string

const (
	KeyStoreNetwork KeyStoreType = "network"
	KeyStoreLocal   KeyStoreType = "local"
	KeyStoreStatic  KeyStoreType = "static"
)

const DefaultContactCacheSize = 1024

func ParseKeyStoreType(s string) (KeyStoreType, error) {
	switch t := KeyStoreType(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return "", nil
	case KeyStoreNetwork, KeyStoreLocal, KeyStoreStatic:
		return t, nil
	default:
		return "", fmt.Errorf("%w: unknown key store type %q", ErrConfiguration, s)
	}
}

type (
	Options struct {
		// Env picks the node endpoint unless APIURL is set.
		Env    string
		APIURL string

		// Codecs are registered after the built-in ones.
		Codecs         []content.Codec
		MaxContentSize int

		// KeyStoreType defaults to network, or to static when
		// PrivateKeyOverride is set.
		KeyStoreType       KeyStoreType
		PrivateKeyOverride []byte
		// LocalStore backs the local key store type.
		LocalStore keystore.Store

		ContactCacheSize int

		// Transport replaces the HTTP transport built from Env/APIURL. The
		// client does not close a transport it was given.
		Transport  transport.Transport
		HTTPClient *http.Client
		Clock      clock.Clock
	}

	Option func(*Options)
)

func DefaultOptions() Options {
	return Options{
		Env:              "dev",
		MaxContentSize:   content.DefaultMaxContentSize,
		ContactCacheSize: DefaultContactCacheSize,
	}
}

func WithEnv(env string) Option {
	return func(o *Options) { o.Env = env }
}

func WithAPIURL(url string) Option {
	return func(o *Options) { o.APIURL = url }
}

func WithCodecs(codecs ...content.Codec) Option {
	return func(o *Options) { o.Codecs = append(o.Codecs, codecs...) }
}

func WithMaxContentSize(size int) Option {
	return func(o *Options) { o.MaxContentSize = size }
}

func WithKeyStoreType(t KeyStoreType) Option {
	return func(o *Options) { o.KeyStoreType = t }
}

func WithPrivateKeyOverride(data []byte) Option {
	return func(o *Options) { o.PrivateKeyOverride = append([]byte(nil), data...) }
}

func WithLocalStore(store keystore.Store) Option {
	return func(o *Options) { o.LocalStore = store }
}

func WithContactCacheSize(size int) Option {
	return func(o *Options) { o.ContactCacheSize = size }
}

func WithTransport(t transport.Transport) Option {
	return func(o *Options) { o.Transport = t }
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *Options) { o.HTTPClient = c }
}

func WithClock(clk clock.Clock) Option {
	return func(o *Options) { o.Clock = clk }
}

func (o *Options) normalize() {
	if o.KeyStoreType == "" {
		if len(o.PrivateKeyOverride) > 0 {
			o.KeyStoreType = KeyStoreStatic
		} else {
			o.KeyStoreType = KeyStoreNetwork
		}
	}
	if o.MaxContentSize <= 0 {
		o.MaxContentSize = content.DefaultMaxContentSize
	}
	if o.ContactCacheSize <= 0 {
		o.ContactCacheSize = DefaultContactCacheSize
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
}
