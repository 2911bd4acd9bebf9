// Package client is the messaging client: it resolves its own keys, publishes
// its contact bundle, and sends, lists and streams sealed messages.
package client

import (
	"context"
	"fmt"
	"sync"

	"e2e_xmtp/internal/content"
	"e2e_xmtp/internal/cryptographic/wallet"
	"e2e_xmtp/internal/keys"
	"e2e_xmtp/internal/repository/keystore"
	"e2e_xmtp/internal/service/api"
	"e2e_xmtp/internal/service/stream"
	"e2e_xmtp/internal/topic"
	"e2e_xmtp/internal/transport"
	"e2e_xmtp/internal/utils/log"

	"github.com/benbjohnson/clock"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

type State int

const (
	StateUninitialized State = iota
	StateKeysResolved
	StateContactPublished
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateKeysResolved:
		return "keys_resolved"
	case StateContactPublished:
		return "contact_published"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type (
	Client struct {
		address        string
		keys           *keys.PrivateKeyBundle
		transport      transport.Transport
		ownsTransport  bool
		registry       *content.Registry
		maxContentSize int
		clock          clock.Clock
		knownBundles   *lru.Cache[string, *keys.PublicKeyBundle]

		mu       sync.Mutex
		state    State
		contacts map[string]struct{}
		streams  map[*stream.Stream]struct{}
	}
)

// Create resolves keys through the configured key store, publishes the
// contact bundle and returns a ready client. signer may be nil when a
// private key override is supplied.
func Create(ctx context.Context, signer wallet.Signer, opts ...Option) (*Client, error) {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	options.normalize()

	if signer == nil && len(options.PrivateKeyOverride) == 0 {
		return nil, fmt.Errorf("%w: must provide either a wallet signer or a private key override", ErrConfiguration)
	}

	t, owns, err := transportFromOptions(&options)
	if err != nil {
		return nil, err
	}
	closeOnErr := func(err error) (*Client, error) {
		if owns {
			t.Close()
		}
		return nil, err
	}

	store, err := keyStoreFromOptions(&options, signer, t)
	if err != nil {
		return closeOnErr(err)
	}
	bundle, err := keystore.LoadOrCreate(ctx, signer, store, options.Clock.Now())
	if err != nil {
		return closeOnErr(err)
	}

	c, err := newClient(bundle, t, &options)
	if err != nil {
		return closeOnErr(err)
	}
	c.ownsTransport = owns
	if err := c.init(ctx, &options); err != nil {
		return closeOnErr(err)
	}
	return c, nil
}

// GetKeys creates a client only to export its encoded private key bundle.
func GetKeys(ctx context.Context, signer wallet.Signer, opts ...Option) ([]byte, error) {
	c, err := Create(ctx, signer, opts...)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return c.GetKeys()
}

func transportFromOptions(o *Options) (transport.Transport, bool, error) {
	if o.Transport != nil {
		return o.Transport, false, nil
	}
	url := o.APIURL
	if url == "" {
		var err error
		if url, err = api.URLForEnv(o.Env); err != nil {
			return nil, false, fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
	}
	t, err := api.NewClient(url, o.HTTPClient)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	return t, true, nil
}

func keyStoreFromOptions(o *Options, signer wallet.Signer, t transport.Transport) (keystore.KeyStore, error) {
	switch o.KeyStoreType {
	case KeyStoreNetwork:
		if signer == nil {
			return nil, fmt.Errorf("%w: must provide a wallet for the network key store", ErrConfiguration)
		}
		return keystore.NewEncryptedStore(signer, keystore.NewNetworkStore(t)), nil
	case KeyStoreLocal:
		if signer == nil {
			return nil, fmt.Errorf("%w: must provide a wallet for the local key store", ErrConfiguration)
		}
		if o.LocalStore == nil {
			return nil, fmt.Errorf("%w: local key store has no backing store", ErrConfiguration)
		}
		return keystore.NewEncryptedStore(signer, o.LocalStore), nil
	case KeyStoreStatic:
		return keystore.NewStaticStore(o.PrivateKeyOverride)
	default:
		return nil, fmt.Errorf("%w: unknown key store type %q", ErrConfiguration, o.KeyStoreType)
	}
}

func newClient(bundle *keys.PrivateKeyBundle, t transport.Transport, o *Options) (*Client, error) {
	address, err := bundle.Address()
	if err != nil {
		return nil, fmt.Errorf("%w: private key bundle: %v", ErrConfiguration, err)
	}
	cache, err := lru.New[string, *keys.PublicKeyBundle](o.ContactCacheSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	return &Client{
		address:        address,
		keys:           bundle,
		transport:      t,
		registry:       content.NewRegistry(),
		maxContentSize: o.MaxContentSize,
		clock:          o.Clock,
		knownBundles:   cache,
		state:          StateKeysResolved,
		contacts:       make(map[string]struct{}),
		streams:        make(map[*stream.Stream]struct{}),
	}, nil
}

func (c *Client) init(ctx context.Context, o *Options) error {
	for _, codec := range content.BuiltinCodecs() {
		c.registry.Register(codec)
	}
	for _, codec := range o.Codecs {
		c.registry.Register(codec)
	}

	if err := c.PublishUserContact(ctx); err != nil {
		return fmt.Errorf("publish user contact: %w", err)
	}
	c.setState(StateContactPublished)
	c.setState(StateReady)
	log.Info("client ready", zap.String("address", c.address))
	return nil
}

func (c *Client) Address() string {
	return c.address
}

func (c *Client) PublicKeyBundle() *keys.PublicKeyBundle {
	return c.keys.PublicKeyBundle()
}

// GetKeys exports the encoded private key bundle, e.g. for a static store.
func (c *Client) GetKeys() ([]byte, error) {
	return c.keys.Encode()
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

func (c *Client) checkOpen() error {
	if c.State() == StateClosed {
		return ErrClosed
	}
	return nil
}

// RegisterCodec adds or replaces the codec for its authority and type.
func (c *Client) RegisterCodec(codec content.Codec) {
	c.registry.Register(codec)
}

// CodecFor returns the codec able to handle contentType.
func (c *Client) CodecFor(contentType content.ContentTypeID) (content.Codec, error) {
	return c.registry.Resolve(contentType)
}

// LoadRemoteAttachment downloads, verifies and decodes ra over HTTPS.
func (c *Client) LoadRemoteAttachment(ctx context.Context, ra content.RemoteAttachment) (any, error) {
	fetcher := content.HTTPFetcher{MaxSize: int64(c.maxContentSize)}
	return content.LoadRemoteAttachment(ctx, ra, fetcher, c.registry)
}

// Close ends every open stream and, if the client built its own transport,
// closes it. Calling Close more than once is harmless.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = StateClosed
	streams := make([]*stream.Stream, 0, len(c.streams))
	for s := range c.streams {
		streams = append(streams, s)
	}
	c.streams = make(map[*stream.Stream]struct{})
	c.mu.Unlock()

	for _, s := range streams {
		s.Close()
	}
	if c.ownsTransport {
		return c.transport.Close()
	}
	return nil
}

// markContact records peer as contacted and reports whether it is new.
func (c *Client) markContact(peer string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := topic.NormalizeAddress(peer)
	if _, ok := c.contacts[key]; ok {
		return false
	}
	c.contacts[key] = struct{}{}
	return true
}
