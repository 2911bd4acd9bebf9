package client

import (
	"context"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"e2e_xmtp/internal/content"
	"e2e_xmtp/internal/cryptographic/wallet"
	"e2e_xmtp/internal/model"
	"e2e_xmtp/internal/repository/keystore"
	"e2e_xmtp/internal/topic"
	"e2e_xmtp/internal/transport"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testNet struct {
	transport *transport.MemoryTransport
	clock     *clock.Mock
}

func newTestNet() *testNet {
	clk := clock.NewMock()
	clk.Set(time.Unix(1_700_000_000, 0))
	return &testNet{transport: transport.NewMemoryTransport(clk), clock: clk}
}

func (n *testNet) newClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	signer, err := wallet.NewRandomSigner()
	require.NoError(t, err)
	return n.newClientWithSigner(t, signer, opts...)
}

func (n *testNet) newClientWithSigner(t *testing.T, signer wallet.Signer, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithTransport(n.transport), WithClock(n.clock)}, opts...)
	c, err := Create(context.Background(), signer, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

type numberCodec struct{}

var contentTypeNumber = content.ContentTypeID{AuthorityID: "example.com", TypeID: "number", VersionMajor: 1}

func (numberCodec) ContentType() content.ContentTypeID { return contentTypeNumber }

func (numberCodec) Encode(v any) (*content.EncodedContent, error) {
	n, ok := v.(int)
	if !ok {
		return nil, errors.New("not an int")
	}
	return &content.EncodedContent{Type: contentTypeNumber, Content: []byte(strconv.Itoa(n))}, nil
}

func (numberCodec) Decode(ec *content.EncodedContent) (any, error) {
	return strconv.Atoi(string(ec.Content))
}

func (numberCodec) Fallback(any) (string, bool) { return "", false }
func (numberCodec) ShouldPush(any) bool         { return true }

func TestCreatePublishesContact(t *testing.T) {
	net := newTestNet()
	alice := net.newClient(t)

	assert.Equal(t, StateReady, alice.State())
	assert.Len(t, net.transport.Envelopes(topic.UserContact(alice.Address())), 1)

	bob := net.newClient(t)
	ok, err := bob.CanMessage(context.Background(), alice.Address())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = bob.CanMessage(context.Background(), "0x0000000000000000000000000000000000000001")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCreateConfigurationErrors(t *testing.T) {
	net := newTestNet()
	ctx := context.Background()
	signer, err := wallet.NewRandomSigner()
	require.NoError(t, err)

	_, err = Create(ctx, nil, WithTransport(net.transport))
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = Create(ctx, signer, WithTransport(net.transport), WithKeyStoreType(KeyStoreStatic))
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = Create(ctx, signer, WithTransport(net.transport), WithKeyStoreType(KeyStoreLocal))
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = Create(ctx, signer, WithEnv("moon"))
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestFirstMessageGoesToIntroTopics(t *testing.T) {
	net := newTestNet()
	ctx := context.Background()
	alice, bob := net.newClient(t), net.newClient(t)

	res, err := alice.Send(ctx, bob.Address(), "hello")
	require.NoError(t, err)
	require.NoError(t, res.Err())
	assert.ElementsMatch(t, []string{
		topic.UserIntro(bob.Address()),
		topic.DirectMessage(alice.Address(), bob.Address()),
		topic.UserIntro(alice.Address()),
	}, topicsOf(res))

	res, err = alice.Send(ctx, bob.Address(), "again")
	require.NoError(t, err)
	assert.Equal(t, []string{topic.DirectMessage(alice.Address(), bob.Address())}, topicsOf(res))

	assert.Len(t, net.transport.Envelopes(topic.UserIntro(bob.Address())), 1)
	assert.Len(t, net.transport.Envelopes(topic.UserIntro(alice.Address())), 1)
	assert.Len(t, net.transport.Envelopes(topic.DirectMessage(bob.Address(), alice.Address())), 2)
}

func TestSendToSelfSkipsDuplicateIntro(t *testing.T) {
	net := newTestNet()
	alice := net.newClient(t)

	res, err := alice.Send(context.Background(), strings.ToLower(alice.Address()), "note to self")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		topic.UserIntro(alice.Address()),
		topic.DirectMessage(alice.Address(), alice.Address()),
	}, topicsOf(res))
}

func TestSendToUnregisteredPeer(t *testing.T) {
	net := newTestNet()
	alice := net.newClient(t)

	_, err := alice.Send(context.Background(), "0x0000000000000000000000000000000000000002", "hi")
	assert.ErrorIs(t, err, ErrRecipientNotRegistered)
}

func TestConversationRoundTrip(t *testing.T) {
	net := newTestNet()
	ctx := context.Background()
	alice, bob := net.newClient(t), net.newClient(t)

	sentAt := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	_, err := alice.Send(ctx, bob.Address(), "hello", WithTimestamp(sentAt))
	require.NoError(t, err)
	_, err = alice.Send(ctx, bob.Address(), "compressed", WithCompression(content.CompressionGzip))
	require.NoError(t, err)

	msgs, err := bob.ListConversationMessages(ctx, alice.Address(), ListMessagesOptions{})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, content.ContentTypeText, *msgs[0].ContentType)
	assert.Equal(t, alice.Address(), msgs[0].SenderAddress)
	assert.Equal(t, bob.Address(), msgs[0].RecipientAddress)
	assert.True(t, sentAt.Equal(msgs[0].SentAt))
	assert.NoError(t, msgs[0].Error)
	assert.Equal(t, "compressed", msgs[1].Content)

	own, err := alice.ListConversationMessages(ctx, bob.Address(), ListMessagesOptions{})
	require.NoError(t, err)
	require.Len(t, own, 2)
	assert.Equal(t, "hello", own[0].Content)

	intros, err := bob.ListIntroductionMessages(ctx, ListMessagesOptions{})
	require.NoError(t, err)
	require.Len(t, intros, 1)
	assert.Equal(t, "hello", intros[0].Content)
}

func TestConversationExcludesSpoofedSender(t *testing.T) {
	net := newTestNet()
	ctx := context.Background()
	alice, bob, carol := net.newClient(t), net.newClient(t), net.newClient(t)
	dm := topic.DirectMessage(alice.Address(), bob.Address())

	_, err := alice.Send(ctx, bob.Address(), "real")
	require.NoError(t, err)

	spoof, err := carol.EncodeMessage(bob.PublicKeyBundle(), net.clock.Now(), "spoof", SendOptions{})
	require.NoError(t, err)
	require.NoError(t, carol.PublishEnvelope(ctx, model.Envelope{ContentTopic: dm, Message: spoof}))

	all, err := bob.ListMessages(ctx, dm, ListMessagesOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	checked, err := bob.ListConversationMessages(ctx, alice.Address(), ListMessagesOptions{})
	require.NoError(t, err)
	require.Len(t, checked, 1)
	assert.Equal(t, "real", checked[0].Content)
}

func TestUnknownContentTypeFallsBack(t *testing.T) {
	net := newTestNet()
	ctx := context.Background()
	alice := net.newClient(t, WithCodecs(numberCodec{}))
	bob := net.newClient(t)

	_, err := alice.Send(ctx, bob.Address(), 42, WithContentType(contentTypeNumber), WithContentFallback("forty-two"))
	require.NoError(t, err)

	msgs, err := bob.ListConversationMessages(ctx, alice.Address(), ListMessagesOptions{})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "forty-two", msgs[0].Content)
	assert.Equal(t, content.ContentTypeFallback, *msgs[0].ContentType)
	assert.ErrorIs(t, msgs[0].Error, ErrUnknownContentType)

	bob.RegisterCodec(numberCodec{})
	msgs, err = bob.ListConversationMessages(ctx, alice.Address(), ListMessagesOptions{})
	require.NoError(t, err)
	assert.Equal(t, 42, msgs[0].Content)
	assert.NoError(t, msgs[0].Error)
}

func TestSendUnknownContentType(t *testing.T) {
	net := newTestNet()
	alice, bob := net.newClient(t), net.newClient(t)

	_, err := alice.Send(context.Background(), bob.Address(), 1, WithContentType(contentTypeNumber))
	assert.ErrorIs(t, err, ErrUnknownContentType)
	assert.Empty(t, net.transport.Envelopes(topic.DirectMessage(alice.Address(), bob.Address())))
}

func TestOversizeContentIsSkipped(t *testing.T) {
	net := newTestNet()
	ctx := context.Background()
	alice := net.newClient(t)
	bob := net.newClient(t, WithMaxContentSize(64))

	_, err := alice.Send(ctx, bob.Address(), strings.Repeat("a", 1000), WithCompression(content.CompressionDeflate))
	require.NoError(t, err)
	_, err = alice.Send(ctx, bob.Address(), "small", WithCompression(content.CompressionDeflate))
	require.NoError(t, err)

	envs := net.transport.Envelopes(topic.DirectMessage(alice.Address(), bob.Address()))
	_, err = bob.DecodeMessage(envs[0])
	assert.ErrorIs(t, err, ErrOversizeContent)

	msgs, err := bob.ListConversationMessages(ctx, alice.Address(), ListMessagesOptions{})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "small", msgs[0].Content)
}

func TestUndecryptableMessageKeepsMetadata(t *testing.T) {
	net := newTestNet()
	ctx := context.Background()
	alice, bob, carol := net.newClient(t), net.newClient(t), net.newClient(t)

	_, err := alice.Send(ctx, bob.Address(), "private")
	require.NoError(t, err)
	env := net.transport.Envelopes(topic.DirectMessage(alice.Address(), bob.Address()))[0]

	msg, err := carol.DecodeMessage(env)
	require.NoError(t, err)
	assert.ErrorIs(t, msg.Error, ErrDecryption)
	assert.Nil(t, msg.Content)
	assert.Equal(t, alice.Address(), msg.SenderAddress)
	assert.Equal(t, bob.Address(), msg.RecipientAddress)

	msg, err = bob.DecodeMessage(model.Envelope{ContentTopic: env.ContentTopic, Message: []byte("garbage")})
	require.NoError(t, err)
	assert.ErrorIs(t, msg.Error, ErrDecryption)
}

func TestHeaderWithEmptyBundlesIsKept(t *testing.T) {
	net := newTestNet()
	ctx := context.Background()
	alice, bob := net.newClient(t), net.newClient(t)

	_, err := alice.Send(ctx, bob.Address(), "hi")
	require.NoError(t, err)

	hostile := []byte(`{"headerBytes":"` + base64.StdEncoding.EncodeToString([]byte(`{"sender":{},"recipient":{}}`)) + `"}`)
	require.NoError(t, net.transport.Publish(ctx, []model.Envelope{
		{ContentTopic: topic.UserIntro(bob.Address()), Message: hostile},
	}))

	var msgs []*model.Message
	require.NotPanics(t, func() {
		msgs, err = bob.ListIntroductionMessages(ctx, ListMessagesOptions{})
	})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hi", msgs[0].Content)
	assert.ErrorIs(t, msgs[1].Error, ErrDecryption)
	assert.Empty(t, msgs[1].SenderAddress)
}

func TestPartialPublishFailure(t *testing.T) {
	net := newTestNet()
	ctx := context.Background()
	alice, bob := net.newClient(t), net.newClient(t)

	intro := topic.UserIntro(bob.Address())
	net.transport.FailPublish(intro, errors.New("node unavailable"))

	res, err := alice.Send(ctx, bob.Address(), "hello")
	require.NoError(t, err)
	assert.ErrorIs(t, res.Err(), ErrNetwork)
	assert.Equal(t, []string{intro}, res.Failed())
	assert.Len(t, net.transport.Envelopes(topic.DirectMessage(alice.Address(), bob.Address())), 1)
	assert.Len(t, net.transport.Envelopes(topic.UserIntro(alice.Address())), 1)
}

func TestPublishEnvelopeValidation(t *testing.T) {
	net := newTestNet()
	alice := net.newClient(t)

	err := alice.PublishEnvelope(context.Background(), model.Envelope{Message: []byte("x")})
	assert.ErrorIs(t, err, ErrInvalidEnvelope)
	err = alice.PublishEnvelope(context.Background(), model.Envelope{ContentTopic: "t"})
	assert.ErrorIs(t, err, ErrInvalidEnvelope)
}

func TestNetworkKeyStoreReloadsKeys(t *testing.T) {
	net := newTestNet()
	signer, err := wallet.NewRandomSigner()
	require.NoError(t, err)

	first := net.newClientWithSigner(t, signer)
	second := net.newClientWithSigner(t, signer)
	assert.True(t, first.PublicKeyBundle().Equal(second.PublicKeyBundle()))
	assert.Len(t, net.transport.Envelopes(topic.UserPrivateStore(signer.Address()+"/key_bundle")), 1)
}

func TestLocalKeyStore(t *testing.T) {
	net := newTestNet()
	signer, err := wallet.NewRandomSigner()
	require.NoError(t, err)
	repo := keyRecords{}
	local := keystore.NewLocalStore(repo)

	first := net.newClientWithSigner(t, signer, WithKeyStoreType(KeyStoreLocal), WithLocalStore(local))
	second := net.newClientWithSigner(t, signer, WithKeyStoreType(KeyStoreLocal), WithLocalStore(local))
	assert.True(t, first.PublicKeyBundle().Equal(second.PublicKeyBundle()))
	assert.Contains(t, repo, signer.Address()+"/key_bundle")
	assert.Empty(t, net.transport.Envelopes(topic.UserPrivateStore(signer.Address()+"/key_bundle")))
}

type keyRecords map[string]*model.StoredKeyBundle

func (r keyRecords) GetByKey(_ context.Context, key string) (*model.StoredKeyBundle, error) {
	return r[key], nil
}

func (r keyRecords) Upsert(_ context.Context, record *model.StoredKeyBundle) error {
	r[record.Key] = record
	return nil
}

func TestStaticKeyStoreFromExportedKeys(t *testing.T) {
	net := newTestNet()
	ctx := context.Background()
	signer, err := wallet.NewRandomSigner()
	require.NoError(t, err)

	exported, err := GetKeys(ctx, signer, WithTransport(net.transport), WithClock(net.clock))
	require.NoError(t, err)

	c, err := Create(ctx, nil, WithTransport(net.transport), WithPrivateKeyOverride(exported))
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, signer.Address(), c.Address())

	keysAgain, err := c.GetKeys()
	require.NoError(t, err)
	assert.Equal(t, exported, keysAgain)
}

func TestContactCache(t *testing.T) {
	net := newTestNet()
	ctx := context.Background()
	bob := net.newClient(t)

	counting := &countingTransport{Transport: net.transport}
	signer, err := wallet.NewRandomSigner()
	require.NoError(t, err)
	alice, err := Create(ctx, signer, WithTransport(counting), WithClock(net.clock))
	require.NoError(t, err)
	defer alice.Close()

	before := counting.queries
	first, err := alice.GetUserContact(ctx, bob.Address())
	require.NoError(t, err)
	require.NotNil(t, first)
	afterFirst := counting.queries
	assert.Greater(t, afterFirst, before)

	second, err := alice.GetUserContact(ctx, strings.ToLower(bob.Address()))
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, afterFirst, counting.queries)
}

func TestStreamConversation(t *testing.T) {
	net := newTestNet()
	ctx := context.Background()
	alice, bob := net.newClient(t), net.newClient(t)

	s, err := bob.StreamConversationMessages(ctx, alice.Address())
	require.NoError(t, err)
	assert.Equal(t, 1, bob.OpenStreams())

	_, err = alice.Send(ctx, bob.Address(), "live")
	require.NoError(t, err)

	readCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	msg, err := s.Next(readCtx)
	require.NoError(t, err)
	assert.Equal(t, "live", msg.Content)

	require.NoError(t, bob.Close())
	_, err = s.Next(ctx)
	assert.Error(t, err)
	assert.Equal(t, 0, net.transport.SubscriberCount())
}

func TestClosedClientRejectsCalls(t *testing.T) {
	net := newTestNet()
	ctx := context.Background()
	alice, bob := net.newClient(t), net.newClient(t)

	require.NoError(t, alice.Close())
	require.NoError(t, alice.Close())
	assert.Equal(t, StateClosed, alice.State())

	_, err := alice.Send(ctx, bob.Address(), "late")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = alice.ListIntroductionMessages(ctx, ListMessagesOptions{})
	assert.ErrorIs(t, err, ErrClosed)
	_, err = alice.StreamIntroductionMessages(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestParseKeyStoreType(t *testing.T) {
	kt, err := ParseKeyStoreType(" Static ")
	require.NoError(t, err)
	assert.Equal(t, KeyStoreStatic, kt)

	_, err = ParseKeyStoreType("browser")
	assert.ErrorIs(t, err, ErrConfiguration)
}

func topicsOf(res *SendResult) []string {
	out := make([]string, len(res.Topics))
	for i, t := range res.Topics {
		out[i] = t.Topic
	}
	return out
}

type countingTransport struct {
	transport.Transport
	queries int
}

func (c *countingTransport) Query(ctx context.Context, req transport.QueryRequest) (*transport.QueryResponse, error) {
	c.queries++
	return c.Transport.Query(ctx, req)
}
