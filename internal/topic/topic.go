// Package topic derives the content topics envelopes are published to.
//
// The strings built here are a wire contract shared with every other client
// on the network. Changing a template, the namespace or the address casing
// makes previously published envelopes unreachable.
package topic

import (
	"fmt"
	"sort"
	"strings"
)

const (
	namespace = "xmtp"
	version   = "0"
	encoding  = "proto"
)

// BuildContentTopic wraps a topic name in the versioned namespace.
func BuildContentTopic(name string) string {
	return fmt.Sprintf("/%s/%s/%s/%s", namespace, version, name, encoding)
}

// NormalizeAddress lower-cases an address so that checksummed and plain
// spellings of the same wallet map to the same topics.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// UserContact is where an identity publishes its public key bundle.
func UserContact(address string) string {
	return BuildContentTopic("contact-" + NormalizeAddress(address))
}

// UserIntro receives the first message of every new conversation with address.
func UserIntro(address string) string {
	return BuildContentTopic("intro-" + NormalizeAddress(address))
}

// DirectMessage is the shared log of a two-party conversation. The result does
// not depend on argument order.
func DirectMessage(addressA, addressB string) string {
	members := []string{NormalizeAddress(addressA), NormalizeAddress(addressB)}
	sort.Strings(members)
	return BuildContentTopic("dm-" + strings.Join(members, "-"))
}

// UserPrivateStore is a topic only the owner of key knows how to read back.
func UserPrivateStore(key string) string {
	return BuildContentTopic("privatestore-" + key)
}

// Kind reports which family a content topic belongs to: "contact", "intro",
// "dm", "privatestore", or "" when the topic is not one of ours.
func Kind(contentTopic string) string {
	prefix := fmt.Sprintf("/%s/%s/", namespace, version)
	suffix := "/" + encoding
	if !strings.HasPrefix(contentTopic, prefix) || !strings.HasSuffix(contentTopic, suffix) {
		return ""
	}
	name := strings.TrimSuffix(strings.TrimPrefix(contentTopic, prefix), suffix)
	for _, kind := range []string{"contact", "intro", "dm", "privatestore"} {
		if strings.HasPrefix(name, kind+"-") {
			return kind
		}
	}
	return ""
}
