// Package config reads client and node settings from a config file, the
// environment (XMTP_ prefix) and command-line flags through viper.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"e2e_xmtp/internal/content"
	"e2e_xmtp/internal/service/client"
	"e2e_xmtp/internal/utils/log"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var CfgFile string

type (
	MongoConfig struct {
		URI      string
		Database string
	}

	ClientConfig struct {
		Env                string
		APIURL             string
		MaxContentSize     int
		KeyStoreType       client.KeyStoreType
		PrivateKeyOverride []byte
		WalletKey          string
		ContactCacheSize   int
		Mongo              MongoConfig
		LogLevel           string
	}

	NodeConfig struct {
		Listen    string
		RedisAddr string
		PageLimit int
		LogLevel  string
	}
)

// InitConfig loads CfgFile if set and binds XMTP_* environment variables.
func InitConfig() error {
	setDefaults()

	viper.SetEnvPrefix("xmtp")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if CfgFile == "" {
		return nil
	}
	viper.SetConfigFile(CfgFile)
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return fmt.Errorf("config file %s is not found: %w", CfgFile, err)
		}
		return fmt.Errorf("read config file: %w", err)
	}
	log.Debug("using config file", zap.String("file", viper.ConfigFileUsed()))
	return nil
}

func setDefaults() {
	// Client defaults
	viper.SetDefault("env", "dev")
	viper.SetDefault("api_url", "")
	viper.SetDefault("max_content_size", content.DefaultMaxContentSize)
	viper.SetDefault("key_store_type", "")
	viper.SetDefault("private_key_override", "")
	viper.SetDefault("wallet_key", "")
	viper.SetDefault("contact_cache_size", client.DefaultContactCacheSize)

	// Local key store defaults
	viper.SetDefault("mongo.uri", "mongodb://localhost:27017")
	viper.SetDefault("mongo.database", "xmtp")

	// Node defaults
	viper.SetDefault("node.listen", "localhost:5555")
	viper.SetDefault("node.redis_addr", "localhost:6379")
	viper.SetDefault("node.page_limit", 100)

	viper.SetDefault("log.level", "info")
}

// NewClientConfigFromViper builds a ClientConfig from current viper settings.
func NewClientConfigFromViper() (*ClientConfig, error) {
	keyStoreType, err := client.ParseKeyStoreType(viper.GetString("key_store_type"))
	if err != nil {
		return nil, err
	}

	var override []byte
	if s := strings.TrimPrefix(viper.GetString("private_key_override"), "0x"); s != "" {
		if override, err = hex.DecodeString(s); err != nil {
			return nil, fmt.Errorf("%w: private_key_override is not hex: %v", client.ErrConfiguration, err)
		}
	}

	return &ClientConfig{
		Env:                viper.GetString("env"),
		APIURL:             viper.GetString("api_url"),
		MaxContentSize:     viper.GetInt("max_content_size"),
		KeyStoreType:       keyStoreType,
		PrivateKeyOverride: override,
		WalletKey:          viper.GetString("wallet_key"),
		ContactCacheSize:   viper.GetInt("contact_cache_size"),
		Mongo: MongoConfig{
			URI:      viper.GetString("mongo.uri"),
			Database: viper.GetString("mongo.database"),
		},
		LogLevel: viper.GetString("log.level"),
	}, nil
}

// Options turns the settings into client options. The local key store's
// backing store is wired by the caller.
func (c *ClientConfig) Options() []client.Option {
	opts := []client.Option{
		client.WithEnv(c.Env),
		client.WithAPIURL(c.APIURL),
		client.WithMaxContentSize(c.MaxContentSize),
		client.WithContactCacheSize(c.ContactCacheSize),
	}
	if c.KeyStoreType != "" {
		opts = append(opts, client.WithKeyStoreType(c.KeyStoreType))
	}
	if len(c.PrivateKeyOverride) > 0 {
		opts = append(opts, client.WithPrivateKeyOverride(c.PrivateKeyOverride))
	}
	return opts
}

func NewNodeConfigFromViper() *NodeConfig {
	return &NodeConfig{
		Listen:    viper.GetString("node.listen"),
		RedisAddr: viper.GetString("node.redis_addr"),
		PageLimit: viper.GetInt("node.page_limit"),
		LogLevel:  viper.GetString("log.level"),
	}
}
