package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"e2e_xmtp/internal/config"
	"e2e_xmtp/internal/cryptographic/wallet"
	"e2e_xmtp/internal/repository/keys"
	"e2e_xmtp/internal/repository/keystore"
	"e2e_xmtp/internal/service/client"
	"e2e_xmtp/internal/utils/log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "client",
		Short:        "End-to-end encrypted messaging client",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.InitConfig(); err != nil {
				return err
			}
			return log.SetLevel(viper.GetString("log.level"))
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			log.Sync()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&config.CfgFile, "config", "", "config file")
	flags.String("env", "dev", "network: local, dev or production")
	flags.String("api-url", "", "node URL, overrides env")
	flags.String("key-store-type", "", "key store: network, local or static")
	flags.String("wallet-key", "", "hex secp256k1 wallet key")
	flags.String("private-key-override", "", "hex encoded private key bundle")
	flags.String("log-level", "info", "log level")
	viper.BindPFlag("env", flags.Lookup("env"))
	viper.BindPFlag("api_url", flags.Lookup("api-url"))
	viper.BindPFlag("key_store_type", flags.Lookup("key-store-type"))
	viper.BindPFlag("wallet_key", flags.Lookup("wallet-key"))
	viper.BindPFlag("private_key_override", flags.Lookup("private-key-override"))
	viper.BindPFlag("log.level", flags.Lookup("log-level"))

	root.AddCommand(
		newKeysCmd(),
		newSendCmd(),
		newListCmd(),
		newStreamCmd(),
		newCanMessageCmd(),
	)
	return root
}

// connect builds a client from the current configuration. The returned
// cleanup closes the client and any local key store connection.
func connect(ctx context.Context) (*client.Client, func(), error) {
	cfg, err := config.NewClientConfigFromViper()
	if err != nil {
		return nil, nil, err
	}

	var signer wallet.Signer
	if cfg.WalletKey != "" {
		s, err := wallet.NewSignerFromHex(cfg.WalletKey)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: wallet_key: %v", client.ErrConfiguration, err)
		}
		signer = s
	}

	opts := cfg.Options()
	cleanup := func() {}
	if cfg.KeyStoreType == client.KeyStoreLocal {
		mongoDBClient, err := initMongo(cfg.Mongo.URI)
		if err != nil {
			return nil, nil, err
		}
		db := mongoDBClient.Database(cfg.Mongo.Database)
		keyRepo := keys.NewKeyRepo(db)
		opts = append(opts, client.WithLocalStore(keystore.NewLocalStore(keyRepo)))
		cleanup = func() { mongoDBClient.Disconnect(context.Background()) }
	}

	c, err := client.Create(ctx, signer, opts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return c, func() {
		c.Close()
		cleanup()
	}, nil
}

func initMongo(uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		log.Error("mongo unreachable", zap.String("uri", uri), zap.Error(err))
		return nil, err
	}
	return client, nil
}
