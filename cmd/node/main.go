package main

import (
	"os"
	"os/signal"
	"syscall"

	"e2e_xmtp/internal/config"
	"e2e_xmtp/internal/service/node"
	redisSvc "e2e_xmtp/internal/service/redis"
	"e2e_xmtp/internal/utils/log"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "node",
		Short:        "Store-and-forward relay for sealed envelopes",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.InitConfig(); err != nil {
				return err
			}
			cfg := config.NewNodeConfigFromViper()
			if err := log.SetLevel(cfg.LogLevel); err != nil {
				return err
			}
			defer log.Sync()

			rdb := redis.NewClient(&redis.Options{
				Addr:     cfg.RedisAddr,
				Password: "", // no password by default
				DB:       0,  // use default DB
			})
			defer rdb.Close()

			redis := redisSvc.NewRedis(rdb)
			if err := redis.Ping(cmd.Context()); err != nil {
				log.Error("redis unreachable", zap.String("addr", cfg.RedisAddr), zap.Error(err))
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			s := node.NewHttpServer(node.Config{Listen: cfg.Listen, PageLimit: cfg.PageLimit}, redis, nil)
			return s.Run(ctx)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&config.CfgFile, "config", "", "config file")
	flags.String("listen", "localhost:5555", "HTTP listen address")
	flags.String("redis-addr", "localhost:6379", "redis address")
	flags.Int("page-limit", 100, "maximum envelopes per query page")
	flags.String("log-level", "info", "log level")
	viper.BindPFlag("node.listen", flags.Lookup("listen"))
	viper.BindPFlag("node.redis_addr", flags.Lookup("redis-addr"))
	viper.BindPFlag("node.page_limit", flags.Lookup("page-limit"))
	viper.BindPFlag("log.level", flags.Lookup("log-level"))

	return cmd
}
