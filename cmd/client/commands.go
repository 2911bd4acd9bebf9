package main

import (
	"encoding/hex"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"e2e_xmtp/internal/content"
	"e2e_xmtp/internal/cryptographic/wallet"
	"e2e_xmtp/internal/model"
	"e2e_xmtp/internal/service/client"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "Print the encoded private key bundle for use as a private key override",
		RunE: func(cmd *cobra.Command, args []string) error {
			if viper.GetString("wallet_key") == "" && viper.GetString("private_key_override") == "" {
				signer, err := wallet.NewRandomSigner()
				if err != nil {
					return err
				}
				viper.Set("wallet_key", signer.PrivateKeyHex())
				fmt.Fprintf(cmd.ErrOrStderr(), "generated wallet %s key %s\n", signer.Address(), signer.PrivateKeyHex())
			}

			c, cleanup, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			data, err := c.GetKeys()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(data))
			return nil
		},
	}
}

func newSendCmd() *cobra.Command {
	var (
		fallback    string
		compression string
	)
	cmd := &cobra.Command{
		Use:   "send <peer-address> <text>",
		Short: "Send a text message",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []client.SendOption
			if fallback != "" {
				opts = append(opts, client.WithContentFallback(fallback))
			}
			comp, err := content.ParseCompression(compression)
			if err != nil {
				return err
			}
			if comp != nil {
				opts = append(opts, client.WithCompression(*comp))
			}

			c, cleanup, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := c.Send(cmd.Context(), args[0], args[1], opts...)
			if err != nil {
				return err
			}
			for _, t := range res.Topics {
				status := "ok"
				if t.Err != nil {
					status = t.Err.Error()
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", t.Topic, status)
			}
			return res.Err()
		},
	}
	cmd.Flags().StringVar(&fallback, "fallback", "", "fallback text for clients without the codec")
	cmd.Flags().StringVar(&compression, "compression", "", "none, deflate or gzip")
	return cmd
}

func newListCmd() *cobra.Command {
	var (
		intro bool
		limit int
		since time.Duration
	)
	cmd := &cobra.Command{
		Use:   "list [peer-address]",
		Short: "List a conversation, or the introduction topic with --intro",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !intro && len(args) == 0 {
				return fmt.Errorf("peer address required unless --intro is set")
			}

			c, cleanup, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			opts := client.ListMessagesOptions{Limit: limit}
			if since > 0 {
				opts.StartTime = time.Now().Add(-since)
			}

			var msgs []*model.Message
			if intro {
				msgs, err = c.ListIntroductionMessages(cmd.Context(), opts)
			} else {
				msgs, err = c.ListConversationMessages(cmd.Context(), args[0], opts)
			}
			if err != nil {
				return err
			}
			for _, m := range msgs {
				printMessage(cmd.OutOrStdout(), m)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&intro, "intro", false, "list the introduction topic")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum envelopes to fetch")
	cmd.Flags().DurationVar(&since, "since", 0, "only messages newer than this")
	return cmd
}

func newStreamCmd() *cobra.Command {
	var intro bool
	cmd := &cobra.Command{
		Use:   "stream [peer-address]",
		Short: "Print new messages until interrupted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !intro && len(args) == 0 {
				return fmt.Errorf("peer address required unless --intro is set")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			c, cleanup, err := connect(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if intro {
				s, err := c.StreamIntroductionMessages(ctx)
				if err != nil {
					return err
				}
				return listen(ctx, cmd.OutOrStdout(), s.Listen)
			}
			s, err := c.StreamConversationMessages(ctx, args[0])
			if err != nil {
				return err
			}
			return listen(ctx, cmd.OutOrStdout(), s.Listen)
		},
	}
	cmd.Flags().BoolVar(&intro, "intro", false, "stream the introduction topic")
	return cmd
}

func newCanMessageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "can-message <peer-address>",
		Short: "Report whether the peer has published a contact bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, cleanup, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			ok, err := c.CanMessage(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ok)
			return nil
		},
	}
}
