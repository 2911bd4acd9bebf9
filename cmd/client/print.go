package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"e2e_xmtp/internal/model"
)

type listenFunc func(ctx context.Context, cb func(*model.Message) bool) error

func listen(ctx context.Context, w io.Writer, fn listenFunc) error {
	err := fn(ctx, func(m *model.Message) bool {
		printMessage(w, m)
		return true
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func printMessage(w io.Writer, m *model.Message) {
	body := fmt.Sprint(m.Content)
	if m.Error != nil {
		body = fmt.Sprintf("%s [error: %v]", body, m.Error)
	}
	fmt.Fprintf(w, "%s %s -> %s: %s\n", m.SentAt.Format(time.RFC3339), m.SenderAddress, m.RecipientAddress, body)
}
