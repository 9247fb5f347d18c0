// mintbot answers Telegram commands by fanning NFT mint transactions out
// across a managed wallet pool. Configuration comes from the environment;
// SIGINT/SIGTERM shut the bot down cleanly.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pvzzle/mintbot/internal/app"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal(err)
	}
}
