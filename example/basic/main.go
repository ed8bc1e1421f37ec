package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	oshvideo "github.com/alexrobin/osh-video"
)

func main() {
	flow, err := oshvideo.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := flow.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("sensor hub exited: %v", err)
	}
}
