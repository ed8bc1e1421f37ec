package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	oshvideo "github.com/alexrobin/osh-video"
)

func main() {
	flow, err := oshvideo.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sink, batches, closeBatches := oshvideo.NewChannelSink("fanout", 32)
	defer closeBatches()

	go fanoutWorker("latest", batches)

	if err := flow.Run(ctx, oshvideo.StreamOutSink(sink)); err != nil && err != context.Canceled {
		log.Fatalf("runtime error: %v", err)
	}
}

// fanoutWorker keeps the newest event per output and reports it.
func fanoutWorker(name string, batches <-chan []oshvideo.Event) {
	latest := make(map[string]oshvideo.Event)
	for batch := range batches {
		for _, evt := range batch {
			latest[evt.Output] = evt
		}
		for output, evt := range latest {
			fmt.Printf("[%s] %s last sample at %s\n", name, output, evt.Timestamp.Format(time.RFC3339))
		}
	}
}
