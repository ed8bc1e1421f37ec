package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexrobin/osh-video/pkg/sensorhub"
)

func main() {
	flow, err := sensorhub.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	callback := func(batch []sensorhub.Event) error {
		for _, evt := range batch {
			if evt.Bytes != nil {
				fmt.Printf("%s output=%s frame=%d bytes\n",
					evt.Timestamp.Format(time.RFC3339Nano), evt.Output, len(evt.Bytes))
				continue
			}
			fmt.Printf("%s output=%s values=%v\n",
				evt.Timestamp.Format(time.RFC3339Nano), evt.Output, evt.Values)
		}
		return nil
	}

	if err := flow.Run(ctx, sensorhub.StreamOutCallback("stdout", callback)); err != nil && err != context.Canceled {
		log.Fatalf("runtime error: %v", err)
	}
}
