package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alexrobin/osh-video/internal/adapters/camera"
	"github.com/alexrobin/osh-video/internal/adapters/mediadev"
	"github.com/alexrobin/osh-video/internal/adapters/station"
	"github.com/alexrobin/osh-video/internal/domain"
	"github.com/alexrobin/osh-video/internal/ports"
	"github.com/alexrobin/osh-video/pkg/sensorhub"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "run":
		err = runCommand(os.Args[2:])
	case "validate":
		err = validateCommand(os.Args[2:])
	case "describe":
		err = describeCommand(os.Args[2:])
	case "devices":
		err = devicesCommand()
	case "stats":
		err = statsCommand(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		printUsage()
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		log.Fatalf("osh-hub %s: %v", cmd, err)
	}
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfgPath := fs.String("config", "./data/config.yaml", "Path to hub configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	flow, err := sensorhub.Conf(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return flow.Run(ctx)
}

func validateCommand(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	cfgPath := fs.String("config", "./data/config.yaml", "Path to configuration file to validate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := sensorhub.LoadConfig(*cfgPath)
	if err != nil {
		return err
	}
	fmt.Printf("config %s looks good, outputs: %s\n", *cfgPath, strings.Join(cfg.OutputNames(), ", "))
	return nil
}

// describeCommand prints the schema and encoding of every configured output.
// The camera schema uses the requested size; the device may negotiate another.
func describeCommand(args []string) error {
	fs := flag.NewFlagSet("describe", flag.ExitOnError)
	cfgPath := fs.String("config", "./data/config.yaml", "Path to hub configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := sensorhub.LoadConfig(*cfgPath)
	if err != nil {
		return err
	}

	if cfg.Camera != nil {
		schema, err := camera.NewFrameSchema(cfg.Camera.Width, cfg.Camera.Height)
		if err != nil {
			return err
		}
		printOutput(cfg.Camera.Name+" (requested size)", schema, camera.FrameEncoding())
	}
	if cfg.Station != nil {
		schema, err := station.NewSchema()
		if err != nil {
			return err
		}
		printOutput(cfg.Station.Name, schema, station.NewEncoding())
	}
	return nil
}

func printOutput(name string, schema *domain.RecordSchema, enc domain.RecordEncoding) {
	fmt.Printf("== %s: %d values per record\n", name, schema.Size())
	fmt.Print(schema.Describe())
	fmt.Println(describeEncoding(enc))
	fmt.Println()
}

func describeEncoding(enc domain.RecordEncoding) string {
	switch e := enc.(type) {
	case *domain.TextEncoding:
		return fmt.Sprintf("encoding: text token=%q block=%q", e.TokenSeparator, e.BlockSeparator)
	case *domain.BinaryEncoding:
		var b strings.Builder
		fmt.Fprintf(&b, "encoding: binary order=%s bytes=%s", e.ByteOrder, e.ByteEncoding)
		for _, m := range e.Members {
			fmt.Fprintf(&b, "\n  %s %s/%d", m.Ref, m.Type, m.ByteWidth)
		}
		return b.String()
	default:
		return fmt.Sprintf("encoding: %T", enc)
	}
}

func devicesCommand() error {
	devices := mediadev.Discover()
	if len(devices) == 0 {
		fmt.Println("no capture devices found")
		return nil
	}
	for _, d := range devices {
		fmt.Printf("%s  %s  [%s]\n", d.Path, d.Name, d.Status)
		for _, m := range d.Modes {
			fmt.Printf("    %dx%d %s @ %.1f fps\n", m.Width, m.Height, m.PixelFormat, m.FrameRate)
		}
	}
	return nil
}

func statsCommand(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	url := fs.String("url", "http://localhost:9100/metrics", "Prometheus metrics endpoint")
	interval := fs.Duration("interval", 2*time.Second, "Refresh interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	fmt.Printf("Streaming metrics from %s (Ctrl+C to stop)\n", *url)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := printMetricsSnapshot(*url); err != nil {
				fmt.Fprintf(os.Stderr, "stats error: %v\n", err)
			}
		}
	}
}

func printMetricsSnapshot(url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	targets := map[string]float64{
		ports.MetricEventsPublished: 0,
		ports.MetricEventsDropped:   0,
		ports.MetricFramesCaptured:  0,
		ports.MetricPollFailures:    0,
		ports.MetricQueueLength:     0,
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		for key := range targets {
			if strings.HasPrefix(line, key+" ") {
				var value float64
				if _, err := fmt.Sscanf(line, key+" %g", &value); err == nil {
					targets[key] = value
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	fmt.Printf("[%s] published=%.0f dropped=%.0f frames=%.0f poll_failures=%.0f queue=%.0f\n",
		time.Now().Format(time.RFC3339),
		targets[ports.MetricEventsPublished],
		targets[ports.MetricEventsDropped],
		targets[ports.MetricFramesCaptured],
		targets[ports.MetricPollFailures],
		targets[ports.MetricQueueLength],
	)
	return nil
}

func printUsage() {
	fmt.Printf(`osh-hub CLI

Usage:
  osh-hub <command> [flags]

Commands:
  run        Start the sensor hub using the provided config
  validate   Load and validate a config file without starting the hub
  describe   Print the record schema and encoding of each configured output
  devices    List local cameras and the modes they advertise
  stats      Poll the Prometheus metrics endpoint and print live counters

Examples:
  osh-hub run -config ./data/config.yaml
  osh-hub validate -config ./data/config.yaml
  osh-hub describe -config ./data/config.yaml
  osh-hub stats -url http://localhost:9100/metrics -interval 1s
`)
}
