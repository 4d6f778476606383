// Command healthcheck probes the server's gRPC health service and exits
// non-zero unless it reports SERVING. Intended for container HEALTHCHECK.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/ashureev/supportdesk/internal/health"
)

func main() {
	port := os.Getenv("GRPC_HEALTH_PORT")
	if port == "" {
		port = "9090"
	}
	addr := flag.String("addr", "localhost:"+port, "health service address")
	service := flag.String("service", health.ServiceName, "service name to check")
	timeout := flag.Duration("timeout", 3*time.Second, "probe timeout")
	flag.Parse()

	status, err := health.Probe(context.Background(), *addr, *service, *timeout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(status)
	if status != healthpb.HealthCheckResponse_SERVING {
		os.Exit(1)
	}
}
