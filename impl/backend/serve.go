package backend

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
)

// ServiceName is the gRPC service name the backend reports health for
const ServiceName = "regfront.Backend"

// subdirectories of the data directory
const (
	BlobsDir     = "blobs"
	ManifestsDir = "manifests"
	UploadsDir   = "uploads"
)

// Serve is the default EntryPoint. It creates the data directory layout, then runs a gRPC
// server on host:port until ctx is cancelled.
func Serve(ctx context.Context, dataDir string, host string, port uint16) error {
	if err := PrepareLayout(dataDir); err != nil {
		return err
	}
	lis, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(int(port))))
	if err != nil {
		return err
	}
	return ServeListener(ctx, lis)
}

// PrepareLayout creates the data directory and its subdirectories if needed
func PrepareLayout(dataDir string) error {
	for _, dir := range []string{BlobsDir, ManifestsDir, UploadsDir} {
		if err := os.MkdirAll(filepath.Join(dataDir, dir), 0755); err != nil {
			return fmt.Errorf("unable to create data directory layout: %w", err)
		}
	}
	return nil
}

// ServeListener runs the backend gRPC server on the passed listener. It returns nil after
// ctx is cancelled and the server has stopped.
func ServeListener(ctx context.Context, lis net.Listener) error {
	ka := keepalive.ServerParameters{
		Time:    30 * time.Second,
		Timeout: 10 * time.Second,
	}
	s := grpc.NewServer(grpc.KeepaliveParams(ka))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case <-ctx.Done():
			hs.Shutdown()
			s.GracefulStop()
		case <-stopped:
		}
	}()
	log.Infof("backend listening on %s", lis.Addr())
	return s.Serve(lis)
}
