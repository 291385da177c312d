package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"time"

	"clocktower-lite/apps/server/internal/ledger"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

const ledgerHealthService = "clocktower.Ledger"

// healthServer serves the gRPC health protocol and mirrors the ledger's reachability.
type healthServer struct {
	listener   net.Listener
	grpcServer *grpc.Server
	health     *health.Server
	ledger     ledger.Service
}

func newHealthServer(addr string, ledgerService ledger.Service) (*healthServer, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	grpcServer := grpc.NewServer()
	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, hs)
	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ledgerHealthService, grpc_health_v1.HealthCheckResponse_SERVING)
	return &healthServer{
		listener:   listener,
		grpcServer: grpcServer,
		health:     hs,
		ledger:     ledgerService,
	}, nil
}

// check pings the ledger and updates the serving status of the ledger service.
func (s *healthServer) check(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	status := grpc_health_v1.HealthCheckResponse_SERVING
	if err := s.ledger.Ping(ctx); err != nil {
		log.Printf("[Server] Ledger ping failed: %v", err)
		status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus(ledgerHealthService, status)
}

// Serve runs until ctx is cancelled, probing the ledger every interval.
func (s *healthServer) Serve(ctx context.Context, interval time.Duration) error {
	log.Printf("[Server] gRPC health listening at %v", s.listener.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.grpcServer.Serve(s.listener)
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	s.check(ctx)
	for {
		select {
		case <-ticker.C:
			s.check(ctx)
		case <-ctx.Done():
			s.health.Shutdown()
			s.grpcServer.GracefulStop()
			err := <-serveErr
			if err == nil || errors.Is(err, grpc.ErrServerStopped) {
				return nil
			}
			return fmt.Errorf("serve gRPC: %w", err)
		case err := <-serveErr:
			if err == nil || errors.Is(err, grpc.ErrServerStopped) {
				return nil
			}
			return fmt.Errorf("serve gRPC: %w", err)
		}
	}
}

func (s *healthServer) Addr() string {
	return s.listener.Addr().String()
}
