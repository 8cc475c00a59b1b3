// Package lifecycle runs a service next to its gRPC health server and
// stops both on a signal, a service error, or context cancellation.
package lifecycle

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mfreeman451/meshradar/pkg/grpc"
)

const (
	MaxRecvSize     = 4 * 1024 * 1024 // 4MB
	MaxSendSize     = 4 * 1024 * 1024 // 4MB
	ShutdownTimeout = 10 * time.Second
)

// Service defines the interface that all services must implement.
type Service interface {
	Start(context.Context) error
	Stop(context.Context) error
}

// GRPCServiceRegistrar is a function type for registering gRPC services.
type GRPCServiceRegistrar func(*grpc.Server) error

// ServerOptions holds configuration for creating a server. An empty
// GRPCAddr runs the service without a gRPC server.
type ServerOptions struct {
	GRPCAddr             string
	ServiceName          string
	Service              Service
	RegisterGRPCServices []GRPCServiceRegistrar
	Signals              []os.Signal
}

// RunServer starts a service with the provided options and handles lifecycle.
func RunServer(ctx context.Context, opts *ServerOptions) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log.Printf("*** Starting service %s", opts.ServiceName)

	errChan := make(chan error, 2)

	var grpcServer *grpc.Server

	if opts.GRPCAddr != "" {
		grpcServer = setupGRPCServer(opts.GRPCAddr, opts.ServiceName, opts.RegisterGRPCServices)

		go func() {
			if err := grpcServer.Start(); err != nil {
				errChan <- fmt.Errorf("gRPC server: %w", err)
			}
		}()
	}

	if err := opts.Service.Start(ctx); err != nil {
		if grpcServer != nil {
			grpcServer.Stop(ctx)
		}

		return fmt.Errorf("failed to start %s: %w", opts.ServiceName, err)
	}

	return handleShutdown(ctx, opts, grpcServer, errChan)
}

func setupGRPCServer(addr, serviceName string, registrars []GRPCServiceRegistrar) *grpc.Server {
	grpcServer := grpc.NewServer(addr,
		grpc.WithMaxRecvSize(MaxRecvSize),
		grpc.WithMaxSendSize(MaxSendSize),
	)

	if err := grpcServer.RegisterHealthServer(); err != nil {
		log.Printf("Failed to register health server: %v", err)
	}

	grpcServer.SetServing(serviceName)

	for _, register := range registrars {
		if err := register(grpcServer); err != nil {
			log.Printf("Failed to register gRPC service: %v", err)
		}
	}

	return grpcServer
}

func handleShutdown(ctx context.Context, opts *ServerOptions, grpcServer *grpc.Server, errChan chan error) error {
	signals := opts.Signals
	if len(signals) == 0 {
		signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, signals...)

	defer signal.Stop(sigChan)

	var runErr error

	select {
	case sig := <-sigChan:
		log.Printf("Received signal %v, initiating shutdown", sig)
	case err := <-errChan:
		log.Printf("Received error: %v, initiating shutdown", err)

		runErr = fmt.Errorf("service error: %w", err)
	case <-ctx.Done():
		log.Printf("Context canceled, initiating shutdown")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer shutdownCancel()

	if grpcServer != nil {
		grpcServer.Stop(shutdownCtx)
	}

	if err := opts.Service.Stop(shutdownCtx); err != nil {
		log.Printf("Error during service shutdown: %v", err)

		if runErr == nil {
			runErr = fmt.Errorf("shutdown error: %w", err)
		}
	}

	return runErr
}
