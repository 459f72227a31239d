package health

import (
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// NewGRPCHealthServer returns a grpc health service that mirrors the checker.
// The overall status is published under the empty service name and under
// serviceName.
func NewGRPCHealthServer(c *Checker, serviceName string) *grpchealth.Server {
	hs := grpchealth.NewServer()
	set := func(healthy bool) {
		status := healthpb.HealthCheckResponse_SERVING
		if !healthy {
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		hs.SetServingStatus("", status)
		hs.SetServingStatus(serviceName, status)
	}

	set(c.IsSystemHealthy())
	c.OnChange(set)
	return hs
}

// NewGRPCServer creates a grpc server exposing only the health service
func NewGRPCServer(c *Checker, serviceName string) *grpc.Server {
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, NewGRPCHealthServer(c, serviceName))
	return srv
}
