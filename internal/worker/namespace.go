package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/api/workflowservice/v1"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/durationpb"
)

// Namespace the worker and its schedules live in.
const Namespace = "default"

// NamespaceRegistrar is the one workflow service call EnsureNamespace needs.
type NamespaceRegistrar interface {
	RegisterNamespace(ctx context.Context, req *workflowservice.RegisterNamespaceRequest, opts ...grpc.CallOption) (*workflowservice.RegisterNamespaceResponse, error)
}

// EnsureNamespace registers name with the given history retention. A
// namespace that already exists is left as is.
func EnsureNamespace(ctx context.Context, cli NamespaceRegistrar, name string, retention time.Duration) error {
	_, err := cli.RegisterNamespace(ctx, &workflowservice.RegisterNamespaceRequest{
		Namespace:                        name,
		WorkflowExecutionRetentionPeriod: durationpb.New(retention),
	})
	var alreadyErr *serviceerror.NamespaceAlreadyExists
	if errors.As(err, &alreadyErr) {
		slog.DebugContext(ctx, "namespace already registered", "namespace", name)
		return nil
	}
	if err != nil {
		return fmt.Errorf("error registering namespace %s: %s", name, err)
	}

	slog.InfoContext(ctx, "registered namespace", "namespace", name, "retention", retention)
	return nil
}
