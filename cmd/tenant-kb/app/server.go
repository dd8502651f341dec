// Package app provides the tenant knowledge base server application.
package app

import (
	"context"
	"fmt"

	"github.com/kart-io/tenant-kb/cmd/tenant-kb/app/options"
	kbsvc "github.com/kart-io/tenant-kb/internal/kb"
	"github.com/kart-io/tenant-kb/pkg/infra/app"
)

// commandDesc is the description of the command.
const commandDesc = `Tenant Knowledge Base Service

A multi-tenant knowledge base for municipal information services.

This server provides:
  - Per-tenant vector collections for documents, offices, schools and events
  - Hybrid (vector + keyword) search across a tenant's collections
  - Grounded answers with tenant-specific style and UI component directives
  - Streaming chat over Server-Sent Events`

// NewApp creates and returns a new App object with default parameters.
func NewApp() *app.App {
	opts := options.NewServerOptions()
	return app.NewApp(
		app.WithName(kbsvc.Name),
		app.WithShortDescription("Multi-tenant knowledge base service"),
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithRunFunc(run(opts)),
	)
}

// run contains the main logic for initializing and running the server.
func run(opts *options.ServerOptions) app.RunFunc {
	return func() error {
		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		ctx := context.Background()
		server, err := cfg.NewServer(ctx)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}

		// Run 自行监听 SIGINT/SIGTERM 并优雅关闭
		return server.Run(ctx)
	}
}
