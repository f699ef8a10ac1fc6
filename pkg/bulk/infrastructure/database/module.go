package database

import (
	"context"

	"go.uber.org/fx"
)

// Module provides the database connection Provider and closes all cached
// connections on shutdown.
var Module = fx.Options(
	fx.Provide(NewProvider),
	fx.Invoke(func(lc fx.Lifecycle, p *Provider) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return p.CloseAll()
			},
		})
	}),
)
