package memory

import (
	"go.uber.org/fx"

	"github.com/tigerroll/riptide/pkg/bulk/core/domain/repository"
)

// Module is an Fx module that provides the in-memory StatusRepository as a
// repository.StatusRepository.
var Module = fx.Options(
	fx.Provide(
		fx.Annotate(
			NewStatusRepository,
			fx.As(new(repository.StatusRepository)),
		),
	),
)
