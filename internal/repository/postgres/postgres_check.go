package postgres

import (
	"bankteller/internal/repository"
)

var _ repository.Store = (*Postgres)(nil)
