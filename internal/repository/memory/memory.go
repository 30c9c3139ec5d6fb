package memory

import (
	"bankteller/internal/repository"
)

var (
	_ repository.AccountStore     = (*Store)(nil)
	_ repository.TransactionStore = (*Store)(nil)
	_ repository.TransferStore    = (*Store)(nil)
	_ repository.Store            = (*Store)(nil)
)
