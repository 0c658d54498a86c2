package biz

import (
	"errors"

	"github.com/google/wire"
)

// ProviderSet is biz providers.
var ProviderSet = wire.NewSet(
	NewReferenceData,
	NewRankingUseCase,
	NewTrendUseCase,
)

// Custom errors
var (
	ErrSchemaMismatch = errors.New("schema mismatch")
	ErrMissingInput   = errors.New("missing input")
	ErrDuplicateKey   = errors.New("duplicate key")
	ErrRankingFailed  = errors.New("ranking failed")
)
