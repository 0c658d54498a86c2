package service

import "github.com/google/wire"

// ProviderSet is service providers.
var ProviderSet = wire.NewSet(NewTrendService)

// RunInfo identifies the running job.
type RunInfo struct {
	ID      string
	Name    string
	Version string
}
