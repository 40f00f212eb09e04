package nestedset

import "log/slog"

// Config tunes an Engine.
type Config struct {
	// BaseLevel is the level assigned to roots.
	BaseLevel int64

	// VerifyMutations re-validates every tree a mutation touched before
	// committing. It costs a full read of those trees.
	VerifyMutations bool

	// RebuildParallelism bounds how many trees RebuildAll repairs at once.
	RebuildParallelism int

	Logger *slog.Logger
}

func DefaultConfig() Config {
	return Config{
		BaseLevel:          1,
		RebuildParallelism: 4,
	}
}
