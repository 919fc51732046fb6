package state

import (
	"fmt"

	"github.com/inovacc/subbot/internal/config"
)

// Open returns the Store selected by cfg.State.
func Open(cfg *config.Config) (Store, error) {
	switch cfg.State.Backend {
	case config.StateFile, "":
		return NewFileStore(cfg.State.Path), nil
	case config.StateBolt:
		return NewBolt(cfg.State.Path)
	default:
		return nil, fmt.Errorf("unknown state backend %q", cfg.State.Backend)
	}
}
