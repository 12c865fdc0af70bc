package settings

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/poolhouse/poolhouse-controller/internal/model"
)

// Keeper owns the in-memory copy of the settings record and writes the
// whole record back on every accepted change. Both control loops share
// one Keeper; each writes only its own slot.
type Keeper struct {
	mu    sync.Mutex
	store *Store
	rec   *Record
}

func NewKeeper(store *Store) *Keeper {
	rec, err := store.Load()
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Info().Msg("No stored settings record, using defaults")
		} else {
			log.Warn().Err(err).Msg("Failed to load settings record, using defaults")
		}
		rec = Defaults()
	}
	return &Keeper{store: store, rec: rec}
}

func (k *Keeper) Loop(index int) LoopSettings {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.rec.Loops[index]
}

// SaveLoop replaces one loop's slot and persists the full record.
func (k *Keeper) SaveLoop(index int, target, calibration float64, resume model.ResumeState) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.rec.Loops[index] = LoopSettings{
		Target:      target,
		Calibration: calibration,
		Resume:      resume,
	}
	return k.store.Save(k.rec)
}
