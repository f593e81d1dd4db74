package dispatch

import (
	"errors"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/evilcrow/subghz-gadget/internal/bruteforce"
	"github.com/evilcrow/subghz-gadget/internal/fsx"
	"github.com/evilcrow/subghz-gadget/internal/model"
	"github.com/evilcrow/subghz-gadget/internal/settings"
)

// bruterStateFile is the relative path of the paused-attack record
// within the internal-flash area (spec.md §6's state-file format never
// names a path, since the original firmware keeps it on an LFS
// partition with no directory concept visible to the client).
const bruterStateFile = "bruter_state.bin"

// settingsFile is the relative path of the persistent key=value
// settings record (spec.md §6).
const settingsFile = "settings.txt"

// LoadSettings restores persisted settings at startup, falling back
// to defaults when no file exists yet. cmd/gadgetd calls this once the
// store is open, before constructing the Dispatcher.
func LoadSettings(store *fsx.Store) settings.Settings {
	r, err := store.Open(model.PathInternalFlash, settingsFile)
	if err != nil {
		return settings.Default()
	}
	defer r.Close()
	s, err := settings.Load(r)
	if err != nil {
		log.Error("dispatch: settings load failed, using defaults", "err", err)
		return settings.Default()
	}
	return s
}

// persistSettings writes the current settings back to flash; callers
// log a failure rather than surface it, matching handleFactoryReset's
// "the in-memory value is authoritative" stance.
func (d *Dispatcher) persistSettings() {
	if d.store == nil {
		return
	}
	w, err := d.store.Create(model.PathInternalFlash, settingsFile)
	if err != nil {
		log.Error("dispatch: settings persist failed", "err", err)
		return
	}
	defer w.Close()
	d.settingsMu.Lock()
	s := d.settings
	d.settingsMu.Unlock()
	if err := settings.Save(w, s); err != nil {
		log.Error("dispatch: settings save failed", "err", err)
	}
}

// flashStatePersister implements bruteforce.StatePersister against
// fsx.Store's internal-flash area, the same backend settings.Settings
// is saved to.
type flashStatePersister struct {
	store *fsx.Store
}

// NewFlashStatePersister grounds bruteforce.StatePersister on the
// Store already wired for settings and file operations, so a paused
// attack survives a reboot the same way persisted settings do.
func NewFlashStatePersister(store *fsx.Store) bruteforce.StatePersister {
	return &flashStatePersister{store: store}
}

func (p *flashStatePersister) Save(s model.AttackState) error {
	w, err := p.store.Create(model.PathInternalFlash, bruterStateFile)
	if err != nil {
		return err
	}
	defer w.Close()
	return bruteforce.WriteState(w, s)
}

func (p *flashStatePersister) Load() (model.AttackState, bool, error) {
	r, err := p.store.Open(model.PathInternalFlash, bruterStateFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return model.AttackState{}, false, nil
		}
		return model.AttackState{}, false, err
	}
	defer r.Close()
	s, err := bruteforce.ReadState(r)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return model.AttackState{}, false, nil
		}
		return model.AttackState{}, false, err
	}
	return s, true, nil
}

func (p *flashStatePersister) Clear() error {
	return p.store.RemoveQuiet(model.PathInternalFlash, bruterStateFile)
}
