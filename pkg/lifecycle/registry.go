package lifecycle

import (
	"errors"
	"fmt"
	"os"

	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/srediag/sumipc/pkg/sem"
	"github.com/srediag/sumipc/pkg/shm"
)

type objectKind int

const (
	kindSegment objectKind = iota
	kindSemaphore
)

// live holds every IPC name this process created and has not unlinked yet.
// Signal handlers read it from another goroutine.
var live = cmap.New[objectKind]()

func register(name string, kind objectKind) {
	live.Set(name, kind)
}

func deregister(names ...string) {
	for _, name := range names {
		live.Remove(name)
	}
}

// Registered returns the names that CleanupAll would unlink.
func Registered() []string {
	return live.Keys()
}

func unlink(name string, kind objectKind) error {
	var err error
	switch kind {
	case kindSegment:
		err = shm.Unlink(name)
	case kindSemaphore:
		err = sem.Unlink(name)
	}
	if err != nil {
		return fmt.Errorf("lifecycle: unlink %s: %w", name, err)
	}
	return nil
}

// CleanupAll unlinks every registered name. It is meant for the interrupt
// path, where sessions cannot be closed in order. Names already gone are
// not an error.
func CleanupAll() error {
	var errs []error
	for item := range live.IterBuffered() {
		live.Remove(item.Key)
		if err := unlink(item.Key, item.Val); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
