package lane

import "fmt"

// RecoverAndBoot replays every lane's logs left over from an unclean
// shutdown before the pool is handed to callers, in three passes:
// redo (internal then external) across every lane, then Boot, then undo
// across every lane. Undo runs after Boot has built the descriptor;
// undo recovery itself never holds a lane. Running the two redo logs
// for every lane before any lane's undo also keeps a half-committed
// transaction's redo effects from being reverted by that same
// transaction's own undo before they've had a chance to land.
func RecoverAndBoot(lanes []*Lane) (*Descriptor, error) {
	for i, l := range lanes {
		if err := l.Internal.RecoverRedo(); err != nil {
			return nil, fmt.Errorf("lane: recover internal ulog for lane %d: %w", i, err)
		}
		if err := l.External.RecoverRedo(); err != nil {
			return nil, fmt.Errorf("lane: recover external ulog for lane %d: %w", i, err)
		}
	}

	desc, err := Boot(lanes)
	if err != nil {
		return nil, err
	}

	for i, l := range lanes {
		if err := l.Undo.RecoverUndo(); err != nil {
			return nil, fmt.Errorf("lane: recover undo ulog for lane %d: %w", i, err)
		}
	}

	return desc, nil
}
