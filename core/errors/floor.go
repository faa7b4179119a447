package errors

import stderrors "errors"

var (
	ErrFloorCooldownActive = stderrors.New("floor: ratchet cooldown still active")
	ErrFloorWouldLower     = stderrors.New("floor: candidate would lower existing floor")
)
