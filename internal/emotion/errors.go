package emotion

import "errors"

var (
	ErrPresetNotFound      = errors.New("preset not found")
	ErrCannotRemoveLast    = errors.New("cannot remove the last preset")
	ErrProtectedPreset     = errors.New("preset is protected")
	ErrEmptyName           = errors.New("preset name is empty")
	ErrInvalidDuration     = errors.New("transition duration must be positive")
	ErrUnroutableSentiment = errors.New("no preset mapped to sentiment")
)
