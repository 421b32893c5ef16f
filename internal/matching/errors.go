package matching

import "errors"

var (
	// ErrEmptyTemplate means no template was supplied or it has zero area.
	ErrEmptyTemplate = errors.New("template is empty")

	// ErrEmptyFrame means the frame has zero area.
	ErrEmptyFrame = errors.New("frame is empty")

	// ErrTemplateTooLarge means a scaled template no longer fits inside the
	// frame. The search treats it as the end of the scale ladder.
	ErrTemplateTooLarge = errors.New("template too large for this scale")

	// ErrNoScaleFits means no scale on the ladder yields a usable template
	// size for this frame.
	ErrNoScaleFits = errors.New("no template scale fits the frame")

	// ErrUnknownBackend is returned by NewBackend for unregistered names.
	ErrUnknownBackend = errors.New("unknown matching backend")
)
