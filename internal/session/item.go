package session

import (
	"errors"

	"github.com/AnyUserName/pixconv/internal/pipeline"
)

// State is the lifecycle position of an item.
type State string

const (
	StateIdle          State = "idle"
	StateProbing       State = "reading"
	StateReady         State = "ready"
	StateProbeFailed   State = "probe-failed"
	StateConverting    State = "converting"
	StateConverted     State = "done"
	StateConvertFailed State = "error"
)

// Convertible reports whether an item in this state may start converting.
func (s State) Convertible() bool {
	switch s {
	case StateReady, StateConverted, StateConvertFailed:
		return true
	}
	return false
}

var (
	// ErrNotFound is returned for an unknown item id.
	ErrNotFound = errors.New("item not found")
	// ErrNotReady is returned when converting an item whose metadata is not
	// known yet (or could not be read).
	ErrNotReady = errors.New("item metadata not available")
	// ErrInProgress is returned when an item is already converting.
	ErrInProgress = errors.New("conversion already in progress")
	// ErrUnsupportedInput is returned by Add for mime types outside
	// AcceptedInputs.
	ErrUnsupportedInput = errors.New("unsupported input type")
	// ErrEncoderUnavailable is returned when the item's output format has no
	// usable encoder. No slot is spent.
	ErrEncoderUnavailable = errors.New("encoder unavailable")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("session closed")
)

// AcceptedInputs lists the mime types Add accepts.
var AcceptedInputs = []string{"image/png", "image/jpeg", "image/webp", "image/gif"}

// IsAccepted reports whether mime is one of AcceptedInputs.
func IsAccepted(mime string) bool {
	for _, m := range AcceptedInputs {
		if m == mime {
			return true
		}
	}
	return false
}

// Item is one source image and its conversion state. Values returned by the
// Session are copies; Source and Result.Data are shared and must be treated
// as read-only.
type Item struct {
	ID           string
	Name         string
	Source       []byte
	DeclaredMime string
	Meta         *pipeline.Meta
	Settings     pipeline.Settings
	Result       *pipeline.Result
	LastError    string
	InProgress   bool
	State        State
}

func (it *Item) clone() Item {
	out := *it
	out.Settings = it.Settings.Clone()
	if it.Meta != nil {
		m := *it.Meta
		out.Meta = &m
	}
	return out
}

// release drops the references to the source and output buffers.
func (it *Item) release() {
	it.Source = nil
	it.Result = nil
}
