package interaction

// Cursor is the pointer affordance the engine asks the host to show.
type Cursor int

const (
	CursorDefault Cursor = iota
	CursorGrab
	CursorGrabbing
	CursorMove
	CursorCrosshair
	CursorPointer
)

// String returns the cursor name.
func (c Cursor) String() string {
	switch c {
	case CursorGrab:
		return "grab"
	case CursorGrabbing:
		return "grabbing"
	case CursorMove:
		return "move"
	case CursorCrosshair:
		return "crosshair"
	case CursorPointer:
		return "pointer"
	default:
		return "default"
	}
}

// Port abstracts the presentation side effects the engine needs: cursor
// styling lives behind it so the state machine stays headless and the
// shared cursor state cannot leak past disposal.
type Port interface {
	SetCursor(Cursor)
}

// nopPort is the default Port when the host does not provide one.
type nopPort struct{}

func (nopPort) SetCursor(Cursor) {}
