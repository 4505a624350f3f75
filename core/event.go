package core

// IEvent is implemented by every outbound socket event. GetId returns the wire name.
type IEvent interface {
	GetId() string
}
