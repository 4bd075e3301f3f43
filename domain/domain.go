package domain

// Consumer is a sink for broadcast frames. The underlying transport is
// owned by the accept layer; the hub only references it.
type Consumer interface {
	ID() string
	Send(frame []byte) error
	Close() error
}

// Broadcaster maintains the set of live consumers and fans frames out
// to all of them.
type Broadcaster interface {
	Register(c Consumer)
	Unregister(c Consumer)
	Broadcast(frame []byte)
	Stats() (consumers int)
}
