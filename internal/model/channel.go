package model

// Channel is an ownership handle to one live bidirectional connection.
// Push is best effort: a failure means the peer is stale or half-closed
// and the caller falls back to durable-only delivery.
type Channel interface {
	Push(payload WirePayload) error
	Close(reason string) error
}

// ChannelRegistry maps a user identity to at most one live channel.
// Register returns the displaced handle (if any) so the caller can close
// the now-unreachable connection explicitly. Unregister removes the
// mapping only when ch is the current handle, so a replaced session
// tearing itself down never evicts its replacement. All operations are
// safe under concurrent use.
type ChannelRegistry interface {
	Register(identity string, ch Channel) (displaced Channel)
	Unregister(identity string, ch Channel)
	Lookup(identity string) (Channel, bool)
	Len() int
}
