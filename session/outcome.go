package session

// Outcome is how one connection session ended. It is one of Quit,
// Disconnected or LivenessTimeout.
type Outcome interface {
	outcome()
}

// Quit: the user left, or the editor failed (Err set).
type Quit struct {
	Err error
}

// Disconnected: the connection was lost. Recoverable when reconnect is on.
type Disconnected struct {
	Reason string
}

// LivenessTimeout: nothing arrived from the server within the liveness
// window. Never retried.
type LivenessTimeout struct{}

func (Quit) outcome()            {}
func (Disconnected) outcome()    {}
func (LivenessTimeout) outcome() {}
