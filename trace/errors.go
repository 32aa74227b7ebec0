package trace

import "fmt"

// ProtocolError reports a malformed message on a control or broadcast channel; the message is ignored
type ProtocolError struct {
	Channel string
	Err     error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("malformed %s message: %v", e.Channel, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}
