package protocol

import "errors"

var (
	ErrConnectionClosed = errors.New("connection is closed")
	ErrAckTimeout       = errors.New("acknowledgement timeout")
	ErrInvalidEnvelope  = errors.New("invalid envelope")
	ErrMessageTooLarge  = errors.New("message too large")
	ErrNoReply          = errors.New("message does not expect a reply")
	ErrAlreadyReplied   = errors.New("message already replied")
)
