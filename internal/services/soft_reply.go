package services

import "errors"

// SoftReplyError is an upstream failure that is reported to the client as a normal
// 200 response carrying a readable {"reply": ...} message.
type SoftReplyError struct {
	Reply string
	Err   error
}

func (e *SoftReplyError) Error() string {
	if e.Err != nil {
		return e.Reply + ": " + e.Err.Error()
	}
	return e.Reply
}

func (e *SoftReplyError) Unwrap() error { return e.Err }

// AsSoftReply returns the SoftReplyError in err's chain, if any
func AsSoftReply(err error) (*SoftReplyError, bool) {
	var soft *SoftReplyError
	if errors.As(err, &soft) {
		return soft, true
	}
	return nil, false
}
