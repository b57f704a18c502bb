package converter

// ErrSessionBusy is returned by Convert when another conversion session
// is currently active on the same Converter.
type ErrSessionBusy struct{}

func (e ErrSessionBusy) Error() string {
	return "a conversion session is already active"
}

// ErrNoVideoTrack is returned by Convert when the source file contains
// no usable video track.
type ErrNoVideoTrack struct{}

func (e ErrNoVideoTrack) Error() string {
	return "the source contains no video track"
}

// ErrProcessorUnprepared is returned by Convert when the frame processor
// could not be prepared for the source's video format (for example when
// the buffer pool failed to preallocate).
type ErrProcessorUnprepared struct{}

func (e ErrProcessorUnprepared) Error() string {
	return "unable to prepare the frame processor for the source video format"
}

// ErrCancelled is returned by Convert when the session was interrupted
// via Cancel before both pump loops completed.
type ErrCancelled struct{}

func (e ErrCancelled) Error() string {
	return "the conversion session was cancelled"
}

// ErrAccessDenied is returned by Convert when scoped access to one of
// the endpoint paths could not be granted.
type ErrAccessDenied struct {
	Path string
	Err  error
}

func (e ErrAccessDenied) Error() string {
	return "unable to get access to '" + e.Path + "': " + e.Err.Error()
}

func (e ErrAccessDenied) Unwrap() error {
	return e.Err
}
