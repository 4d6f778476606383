package intent

import "errors"

var (
	errNoGenerator = errors.New("no generator configured")
	errEmptyReply  = errors.New("empty reply")
)
