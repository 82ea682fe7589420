package approval

import "errors"

var ErrUnknownNode = errors.New("unknown content kind")
