package cache

import "errors"

// ErrLocked is returned when another process holds the training lock.
var ErrLocked = errors.New("training lock held by another process")
