package errors

import (
	"errors"
	"sync"
)

var (
	reasonsMu sync.RWMutex
	reasons   = map[error]string{}
)

// Reason creates a sentinel error and registers the name that is reported
// under details.reason whenever an AppError is caused by it.
func Reason(name, message string) error {
	err := errors.New(message)
	reasonsMu.Lock()
	reasons[err] = name
	reasonsMu.Unlock()
	return err
}

func reasonOf(err error) (string, bool) {
	reasonsMu.RLock()
	defer reasonsMu.RUnlock()
	for err != nil {
		if name, ok := reasons[err]; ok {
			return name, true
		}
		err = errors.Unwrap(err)
	}
	return "", false
}
