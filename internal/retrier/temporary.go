package retrier

import "errors"

// Temporary is implemented by errors that may succeed on retry, such as net timeouts.
type Temporary interface {
	Temporary() bool
}

// IsTemporary reports whether any error in err's chain declares itself temporary.
func IsTemporary(err error) bool {
	var temp Temporary
	if errors.As(err, &temp) {
		return temp.Temporary()
	}
	return false
}
