package activity

import "errors"

var ErrInvalidInput = errors.New("invalid input")
