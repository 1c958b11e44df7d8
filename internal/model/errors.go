package model

import (
	"errors"
)

var (
	ErrRunInProgress = errors.New("run already in progress")
	ErrRunNotActive  = errors.New("no active run")
	ErrNoSuchRun     = errors.New("no such run")
)
