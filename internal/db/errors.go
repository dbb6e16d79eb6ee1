package db

import "errors"

var (
	// ErrKeyNotFound is returned by reads of an absent key.
	ErrKeyNotFound = errors.New("db: key not found")
	// ErrIndexExists is returned by CreateIndex when the index is already defined.
	ErrIndexExists = errors.New("db: index already exists")
)

// Op is the store command that failed.
type Op string

// Commands issued by the store.
const (
	OpCreateIndex Op = "FT.CREATE"
	OpIndexInfo   Op = "FT.INFO"
	OpSearch      Op = "FT.SEARCH"
	OpHSet        Op = "HSET"
	OpExec        Op = "EXEC"
	OpGet         Op = "GET"
	OpSet         Op = "SET"
	OpIncrBy      Op = "INCRBY"
	OpExpire      Op = "EXPIRE"
)

// Error carries the failed command and, for single-key commands, its key.
type Error struct {
	Op  Op
	Key string
	Err error
}

func (e *Error) Error() string {
	if e.Key == "" {
		return string(e.Op) + ": " + e.Err.Error()
	}
	return string(e.Op) + " " + e.Key + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }
