package cerr

import (
	"github.com/kazz187/agentgate/pkg/clog"
)

//go:generate go tool stringer -type=Code -output=code_string.go code.go
type Code int

const (
	OK                 = Code(0)
	Canceled           = Code(1)
	Unknown            = Code(2)
	InvalidArgument    = Code(3)
	DeadlineExceeded   = Code(4)
	NotFound           = Code(5)
	AlreadyExists      = Code(6)
	PermissionDenied   = Code(7)
	ResourceExhausted  = Code(8)
	FailedPrecondition = Code(9)
	Aborted            = Code(10)
	OutOfRange         = Code(11)
	Unimplemented      = Code(12)
	Internal           = Code(13)
	Unavailable        = Code(14)
	DataLoss           = Code(15)
)

var codeToLevelMap = map[Code]clog.Level{
	Canceled:           clog.LevelInfo,
	Unknown:            clog.LevelError,
	InvalidArgument:    clog.LevelInfo,
	DeadlineExceeded:   clog.LevelWarn,
	NotFound:           clog.LevelInfo,
	AlreadyExists:      clog.LevelInfo,
	PermissionDenied:   clog.LevelInfo,
	ResourceExhausted:  clog.LevelWarn,
	FailedPrecondition: clog.LevelInfo,
	Aborted:            clog.LevelWarn,
	OutOfRange:         clog.LevelInfo,
	Unimplemented:      clog.LevelError,
	Internal:           clog.LevelError,
	Unavailable:        clog.LevelError,
	DataLoss:           clog.LevelError,
}

// Level returns the diagnostic log level associated with the code.
func (c Code) Level() clog.Level {
	if c == OK {
		return clog.LevelInfo
	}
	level, ok := codeToLevelMap[c]
	if !ok {
		return clog.LevelError
	}
	return level
}
