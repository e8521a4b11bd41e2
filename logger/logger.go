package logger

import (
	"go.uber.org/zap"
)

var Log *zap.SugaredLogger

func init() {
	// Keep Log usable in tests that never call Init.
	Log = zap.NewNop().Sugar()
}

// Init builds the process-wide sugared logger. Pass debug for
// human-readable development output.
func Init(debug bool) {
	var (
		l   *zap.Logger
		err error
	)
	if debug {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		panic("failed to initialize zap logger: " + err.Error())
	}
	Log = l.Sugar()
}
