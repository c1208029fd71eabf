package util

import (
	"fmt"
	"os"
	"runtime/debug"

	log "github.com/sirupsen/logrus"

	"github.com/sidkik/ftpmirror/pkg/errors"
)

// HandleFatalError prints the error and exits non-zero. Friendly errors
// are printed bare; everything else keeps its full context chain.
func HandleFatalError(err error) {
	fmt.Fprintln(os.Stderr, errors.GetPrintableMessage(err))
	os.Exit(1)
}

// HandlePanic turns a panic into a readable crash report rather than a
// bare stack dump.
func HandlePanic() {
	if r := recover(); r != nil {
		log.WithField("stack", string(debug.Stack())).Errorf("Unexpected panic: %v", r)
		os.Exit(1)
	}
}
