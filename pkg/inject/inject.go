// Package inject accepts literal command tokens from external callers and
// performs the same hardware actions as the bitstream protocol.
package inject

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/golang/glog"

	"github.com/robotalks/ardctl/pkg/dispatch"
)

// MaxCommandLen is the longest accepted payload in bytes.
const MaxCommandLen = 10

var (
	// ErrCommandTooLong rejects payloads longer than MaxCommandLen.
	ErrCommandTooLong = errors.New("command too long")
	// ErrBusy indicates the request was dropped because a sequence is in
	// flight.
	ErrBusy = errors.New("operation in progress")
)

// UnknownCommandError reports an unrecognized token.
type UnknownCommandError struct {
	Command string
}

// Error implements error.
func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("invalid operation %q", e.Command)
}

// Guard is the single entry point to hardware actions.
type Guard interface {
	RequestErase(dispatch.Source) bool
	RequestShutdown(dispatch.Source) bool
	RequestSerialEnable(dispatch.Source)
	RequestSerialDisable(dispatch.Source)
}

// Parse matches a payload against the command tokens. One trailing newline
// is ignored; matching is otherwise exact and case-sensitive.
func Parse(p []byte) (dispatch.Action, error) {
	if len(p) > MaxCommandLen {
		return "", ErrCommandTooLong
	}
	token := string(bytes.TrimSuffix(p, []byte{'\n'}))
	for _, action := range dispatch.Actions {
		if token == string(action) {
			return action, nil
		}
	}
	return "", &UnknownCommandError{Command: token}
}

// Injector executes command tokens.
type Injector struct {
	Guard Guard
}

// New creates an Injector.
func New(guard Guard) *Injector {
	return &Injector{Guard: guard}
}

// Command parses and executes one payload, reporting every failure.
func (i *Injector) Command(p []byte) error {
	action, err := Parse(p)
	if err != nil {
		return err
	}
	glog.V(1).Infof("injected command %s", action)
	if !i.Do(action) {
		return ErrBusy
	}
	return nil
}

// Do performs an action. It returns false if the action was dropped.
func (i *Injector) Do(action dispatch.Action) bool {
	switch action {
	case dispatch.ActionErase:
		return i.Guard.RequestErase(dispatch.SourceInject)
	case dispatch.ActionShutdown:
		return i.Guard.RequestShutdown(dispatch.SourceInject)
	case dispatch.ActionSerialOff:
		i.Guard.RequestSerialDisable(dispatch.SourceInject)
	case dispatch.ActionSerialOn:
		i.Guard.RequestSerialEnable(dispatch.SourceInject)
	}
	return true
}

// Write implements io.Writer with device-write semantics: oversized payloads
// are rejected, unknown tokens and dropped requests are logged and the
// payload is still reported consumed.
func (i *Injector) Write(p []byte) (int, error) {
	err := i.Command(p)
	switch err.(type) {
	case nil:
	case *UnknownCommandError:
		glog.Warning(err)
	default:
		if err == ErrCommandTooLong {
			return 0, err
		}
		glog.V(1).Infof("command %q: %v", p, err)
	}
	return len(p), nil
}
