package ucancloud

import (
	"errors"
	"fmt"
)

type AuthErrorKind string

const (
	AuthNotSignedIn        AuthErrorKind = "not_signed_in"
	AuthInvalidCredentials AuthErrorKind = "invalid_credentials"
	AuthCannotConnect      AuthErrorKind = "cannot_connect"
	AuthRejected           AuthErrorKind = "rejected"
)

// AuthError means the session must be (re)established before retrying.
type AuthError struct {
	Kind    AuthErrorKind
	Op      string
	Code    string
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	msg := fmt.Sprintf("ucan %s: authentication error (%s)", e.Op, e.Kind)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// ServerDataError is a transient failure; the previous data stays valid.
type ServerDataError struct {
	Op      string
	Code    string
	Message string
	Err     error
}

func (e *ServerDataError) Error() string {
	msg := fmt.Sprintf("ucan %s: server data error", e.Op)
	if e.Code != "" {
		msg += fmt.Sprintf(" (code %s)", e.Code)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ServerDataError) Unwrap() error {
	return e.Err
}

func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

func IsInvalidCredentials(err error) bool {
	return authKind(err) == AuthInvalidCredentials
}

func IsCannotConnect(err error) bool {
	return authKind(err) == AuthCannotConnect
}

func authKind(err error) AuthErrorKind {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}
