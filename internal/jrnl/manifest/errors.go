package manifest

import (
	"errors"
	"fmt"
)

type ManifestErrorKind int

const (
	ManifestErrorKindNotFound ManifestErrorKind = iota + 1
	ManifestErrorKindUnsupportedVersion
	ManifestErrorKindInvalid
	ManifestErrorKindEncode
	ManifestErrorKindDecode
	ManifestErrorKindWrite
	ManifestErrorKindAlreadyExists
)

var (
	ErrManifestNotFound           = errors.New("manifest: file not found")
	ErrManifestUnsupportedVersion = errors.New("manifest: unsupported version")
	ErrManifestInvalid            = errors.New("manifest: invalid layout")
	ErrManifestEncode             = errors.New("manifest: unable to encode to JSON")
	ErrManifestDecode             = errors.New("manifest: unable to decode from JSON")
	ErrManifestWrite              = errors.New("manifest: unable to write to file")
	ErrManifestAlreadyExists      = errors.New("manifest: file already exists")
)

func (k ManifestErrorKind) String() string {
	switch k {
	case ManifestErrorKindNotFound:
		return "not_found"
	case ManifestErrorKindUnsupportedVersion:
		return "unsupported_version"
	case ManifestErrorKindInvalid:
		return "invalid"
	case ManifestErrorKindEncode:
		return "encode"
	case ManifestErrorKindDecode:
		return "decode"
	case ManifestErrorKindWrite:
		return "write"
	case ManifestErrorKindAlreadyExists:
		return "already_exists"
	default:
		return "unknown"
	}
}

type ManifestError struct {
	Kind ManifestErrorKind
	Path string
	Err  error
}

func (e *ManifestError) Error() string {
	return fmt.Sprintf("manifest error (%s) %s: %v", e.Kind, e.Path, e.Err)
}

func (e *ManifestError) Unwrap() []error {
	var sentinel error
	switch e.Kind {
	case ManifestErrorKindNotFound:
		sentinel = ErrManifestNotFound
	case ManifestErrorKindUnsupportedVersion:
		sentinel = ErrManifestUnsupportedVersion
	case ManifestErrorKindInvalid:
		sentinel = ErrManifestInvalid
	case ManifestErrorKindEncode:
		sentinel = ErrManifestEncode
	case ManifestErrorKindDecode:
		sentinel = ErrManifestDecode
	case ManifestErrorKindWrite:
		sentinel = ErrManifestWrite
	case ManifestErrorKindAlreadyExists:
		sentinel = ErrManifestAlreadyExists
	}
	if sentinel == nil {
		return []error{e.Err}
	}
	return []error{sentinel, e.Err}
}
