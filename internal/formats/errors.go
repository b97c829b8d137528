package formats

import (
	"errors"
	"fmt"

	"github.com/therealutkarshpriyadarshi/mediastream/pkg/models"
)

// ErrUnsupportedFormat is returned for format combinations that have no profile tag
var ErrUnsupportedFormat = errors.New("unsupported format")

// UnsupportedError describes the rejected combination
type UnsupportedError struct {
	Kind   models.MediaKind
	Params Params
	Reason string
}

func (e *UnsupportedError) Error() string {
	msg := fmt.Sprintf("%s: %s container=%q codec=%q", ErrUnsupportedFormat, e.Kind, e.Params.Container, e.Params.Codec)
	if e.Params.SecondaryCodec != "" {
		msg += fmt.Sprintf(" secondary=%q", e.Params.SecondaryCodec)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *UnsupportedError) Unwrap() error {
	return ErrUnsupportedFormat
}

func unsupported(kind models.MediaKind, p Params, reason string) error {
	return &UnsupportedError{Kind: kind, Params: p, Reason: reason}
}
