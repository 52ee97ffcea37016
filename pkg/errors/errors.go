// Package errors contains the failure taxonomy shared by the content service
// adapters, the model resolution pipeline and the sitemap resolver.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a resolved identifier or URL path has no
	// corresponding content. Callers typically render a 404.
	ErrNotFound = errors.New("item not found")

	// ErrInvalidRequest is returned for malformed input, e.g. an entity id that
	// is not of the form {componentId}-{templateId}. It is never retried.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrUpstreamProtocol is returned when the content service responded in an
	// unexpected shape or the client library raised an error.
	ErrUpstreamProtocol = errors.New("unexpected response from content service")

	// ErrUpstreamUnavailable is returned when the content service could not be reached.
	ErrUpstreamUnavailable = errors.New("content service unavailable")
)

// DxaError is a failure raised by the resolution layer. It carries a message
// describing what was being resolved and the original cause.
type DxaError struct {
	Msg   string
	Cause error
}

var _ error = (*DxaError)(nil)

func (e *DxaError) Error() string {
	if e.Cause == nil {
		return e.Msg
	}
	return fmt.Sprintf("%s: %v", e.Msg, e.Cause)
}

func (e *DxaError) Unwrap() error {
	return e.Cause
}

// classified attaches a sentinel kind on top of a concrete error so that
// errors.Is matches the kind as well as anything in the cause chain.
type classified struct {
	error
	kind error
}

func (c classified) Is(target error) bool {
	return target == c.kind
}

func (c classified) Unwrap() error {
	return c.error
}

// Classify returns err marked as being of the given kind. A nil err yields kind itself.
func Classify(kind, err error) error {
	if err == nil {
		return kind
	}
	if errors.Is(err, kind) {
		return err
	}
	return classified{error: err, kind: kind}
}

// ItemNotFoundError reports that nothing exists for the given identifier or URL path
// within a localization.
func ItemNotFoundError(item, localizationID string) error {
	return fmt.Errorf("no content found for '%s' in localization '%s': %w", item, localizationID, ErrNotFound)
}

// InvalidEntityIDError reports an entity identifier that is not of the form {componentId}-{templateId}.
func InvalidEntityIDError(id string) error {
	return fmt.Errorf("invalid entity identifier '%s', must be in format ComponentID-TemplateID: %w", id, ErrInvalidRequest)
}

// UpstreamProtocolError wraps cause as a protocol failure with a message.
func UpstreamProtocolError(msg string, cause error) error {
	return Classify(ErrUpstreamProtocol, &DxaError{Msg: msg, Cause: cause})
}

// UpstreamUnavailableError wraps cause as a transport failure with a message.
func UpstreamUnavailableError(msg string, cause error) error {
	return Classify(ErrUpstreamUnavailable, &DxaError{Msg: msg, Cause: cause})
}

// IsNotFound reports whether err is classified as ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
