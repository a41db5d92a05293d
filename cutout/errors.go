package cutout

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds. Wrap-checks work with errors.Is on any error returned by the
// pipeline.
var (
	ErrInvalidImage       = errors.New("invalid image")
	ErrTooLarge           = errors.New("image too large")
	ErrSegmentationFailed = errors.New("segmentation failed")
	ErrEncodingFailed     = errors.New("encoding failed")
)

var errReleased = errors.New("buffer already released")

type Stage string

const (
	StageValidate Stage = "validate"
	StageEnhance  Stage = "enhance"
	StageSegment  Stage = "segment"
	StageRefine   Stage = "refine"
	StageEncode   Stage = "encode"
)

// ProcessingError 某个阶段失败，终止当前请求
type ProcessingError struct {
	Stage Stage
	Kind  error
	Err   error
}

func newError(stage Stage, kind error, cause error) *ProcessingError {
	return &ProcessingError{Stage: stage, Kind: kind, Err: cause}
}

func (e *ProcessingError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Stage, e.Kind, e.Err)
}

func (e *ProcessingError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// ClientError reports whether the request itself was at fault.
func (e *ProcessingError) ClientError() bool {
	return errors.Is(e.Kind, ErrInvalidImage) || errors.Is(e.Kind, ErrTooLarge)
}

func (e *ProcessingError) HTTPStatus() int {
	switch {
	case errors.Is(e.Kind, ErrInvalidImage):
		return http.StatusBadRequest
	case errors.Is(e.Kind, ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// Message is the user-facing description of the failure.
func (e *ProcessingError) Message() string {
	switch {
	case errors.Is(e.Kind, ErrInvalidImage):
		return "the uploaded file is not a readable image"
	case errors.Is(e.Kind, ErrTooLarge):
		return "the image exceeds the size limit even after resizing"
	case errors.Is(e.Kind, ErrSegmentationFailed):
		return "background segmentation failed"
	default:
		return "failed to encode the result image"
	}
}
