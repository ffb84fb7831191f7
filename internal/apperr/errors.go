package apperr

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrEmptyAnalysis      = errors.New("no analysis produced")
	ErrBackendUnreachable = errors.New("backend unreachable")
	ErrAnalysisFailed     = errors.New("analysis failed")
	ErrInvalidProvider    = errors.New("invalid provider")
	ErrHistoryUnavailable = errors.New("history unavailable")
)
