package review

import "errors"

var (
	// ErrNoReviewer means neither an entry author nor a configured default
	// reviewer could be resolved for the anomaly's project/form.
	ErrNoReviewer = errors.New("no reviewer could be resolved")
)
