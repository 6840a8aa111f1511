package ui

import "time"

// Terminal width thresholds for responsive layouts.
const (
	// LayoutCompactWidth is the threshold below which the list drops seeders and size.
	LayoutCompactWidth = 80

	// LayoutSummaryWidth is the maximum width of the summary text block.
	LayoutSummaryWidth = 100
)

// Log display limits.
const (
	// LogBufferLimit is the maximum number of log lines read from the tail.
	LogBufferLimit = 2000
)

// Timing constants.
const (
	// DefaultUIInterval is the default refresh interval for state and logs.
	DefaultUIInterval = 250 * time.Millisecond

	// ControllerTimeout bounds a single browse request to the gateway.
	ControllerTimeout = 30 * time.Second

	// FlashDuration is how long a notice stays in the status bar.
	FlashDuration = 8 * time.Second
)
