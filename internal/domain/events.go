package domain

const (
	EventSampleReported   = "sample_reported"
	EventSinkStateChanged = "sink_state_changed"
)
