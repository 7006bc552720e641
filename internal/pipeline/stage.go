package pipeline

// Stage is a step of an upload run. A run walks the stages in declaration
// order and returns to StageIdle whether it succeeds or fails.
type Stage string

const (
	StageIdle              Stage = "idle"
	StageReading           Stage = "reading"
	StageNormalizing       Stage = "normalizing"
	StagePersistingUploads Stage = "persisting_uploads"
	StageReconciling       Stage = "reconciling"
	StagePersistingMissing Stage = "persisting_missing"
	StageReporting         Stage = "reporting"
	StageFailed            Stage = "failed"
)
