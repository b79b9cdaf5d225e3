package scheduler

// Tipos de evento de los loops del scheduler. El loop de consultas procesa
// los de job; el de registro, los de executors.
const (
	EventJobSubmitted       = "JOB_SUBMITTED"
	EventStageFinished      = "STAGE_FINISHED"
	EventJobFailed          = "JOB_FAILED"
	EventExecutorRegistered = "EXECUTOR_REGISTERED"
	EventExecutorLost       = "EXECUTOR_LOST"
)

// Event es el valor etiquetado que viaja por los mailboxes del scheduler.
type Event struct {
	Type       string
	JobID      string
	ExecutorID string
}

func JobSubmittedEvent(jobID string) Event {
	return Event{Type: EventJobSubmitted, JobID: jobID}
}
