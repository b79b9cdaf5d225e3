package common

import "encoding/json"

// Estados de un job (derivados de los reportes de tareas).
const (
	JobStatusPending   = "PENDING"
	JobStatusRunning   = "RUNNING"
	JobStatusCompleted = "COMPLETED"
	JobStatusFailed    = "FAILED"
)

// Estados de una tarea (TaskReport.Status).
const (
	TaskStatusSuccess = "SUCCESS"
	TaskStatusFailure = "FAILURE"
)

// JobRequest es lo que entra por POST /jobs: un plan fisico opaco ya
// particionado. Como se construyo u optimizo ese plan no es asunto nuestro.
type JobRequest struct {
	JobID      string          `json:"job_id"`
	Name       string          `json:"name"`
	StageID    string          `json:"stage_id"`
	Partitions int             `json:"partitions"`
	Plan       json.RawMessage `json:"plan"`
}

// TaskReport es el resultado de ejecutar una tarea en un executor.
type TaskReport struct {
	JobID       string                  `json:"job_id"`
	StageID     string                  `json:"stage_id"`
	PartitionID int                     `json:"partition_id"`
	ExecutorID  string                  `json:"executor_id"`
	Status      string                  `json:"status"`
	ErrorMsg    string                  `json:"error_msg,omitempty"`
	DurationMS  int64                   `json:"duration_ms"`
	Timestamp   int64                   `json:"timestamp"`
	Output      []ShuffleWritePartition `json:"output,omitempty"`
}
