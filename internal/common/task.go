package common

import (
	"encoding/json"
	"fmt"
)

// TaskDefinition es la unidad minima de trabajo despachable: una particion
// de una etapa de un job. El fragmento de plan viaja opaco (el scheduler
// nunca lo interpreta, solo el executor lo decodifica).
type TaskDefinition struct {
	JobID       string          `json:"job_id"`
	StageID     string          `json:"stage_id"`
	PartitionID int             `json:"partition_id"`
	Plan        json.RawMessage `json:"plan"`
}

// Key devuelve la tripleta que identifica la tarea. La tripleta es unica:
// el scheduler nunca debe asignar la misma dos veces en forma concurrente.
func (t TaskDefinition) Key() string {
	return fmt.Sprintf("%s/%s/%d", t.JobID, t.StageID, t.PartitionID)
}

// LaunchTaskRequest es el lote ordenado de tareas que el scheduler envia a
// un executor en un round de ofertas.
type LaunchTaskRequest struct {
	Tasks []TaskDefinition `json:"tasks"`
}

type LaunchTaskResponse struct {
	Accepted int `json:"accepted"`
}
