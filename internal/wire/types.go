package wire

import (
	"fmt"

	"mini-fusion/internal/common"
)

// Tipos de accion del ticket DoGet.
const (
	ActionFetchPartition = "fetch_partition"
)

// FetchPartition identifica una particion de shuffle ya producida en un
// executor: la tripleta de la tarea que la escribio mas la ruta reportada.
type FetchPartition struct {
	JobID       string `json:"job_id"`
	StageID     string `json:"stage_id"`
	PartitionID int    `json:"partition_id"`
	Path        string `json:"path"`
}

// Ticket es el sobre generico "ejecutar accion" que viaja en un OpDoGet.
// Hoy la unica accion es fetch_partition; el tag deja lugar para mas.
type Ticket struct {
	Action         string          `json:"action"`
	FetchPartition *FetchPartition `json:"fetch_partition,omitempty"`
}

// Validate chequea que el ticket tenga una accion conocida y su payload.
func (t Ticket) Validate() error {
	switch t.Action {
	case ActionFetchPartition:
		if t.FetchPartition == nil {
			return fmt.Errorf("ticket %s sin payload", t.Action)
		}
		return nil
	default:
		return fmt.Errorf("accion de ticket desconocida: %q", t.Action)
	}
}

// FormatVersion identifica la version del encoding de batches del stream.
const FormatVersion = "mf1"

// SchemaMsg es el PRIMER frame obligatorio de todo stream de particion:
// el schema resuelto mas la metadata de formato.
type SchemaMsg struct {
	Schema common.Schema `json:"schema"`
	Format string        `json:"format"`
}

// BatchMsg es un frame de datos: filas a decodificar contra el schema que
// abrio el stream.
type BatchMsg struct {
	Rows [][]any `json:"rows"`
}

// ErrorMsg reporta una falla del lado servidor dentro del stream.
type ErrorMsg struct {
	Error string `json:"error"`
}
