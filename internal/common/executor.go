package common

import "fmt"

// ExecutorMetadata describe un executor registrado: donde vive y cuantos
// slots de tareas tiene libres en este momento.
type ExecutorMetadata struct {
	ID                 string `json:"id"`
	Host               string `json:"host"`
	Port               int    `json:"port"`
	DataPort           int    `json:"data_port"` // puerto del servidor de particiones (plano de datos)
	AvailableTaskSlots uint32 `json:"available_task_slots"`
}

// Addr devuelve host:port del API HTTP del executor.
func (m ExecutorMetadata) Addr() string {
	return fmt.Sprintf("%s:%d", m.Host, m.Port)
}

// DataAddr devuelve host:port del servidor de particiones.
func (m ExecutorMetadata) DataAddr() string {
	return fmt.Sprintf("%s:%d", m.Host, m.DataPort)
}

// ExecutorDeltaData registra cuantos slots consumio un round de ofertas en
// un executor: se inicializa con los slots disponibles y despues de calcular
// la asignacion se corrige a (previos - restantes).
type ExecutorDeltaData struct {
	ExecutorID string `json:"executor_id"`
	TaskSlots  int32  `json:"task_slots"`
}
