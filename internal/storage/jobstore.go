package storage

import (
	"sync"

	"mini-fusion/internal/common"
)

// JobRecord es el estado en memoria de un job: el pedido original, la cola
// de tareas pendientes y lo reportado por los executors.
type JobRecord struct {
	Request common.JobRequest
	Pending []common.TaskDefinition
	// Launched marca las tripletas ya despachadas; una tarea nunca puede
	// estar pendiente y despachada a la vez.
	Launched map[string]bool
	Reports  map[string]common.TaskReport
	Output   []common.ShuffleWritePartition
}

// JobStore guarda los jobs y su progreso. Todo bajo un unico RWMutex: el
// volumen es chico y la simplicidad gana.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]*JobRecord
}

func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]*JobRecord)}
}

// CreateJob registra el job con sus tareas iniciales en la cola de
// pendientes.
func (s *JobStore) CreateJob(req common.JobRequest, tasks []common.TaskDefinition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[req.JobID] = &JobRecord{
		Request:  req,
		Pending:  append([]common.TaskDefinition(nil), tasks...),
		Launched: make(map[string]bool),
		Reports:  make(map[string]common.TaskReport),
	}
}

func (s *JobStore) GetJob(jobID string) (*JobRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.jobs[jobID]
	return rec, ok
}

// DequeuePendingTask saca la proxima tarea pendiente del job, si hay.
func (s *JobStore) DequeuePendingTask(jobID string) (common.TaskDefinition, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[jobID]
	if !ok || len(rec.Pending) == 0 {
		return common.TaskDefinition{}, false
	}
	task := rec.Pending[0]
	rec.Pending = rec.Pending[1:]
	return task, true
}

// RequeueTasks devuelve tareas al FRENTE de la cola (rollback de un
// despacho fallido: esas tareas van primero en el proximo round).
func (s *JobStore) RequeueTasks(jobID string, tasks []common.TaskDefinition) {
	if len(tasks) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[jobID]
	if !ok {
		return
	}
	rec.Pending = append(append([]common.TaskDefinition(nil), tasks...), rec.Pending...)
	for _, t := range tasks {
		delete(rec.Launched, t.Key())
	}
}

// MarkLaunched registra las tripletas despachadas con exito.
func (s *JobStore) MarkLaunched(jobID string, tasks []common.TaskDefinition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[jobID]
	if !ok {
		return
	}
	for _, t := range tasks {
		rec.Launched[t.Key()] = true
	}
}

func (s *JobStore) PendingCount(jobID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.jobs[jobID]
	if !ok {
		return 0
	}
	return len(rec.Pending)
}

// JobsWithPending lista los jobs que todavia tienen tareas sin despachar.
func (s *JobStore) JobsWithPending() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for id, rec := range s.jobs {
		if len(rec.Pending) > 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

// SaveTaskReport guarda el reporte de una tarea y acumula las particiones
// de shuffle producidas.
func (s *JobStore) SaveTaskReport(report common.TaskReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[report.JobID]
	if !ok {
		return
	}
	key := common.TaskDefinition{JobID: report.JobID, StageID: report.StageID, PartitionID: report.PartitionID}.Key()
	rec.Reports[key] = report
	if report.Status == common.TaskStatusSuccess {
		rec.Output = append(rec.Output, report.Output...)
	}
}

// JobStatus deriva el estado del job a partir de los reportes.
func (s *JobStore) JobStatus(jobID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.jobs[jobID]
	if !ok {
		return ""
	}

	exitos := 0
	for _, rep := range rec.Reports {
		if rep.Status == common.TaskStatusFailure {
			return common.JobStatusFailed
		}
		if rep.Status == common.TaskStatusSuccess {
			exitos++
		}
	}
	if rec.Request.Partitions > 0 && exitos == rec.Request.Partitions {
		return common.JobStatusCompleted
	}
	if len(rec.Launched) > 0 {
		return common.JobStatusRunning
	}
	return common.JobStatusPending
}

// Partitions devuelve las particiones de shuffle producidas hasta ahora.
func (s *JobStore) Partitions(jobID string) []common.ShuffleWritePartition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.jobs[jobID]
	if !ok {
		return nil
	}
	return append([]common.ShuffleWritePartition(nil), rec.Output...)
}
