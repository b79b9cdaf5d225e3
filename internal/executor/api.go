package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"mini-fusion/internal/common"
)

// Server expone el API HTTP del executor (plano de control) y maneja el
// dialogo con el scheduler: registro, heartbeats y reportes de tareas.
type Server struct {
	Executor     *Executor
	SchedulerURL string
	DataPort     int

	// Report es reemplazable en tests; por defecto postea al scheduler.
	Report func(report common.TaskReport) error

	http *http.Client
}

func NewServer(exec *Executor, schedulerURL string, dataPort int) *Server {
	s := &Server{
		Executor:     exec,
		SchedulerURL: schedulerURL,
		DataPort:     dataPort,
		http:         &http.Client{Timeout: 10 * time.Second},
	}
	s.Report = s.reportToScheduler
	return s
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/tasks", s.HandleLaunchTask).Methods(http.MethodPost)
	return r
}

// HandleLaunchTask recibe el lote ordenado de tareas de un round de
// ofertas. Cada tarea entra al pool; la respuesta solo confirma la
// recepcion del lote, el resultado real viaja despues por /report.
func (s *Server) HandleLaunchTask(w http.ResponseWriter, r *http.Request) {
	var req common.LaunchTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "JSON invalido del lote de tareas", http.StatusBadRequest)
		return
	}

	log.Printf("[Executor %s] Lote recibido: %d tareas", s.Executor.ID, len(req.Tasks))
	for _, task := range req.Tasks {
		task := task
		if err := s.Executor.Submit(func() { s.runTask(task) }); err != nil {
			http.Error(w, fmt.Sprintf("no se pudo encolar la tarea %s: %v", task.Key(), err), http.StatusServiceUnavailable)
			return
		}
	}

	json.NewEncoder(w).Encode(common.LaunchTaskResponse{Accepted: len(req.Tasks)})
}

// runTask ejecuta una tarea y reporta el resultado al scheduler. El fallo
// del reporte se loguea y nada mas: la tarea ya corrio localmente.
func (s *Server) runTask(task common.TaskDefinition) {
	inicio := time.Now()
	salidas, err := s.Executor.ExecuteShuffleWrite(context.Background(), task)

	report := common.TaskReport{
		JobID:       task.JobID,
		StageID:     task.StageID,
		PartitionID: task.PartitionID,
		ExecutorID:  s.Executor.ID,
		Timestamp:   time.Now().Unix(),
		DurationMS:  time.Since(inicio).Milliseconds(),
	}
	if err != nil {
		report.Status = common.TaskStatusFailure
		report.ErrorMsg = err.Error()
		log.Printf("[Executor %s] Tarea %s FALLO: %v", s.Executor.ID, task.Key(), err)
	} else {
		report.Status = common.TaskStatusSuccess
		report.Output = salidas
	}

	if reportErr := s.Report(report); reportErr != nil {
		log.Printf("[Executor %s] ERROR reportando la tarea %s: %v", s.Executor.ID, task.Key(), reportErr)
	}
}

func (s *Server) reportToScheduler(report common.TaskReport) error {
	return s.postJSON("/report", report)
}

// Register da de alta este executor en el scheduler.
func (s *Server) Register() error {
	return s.postJSON("/executors/register", s.Executor.Metadata(s.DataPort))
}

// StartHeartbeats manda la foto de slots libres cada intervalo, hasta que
// el contexto se cancele. Es el mecanismo que reconcilia la contabilidad
// optimista del scheduler con la realidad del pool.
func (s *Server) StartHeartbeats(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			hb := common.Heartbeat{
				Metadata:    s.Executor.Metadata(s.DataPort),
				ActiveTasks: s.Executor.pool.Running(),
			}
			if err := s.postJSON("/executors/heartbeat", hb); err != nil {
				log.Printf("[Executor %s] ERROR enviando heartbeat: %v", s.Executor.ID, err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) postJSON(path string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	url := s.SchedulerURL + path
	resp, err := s.http.Post(url, "application/json", bytes.NewBuffer(data))
	if err != nil {
		return fmt.Errorf("no se pudo conectar con el scheduler en %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		detalle, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("el scheduler devolvio status %d: %s", resp.StatusCode, string(detalle))
	}
	return nil
}
