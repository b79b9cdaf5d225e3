package scheduler

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mini-fusion/internal/common"
	"mini-fusion/internal/eventloop"
)

// Server arma el API HTTP del scheduler y es dueño de sus dos event loops:
// el de consultas (rounds de oferta) y el de registro (altas y bajas de
// executors).
type Server struct {
	State   *State
	Clients *ExecutorClients

	QueryLoop        *eventloop.EventLoop[Event]
	RegistrationLoop *eventloop.EventLoop[Event]

	stopExpiry chan struct{}
}

func NewServer(state *State, clients *ExecutorClients, mailboxCapacity int, backoff time.Duration) *Server {
	action := NewQueryLoopAction(state, clients)
	if backoff > 0 {
		action.Backoff = backoff
	}
	s := &Server{
		State:      state,
		Clients:    clients,
		stopExpiry: make(chan struct{}),
	}
	s.QueryLoop = eventloop.NewEventLoop[Event]("query", mailboxCapacity, action)
	s.RegistrationLoop = eventloop.NewEventLoop[Event]("registration", mailboxCapacity, &RegistrationLoopAction{
		State:     state,
		Clients:   clients,
		QueryLoop: s.QueryLoop,
	})
	return s
}

// Start arranca los dos loops y el chequeo periodico de executors muertos.
func (s *Server) Start() error {
	if err := s.QueryLoop.Start(); err != nil {
		return err
	}
	if err := s.RegistrationLoop.Start(); err != nil {
		return err
	}
	go s.expiryLoop()
	return nil
}

func (s *Server) Stop() {
	close(s.stopExpiry)
	s.QueryLoop.Stop()
	s.RegistrationLoop.Stop()
}

// expiryLoop detecta executors sin heartbeat y avisa al loop de registro.
func (s *Server) expiryLoop() {
	ticker := time.NewTicker(ExecutorTimeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			for _, id := range s.State.ExpireDeadExecutors() {
				s.RegistrationLoop.PostEvent(Event{Type: EventExecutorLost, ExecutorID: id})
			}
		case <-s.stopExpiry:
			return
		}
	}
}

// Router arma las rutas del API.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/jobs", s.HandleSubmitJob).Methods(http.MethodPost)
	r.HandleFunc("/jobs/{id}", s.HandleJobStatus).Methods(http.MethodGet)
	r.HandleFunc("/executors/register", s.HandleRegisterExecutor).Methods(http.MethodPost)
	r.HandleFunc("/executors/heartbeat", s.HandleHeartbeat).Methods(http.MethodPost)
	r.HandleFunc("/report", s.HandleReport).Methods(http.MethodPost)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return r
}

// HandleSubmitJob recibe un plan fisico ya particionado, arma una tarea por
// particion y postea el JobSubmitted al loop de consultas.
func (s *Server) HandleSubmitJob(w http.ResponseWriter, r *http.Request) {
	var req common.JobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "JSON invalido del job", http.StatusBadRequest)
		return
	}
	if req.Partitions <= 0 {
		http.Error(w, "el job necesita particiones > 0", http.StatusBadRequest)
		return
	}
	if len(req.Plan) == 0 {
		http.Error(w, "el job no trae plan", http.StatusBadRequest)
		return
	}
	if req.StageID == "" {
		req.StageID = "stage-0"
	}
	req.JobID = uuid.New().String()

	// Una tarea por particion de entrada; el plan viaja opaco dentro de
	// cada una. La tripleta (job, stage, particion) queda unica por
	// construccion.
	tasks := make([]common.TaskDefinition, 0, req.Partitions)
	for p := 0; p < req.Partitions; p++ {
		tasks = append(tasks, common.TaskDefinition{
			JobID:       req.JobID,
			StageID:     req.StageID,
			PartitionID: p,
			Plan:        req.Plan,
		})
	}
	s.State.Store.CreateJob(req, tasks)

	log.Printf("[Scheduler] Job %s recibido (%d tareas)", req.JobID, len(tasks))
	if err := s.QueryLoop.PostEvent(JobSubmittedEvent(req.JobID)); err != nil {
		http.Error(w, fmt.Sprintf("no se pudo encolar el job: %v", err), http.StatusServiceUnavailable)
		return
	}

	json.NewEncoder(w).Encode(map[string]string{"job_id": req.JobID, "status": "SUBMITTED"})
}

// HandleJobStatus expone el estado derivado del job y las particiones de
// shuffle producidas hasta el momento.
func (s *Server) HandleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]
	if _, ok := s.State.Store.GetJob(jobID); !ok {
		http.Error(w, "job desconocido", http.StatusNotFound)
		return
	}
	json.NewEncoder(w).Encode(map[string]any{
		"job_id":     jobID,
		"status":     s.State.Store.JobStatus(jobID),
		"pending":    s.State.Store.PendingCount(jobID),
		"partitions": s.State.Store.Partitions(jobID),
	})
}

func (s *Server) HandleRegisterExecutor(w http.ResponseWriter, r *http.Request) {
	var meta common.ExecutorMetadata
	if err := json.NewDecoder(r.Body).Decode(&meta); err != nil {
		http.Error(w, "JSON invalido del executor", http.StatusBadRequest)
		return
	}
	if meta.ID == "" {
		http.Error(w, "executor sin id", http.StatusBadRequest)
		return
	}
	s.State.RegisterExecutor(meta)
	s.RegistrationLoop.PostEvent(Event{Type: EventExecutorRegistered, ExecutorID: meta.ID})
	w.WriteHeader(http.StatusOK)
}

func (s *Server) HandleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var hb common.Heartbeat
	if err := json.NewDecoder(r.Body).Decode(&hb); err != nil {
		http.Error(w, "JSON invalido del heartbeat", http.StatusBadRequest)
		return
	}
	s.State.UpdateHeartbeat(hb)
	w.WriteHeader(http.StatusOK)
}

// HandleReport recibe el resultado de una tarea ejecutada.
func (s *Server) HandleReport(w http.ResponseWriter, r *http.Request) {
	var rep common.TaskReport
	if err := json.NewDecoder(r.Body).Decode(&rep); err != nil {
		http.Error(w, "JSON invalido del reporte", http.StatusBadRequest)
		return
	}
	log.Printf("[Scheduler] Reporte: tarea %s/%s/%d [%s] executor %s",
		rep.JobID, rep.StageID, rep.PartitionID, rep.Status, rep.ExecutorID)
	s.State.Store.SaveTaskReport(rep)
	w.WriteHeader(http.StatusOK)
}
