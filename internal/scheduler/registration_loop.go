package scheduler

import (
	"log"

	"mini-fusion/internal/eventloop"
)

// RegistrationLoopAction procesa los eventos de ciclo de vida de los
// executors en su propio loop, independiente del de consultas. Cuando
// aparece capacidad nueva, les da otro empujon a los jobs con tareas
// pendientes posteando JobSubmitted en el loop de consultas.
type RegistrationLoopAction struct {
	State     *State
	Clients   *ExecutorClients
	QueryLoop *eventloop.EventLoop[Event]
}

var _ eventloop.EventAction[Event] = (*RegistrationLoopAction)(nil)

func (a *RegistrationLoopAction) OnStart() {
	log.Printf("[Scheduler] Loop de registro iniciado")
}

func (a *RegistrationLoopAction) OnStop() {
	log.Printf("[Scheduler] Loop de registro detenido")
}

func (a *RegistrationLoopAction) OnError(err error) {
	log.Printf("[Scheduler] ERROR en el loop de registro: %v", err)
}

func (a *RegistrationLoopAction) OnReceive(event Event) (*Event, error) {
	metricEventsProcessed.WithLabelValues(event.Type).Inc()

	switch event.Type {
	case EventExecutorRegistered:
		// Capacidad nueva: reintentar los jobs que quedaron esperando.
		for _, jobID := range a.State.Store.JobsWithPending() {
			if err := a.QueryLoop.PostEvent(JobSubmittedEvent(jobID)); err != nil {
				return nil, err
			}
		}
		return nil, nil
	case EventExecutorLost:
		a.Clients.Remove(event.ExecutorID)
		log.Printf("[Scheduler] Executor %s fuera del pool", event.ExecutorID)
		return nil, nil
	default:
		log.Printf("[Scheduler] Evento desconocido en el loop de registro: %s", event.Type)
		return nil, nil
	}
}
