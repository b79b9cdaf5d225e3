package scheduler

import (
	"log"
	"time"

	"mini-fusion/internal/common"
	"mini-fusion/internal/eventloop"
)

// DefaultOfferBackoff es la espera entre reintentos cuando no hay ningun
// executor con capacidad.
const DefaultOfferBackoff = 100 * time.Millisecond

// QueryLoopAction procesa los eventos de job del scheduler. Cada
// JobSubmitted dispara un round de ofertas: consultar capacidad, repartir
// tareas en round-robin y despachar. Todos los rounds corren en el unico
// consumidor del loop de consultas, que es lo que serializa la lectura y
// escritura de los contadores de slots.
type QueryLoopAction struct {
	State   *State
	Clients *ExecutorClients
	Backoff time.Duration
}

func NewQueryLoopAction(state *State, clients *ExecutorClients) *QueryLoopAction {
	return &QueryLoopAction{
		State:   state,
		Clients: clients,
		Backoff: DefaultOfferBackoff,
	}
}

var _ eventloop.EventAction[Event] = (*QueryLoopAction)(nil)

func (a *QueryLoopAction) OnStart() {
	log.Printf("[Scheduler] Loop de consultas iniciado")
}

func (a *QueryLoopAction) OnStop() {
	log.Printf("[Scheduler] Loop de consultas detenido")
}

func (a *QueryLoopAction) OnError(err error) {
	log.Printf("[Scheduler] ERROR procesando evento: %v", err)
}

func (a *QueryLoopAction) OnReceive(event Event) (*Event, error) {
	metricEventsProcessed.WithLabelValues(event.Type).Inc()

	switch event.Type {
	case EventJobSubmitted:
		return a.OfferResources(event.JobID)
	case EventStageFinished:
		// Con una sola etapa shuffle-write por job no hay nada que encadenar
		// todavia; queda el tag para cuando el planner mande multi-etapa.
		log.Printf("[Scheduler] Etapa finalizada para el job %s", event.JobID)
		return nil, nil
	case EventJobFailed:
		log.Printf("[Scheduler] Job %s marcado como fallido", event.JobID)
		return nil, nil
	default:
		log.Printf("[Scheduler] Evento desconocido ignorado: %s", event.Type)
		return nil, nil
	}
}

// OfferResources ejecuta un round de ofertas para el job. Devuelve un
// evento re-emitido cuando el round tiene que reintentarse.
func (a *QueryLoopAction) OfferResources(jobID string) (*Event, error) {
	executors := a.State.AvailableExecutors()

	// Sin capacidad no es un error: es señal de reintento. Dormimos el
	// backoff y re-emitimos el mismo evento para que el loop vuelva a
	// intentar mas tarde.
	if len(executors) == 0 {
		metricOfferRetries.Inc()
		log.Printf("[Scheduler] Sin executors con capacidad para el job %s, reintento en %v", jobID, a.Backoff)
		time.Sleep(a.Backoff)
		ev := JobSubmittedEvent(jobID)
		return &ev, nil
	}

	// Snapshot de slots por executor: el delta arranca en el total
	// disponible y despues se corrige a (previos - restantes).
	deltas := make([]common.ExecutorDeltaData, len(executors))
	for i, e := range executors {
		deltas[i] = common.ExecutorDeltaData{
			ExecutorID: e.ID,
			TaskSlots:  int32(e.AvailableTaskSlots),
		}
	}

	asignadas := a.State.FetchTaskAssignment(executors, jobID)

	total := 0
	for i := range executors {
		restantes := int32(executors[i].AvailableTaskSlots) - int32(len(asignadas[i]))
		deltas[i].TaskSlots = int32(executors[i].AvailableTaskSlots) - restantes
		total += len(asignadas[i])
	}

	// Round sin asignaciones: termina sin efectos.
	if total == 0 {
		return nil, nil
	}

	log.Printf("[Scheduler] Job %s: %d tareas asignadas en %d executors", jobID, total, len(executors))
	return a.launchTasks(jobID, executors, asignadas, deltas)
}

// launchTasks despacha secuencialmente, executor por executor en el orden
// de la lista. La contabilidad se descuenta ANTES del RPC (optimista). Al
// primer executor con lista vacia se corta: por el invariante del reparto
// round-robin, los que siguen tampoco tienen nada.
func (a *QueryLoopAction) launchTasks(jobID string, executors []common.ExecutorMetadata, asignadas [][]common.TaskDefinition, deltas []common.ExecutorDeltaData) (*Event, error) {
	for i, tareas := range asignadas {
		if len(tareas) == 0 {
			break
		}

		meta := executors[i]
		if err := a.State.ApplyDelta(meta.ID, -deltas[i].TaskSlots); err != nil {
			log.Printf("[Scheduler] WARN: no se pudo descontar slots de %s: %v", meta.ID, err)
		}

		cliente := a.Clients.Get(meta)
		if err := cliente.LaunchTasks(tareas); err != nil {
			// Politica explicita ante despacho fallido: devolver los slots
			// descontados, re-encolar al frente todo lo que quedo sin
			// despachar (este executor y los que seguian en el round) y
			// reintentar el job con un evento nuevo.
			metricLaunchFailures.Inc()
			log.Printf("[Scheduler] ERROR despachando %d tareas a %s: %v. Rollback y reintento.", len(tareas), meta.ID, err)
			if rollbackErr := a.State.ApplyDelta(meta.ID, deltas[i].TaskSlots); rollbackErr != nil {
				log.Printf("[Scheduler] WARN: rollback de slots de %s fallo: %v", meta.ID, rollbackErr)
			}
			var sinDespachar []common.TaskDefinition
			for j := i; j < len(asignadas); j++ {
				sinDespachar = append(sinDespachar, asignadas[j]...)
			}
			a.State.Store.RequeueTasks(jobID, sinDespachar)
			ev := JobSubmittedEvent(jobID)
			return &ev, nil
		}

		a.State.Store.MarkLaunched(jobID, tareas)
		metricTasksLaunched.Add(float64(len(tareas)))
		log.Printf("[Scheduler] %d tareas del job %s despachadas a %s", len(tareas), jobID, meta.ID)
	}
	return nil, nil
}
