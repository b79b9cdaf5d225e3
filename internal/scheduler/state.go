package scheduler

import (
	"fmt"
	"log"
	"sync"
	"time"

	"mini-fusion/internal/common"
	"mini-fusion/internal/storage"
)

// ExecutorTimeout: sin heartbeat por este tiempo, el executor se da por
// muerto y sale del pool.
const ExecutorTimeout = 10 * time.Second

type executorEntry struct {
	metadata      common.ExecutorMetadata
	slots         uint32
	lastHeartbeat time.Time
}

// State es el estado compartido del scheduler: el registro de executors con
// sus slots libres y el store de jobs. Los contadores de slots son EL dato
// mutable compartido del sistema: se leen y escriben a lo largo de un round
// de ofertas sin aislamiento transaccional, asi que todos los rounds corren
// confinados al event loop de consultas; este registro no intenta arbitrar
// rounds concurrentes.
type State struct {
	mu        sync.RWMutex
	executors map[string]*executorEntry
	order     []string // orden de registro, para iterar deterministico

	Store *storage.JobStore
}

func NewState(store *storage.JobStore) *State {
	return &State{
		executors: make(map[string]*executorEntry),
		order:     make([]string, 0),
		Store:     store,
	}
}

// RegisterExecutor da de alta (o actualiza) un executor. Si es nuevo, entra
// al final del orden de iteracion.
func (s *State) RegisterExecutor(meta common.ExecutorMetadata) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, existe := s.executors[meta.ID]; !existe {
		s.order = append(s.order, meta.ID)
		log.Printf("[Scheduler] Executor %s registrado (%s, %d slots)", meta.ID, meta.Addr(), meta.AvailableTaskSlots)
	}
	s.executors[meta.ID] = &executorEntry{
		metadata:      meta,
		slots:         meta.AvailableTaskSlots,
		lastHeartbeat: time.Now(),
	}
}

// UpdateHeartbeat reconcilia los slots con lo que el executor reporta. Es
// el punto donde la contabilidad optimista vuelve a la realidad despues de
// un despacho fallido o de tareas terminadas.
func (s *State) UpdateHeartbeat(hb common.Heartbeat) {
	s.mu.Lock()
	entry, existe := s.executors[hb.Metadata.ID]
	if !existe {
		s.mu.Unlock()
		// Un heartbeat de un desconocido vale como registro (executor que
		// volvio antes de que lo expiremos del todo).
		s.RegisterExecutor(hb.Metadata)
		return
	}
	entry.metadata = hb.Metadata
	entry.slots = hb.Metadata.AvailableTaskSlots
	entry.lastHeartbeat = time.Now()
	s.mu.Unlock()
}

// AvailableExecutors devuelve los executors vivos con capacidad libre, en
// orden de registro, con el conteo de slots actual.
func (s *State) AvailableExecutors() []common.ExecutorMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ahora := time.Now()
	disponibles := make([]common.ExecutorMetadata, 0)
	for _, id := range s.order {
		entry, ok := s.executors[id]
		if !ok {
			continue
		}
		if entry.slots == 0 || ahora.Sub(entry.lastHeartbeat) >= ExecutorTimeout {
			continue
		}
		meta := entry.metadata
		meta.AvailableTaskSlots = entry.slots
		disponibles = append(disponibles, meta)
	}
	return disponibles
}

// ApplyDelta ajusta los slots de un executor. Deltas negativos consumen
// (despacho optimista), positivos devuelven (rollback).
func (s *State) ApplyDelta(executorID string, delta int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.executors[executorID]
	if !ok {
		return fmt.Errorf("%w: %s", common.ErrUnknownExecutor, executorID)
	}
	nuevos := int64(entry.slots) + int64(delta)
	if nuevos < 0 {
		nuevos = 0
	}
	entry.slots = uint32(nuevos)
	return nil
}

// ExpireDeadExecutors saca del pool a los que dejaron de latir y devuelve
// sus IDs.
func (s *State) ExpireDeadExecutors() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ahora := time.Now()
	var muertos []string
	vivos := s.order[:0]
	for _, id := range s.order {
		entry, ok := s.executors[id]
		if !ok {
			continue
		}
		if ahora.Sub(entry.lastHeartbeat) >= ExecutorTimeout {
			muertos = append(muertos, id)
			delete(s.executors, id)
			log.Printf("[Scheduler] Executor %s declarado MUERTO (timeout)", id)
			continue
		}
		vivos = append(vivos, id)
	}
	s.order = vivos
	return muertos
}

// FetchTaskAssignment reparte las tareas pendientes del job en round-robin
// sobre los executors dados, acotado por los slots de cada uno. La lista
// resultante es paralela a executors.
//
// Invariante que el despacho explota: los executors llegan pre-filtrados
// con slots > 0, y el reparto entrega de a una tarea por pasada en orden;
// si la cola se agota y un executor queda en cero, todos los que siguen en
// la lista tambien quedan en cero.
func (s *State) FetchTaskAssignment(executors []common.ExecutorMetadata, jobID string) [][]common.TaskDefinition {
	asignadas := make([][]common.TaskDefinition, len(executors))
	libres := make([]uint32, len(executors))
	for i, e := range executors {
		libres[i] = e.AvailableTaskSlots
	}

	for {
		progreso := false
		for i := range executors {
			if libres[i] == 0 {
				continue
			}
			task, ok := s.Store.DequeuePendingTask(jobID)
			if !ok {
				return asignadas
			}
			asignadas[i] = append(asignadas[i], task)
			libres[i]--
			progreso = true
		}
		if !progreso {
			return asignadas
		}
	}
}
