// Package executor implementa el runtime de un nodo de computo: recibe
// lotes de tareas shuffle-write del scheduler, las corre acotadas por un
// pool, persiste las particiones bajo su work dir y sirve esas particiones
// por el plano de datos.
package executor

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/panjf2000/ants/v2"

	"mini-fusion/internal/common"
	"mini-fusion/internal/plan"
)

// Executor es el estado del nodo: identidad, directorio de trabajo local y
// el pool que acota cuantas tareas corren a la vez. Los slots libres que
// reporta en cada heartbeat salen directo del pool.
type Executor struct {
	ID      string
	Host    string
	Port    int
	WorkDir string

	pool *ants.Pool
}

// New crea el executor con un pool de tamaño fijo. El work dir es
// configuracion fija de todo el nodo, no algo que viaje en las tareas.
func New(id, host string, port int, workDir string, slots int) (*Executor, error) {
	if workDir == "" {
		return nil, fmt.Errorf("executor %s sin work dir", id)
	}
	pool, err := ants.NewPool(slots, ants.WithPanicHandler(func(v any) {
		log.Printf("[Executor %s] PANIC en una tarea: %v", id, v)
	}))
	if err != nil {
		return nil, fmt.Errorf("no se pudo crear el pool de tareas: %w", err)
	}
	return &Executor{
		ID:      id,
		Host:    host,
		Port:    port,
		WorkDir: workDir,
		pool:    pool,
	}, nil
}

func (e *Executor) Release() {
	e.pool.Release()
}

// AvailableSlots son los lugares libres del pool en este instante.
func (e *Executor) AvailableSlots() uint32 {
	libres := e.pool.Free()
	if libres < 0 {
		return 0
	}
	return uint32(libres)
}

// Metadata arma la foto actual del executor para registro y heartbeats.
func (e *Executor) Metadata(dataPort int) common.ExecutorMetadata {
	return common.ExecutorMetadata{
		ID:                 e.ID,
		Host:               e.Host,
		Port:               e.Port,
		DataPort:           dataPort,
		AvailableTaskSlots: e.AvailableSlots(),
	}
}

// Submit encola la tarea en el pool. Bloquea si el pool esta lleno.
func (e *Executor) Submit(tarea func()) error {
	return e.pool.Submit(tarea)
}

// ExecuteShuffleWrite corre exactamente una particion de una etapa
// shuffle-write. El nodo tiene que ser shuffle-write: cualquier otro kind
// es una violacion de contrato del que armo la tarea, y se corta antes de
// tocar el filesystem. El nodo se re-liga al work dir local: las rutas de
// salida siempre quedan bajo el storage de ESTE executor, venga de donde
// venga el plan.
func (e *Executor) ExecuteShuffleWrite(ctx context.Context, task common.TaskDefinition) ([]common.ShuffleWritePartition, error) {
	node, err := plan.Decode(task.Plan)
	if err != nil {
		return nil, fmt.Errorf("tarea %s: %w", task.Key(), err)
	}

	sw, ok := node.(*plan.ShuffleWriteNode)
	if !ok {
		return nil, fmt.Errorf("%w: la tarea %s trajo un nodo %s, se esperaba %s",
			common.ErrNotShuffleWrite, task.Key(), node.Kind(), plan.KindShuffleWrite)
	}

	inicio := time.Now()
	salidas, err := sw.WithWorkDir(e.WorkDir).ExecuteWrite(ctx, task.JobID, task.PartitionID)
	if err != nil {
		return nil, err
	}
	log.Printf("[Executor %s] Tarea %s OK: %d archivos en %v", e.ID, task.Key(), len(salidas), time.Since(inicio))
	return salidas, nil
}
