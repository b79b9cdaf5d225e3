package plan

import (
	"context"
	"fmt"
	"hash/fnv"
	"path/filepath"
	"sort"
	"strconv"

	"mini-fusion/internal/common"
	"mini-fusion/internal/storage"
)

// HashPartitioning reparte las filas de salida en N buckets segun el hash
// de las columnas clave.
type HashPartitioning struct {
	Columns    []string `json:"columns"`
	Partitions int      `json:"partitions"`
}

// ShuffleWriteNode ejecuta su hijo y persiste la salida particionada bajo
// el work dir del executor. El work dir NUNCA viaja por la red: lo liga el
// executor que ejecuta la tarea, via WithWorkDir.
type ShuffleWriteNode struct {
	StageID      string
	Child        Node
	Partitioning *HashPartitioning

	workDir string
}

func (n *ShuffleWriteNode) Kind() string { return KindShuffleWrite }

func (n *ShuffleWriteNode) OutputSchema() common.Schema { return n.Child.OutputSchema() }

// WithWorkDir devuelve una copia del nodo ligada al directorio local del
// executor. Las rutas de salida quedan siempre bajo ese directorio, venga
// de donde venga el plan.
func (n *ShuffleWriteNode) WithWorkDir(dir string) *ShuffleWriteNode {
	copia := *n
	copia.workDir = dir
	return &copia
}

// ExecuteWrite corre la particion de entrada indicada y escribe la salida.
// Devuelve un descriptor por archivo generado, ordenado por particion de
// salida.
func (n *ShuffleWriteNode) ExecuteWrite(ctx context.Context, jobID string, partition int) ([]common.ShuffleWritePartition, error) {
	if n.workDir == "" {
		return nil, fmt.Errorf("nodo shuffle-write sin work dir, falta WithWorkDir")
	}
	source, ok := n.Child.(BatchSource)
	if !ok {
		return nil, fmt.Errorf("el hijo del shuffle-write (%s) no produce batches", n.Child.Kind())
	}

	batches, err := source.Batches(ctx, partition)
	if err != nil {
		return nil, err
	}

	stageDir := filepath.Join(n.workDir, jobID, n.StageID)
	if n.Partitioning == nil {
		return n.writeSingle(stageDir, partition, batches)
	}
	return n.writeHashPartitioned(stageDir, partition, batches)
}

// writeSingle: sin particionamiento de salida, un solo archivo data.batch
// bajo el directorio de la particion de entrada.
func (n *ShuffleWriteNode) writeSingle(stageDir string, partition int, batches []common.RecordBatch) ([]common.ShuffleWritePartition, error) {
	path := filepath.Join(stageDir, strconv.Itoa(partition), "data.batch")
	w, err := storage.CreatePartitionFile(path, n.OutputSchema())
	if err != nil {
		return nil, err
	}
	for i := range batches {
		if err := w.WriteBatch(&batches[i]); err != nil {
			w.Close()
			return nil, err
		}
	}
	stats, err := w.Close()
	if err != nil {
		return nil, err
	}
	return []common.ShuffleWritePartition{{
		PartitionID: partition,
		Path:        path,
		NumBatches:  stats.NumBatches,
		NumRows:     stats.NumRows,
		NumBytes:    stats.NumBytes,
	}}, nil
}

// writeHashPartitioned: un archivo por bucket de salida con filas, en
// <stage>/<bucket>/data-<particion de entrada>.batch.
func (n *ShuffleWriteNode) writeHashPartitioned(stageDir string, partition int, batches []common.RecordBatch) ([]common.ShuffleWritePartition, error) {
	numOut := n.Partitioning.Partitions
	if numOut <= 0 {
		return nil, fmt.Errorf("particionamiento hash con %d particiones", numOut)
	}
	schema := n.OutputSchema()

	keyIdx := make([]int, 0, len(n.Partitioning.Columns))
	for _, col := range n.Partitioning.Columns {
		idx := schema.ColumnIndex(col)
		if idx < 0 {
			return nil, fmt.Errorf("columna de particionamiento %q no esta en el schema", col)
		}
		keyIdx = append(keyIdx, idx)
	}

	buckets := make([][][]any, numOut)
	for _, batch := range batches {
		for _, row := range batch.Rows {
			out := hashRow(row, keyIdx, numOut)
			buckets[out] = append(buckets[out], row)
		}
	}

	var salidas []common.ShuffleWritePartition
	fileName := fmt.Sprintf("data-%d.batch", partition)
	for out := 0; out < numOut; out++ {
		if len(buckets[out]) == 0 {
			continue // los writers se crean recien con la primera fila
		}
		path := filepath.Join(stageDir, strconv.Itoa(out), fileName)
		w, err := storage.CreatePartitionFile(path, schema)
		if err != nil {
			return nil, err
		}
		batch := common.RecordBatch{Schema: schema, Rows: buckets[out]}
		if err := w.WriteBatch(&batch); err != nil {
			w.Close()
			return nil, err
		}
		stats, err := w.Close()
		if err != nil {
			return nil, err
		}
		salidas = append(salidas, common.ShuffleWritePartition{
			PartitionID: out,
			Path:        path,
			NumBatches:  stats.NumBatches,
			NumRows:     stats.NumRows,
			NumBytes:    stats.NumBytes,
		})
	}
	sort.Slice(salidas, func(i, j int) bool { return salidas[i].PartitionID < salidas[j].PartitionID })
	return salidas, nil
}

// hashRow aplica FNV-1a sobre la representacion de las columnas clave.
func hashRow(row []any, keyIdx []int, numOut int) int {
	h := fnv.New32a()
	for _, idx := range keyIdx {
		fmt.Fprintf(h, "%v|", row[idx])
	}
	return int(h.Sum32() % uint32(numOut))
}
