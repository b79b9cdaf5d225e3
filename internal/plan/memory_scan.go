package plan

import (
	"context"
	"fmt"

	"mini-fusion/internal/common"
)

// MemoryScanNode es una fuente de filas ya particionadas en memoria. Es el
// origen de datos mas simple posible: sirve como fixture de tests y como
// stand-in de cualquier scan real, que para esta capa da lo mismo.
type MemoryScanNode struct {
	Schema     common.Schema `json:"schema"`
	Partitions [][][]any     `json:"partitions"` // particion -> filas -> celdas
	BatchSize  int           `json:"batch_size,omitempty"`
}

func (n *MemoryScanNode) Kind() string { return KindMemoryScan }

func (n *MemoryScanNode) OutputSchema() common.Schema { return n.Schema }

// Batches corta la particion pedida en lotes de a lo sumo BatchSize filas
// (1024 por defecto).
func (n *MemoryScanNode) Batches(_ context.Context, partition int) ([]common.RecordBatch, error) {
	if partition < 0 || partition >= len(n.Partitions) {
		return nil, fmt.Errorf("particion %d fuera de rango (el scan tiene %d)", partition, len(n.Partitions))
	}
	size := n.BatchSize
	if size <= 0 {
		size = 1024
	}

	rows := n.Partitions[partition]
	var batches []common.RecordBatch
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		batches = append(batches, common.RecordBatch{Schema: n.Schema, Rows: rows[start:end]})
	}
	return batches, nil
}
