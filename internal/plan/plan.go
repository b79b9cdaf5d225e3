// Package plan modela el fragmento de plan fisico que viaja dentro de una
// tarea. Para esta capa el plan es casi opaco: solo necesitamos un tipo
// suma cerrado sobre los kinds de nodo, para que el chequeo "esto es un
// shuffle-write" sea un switch y no un cast que puede fallar en runtime.
package plan

import (
	"context"
	"encoding/json"
	"fmt"

	"mini-fusion/internal/common"
)

// Kinds de nodo soportados. El envelope JSON lleva el tag en "kind".
const (
	KindMemoryScan   = "memory_scan"
	KindShuffleWrite = "shuffle_write"
)

// Node es un nodo de plan fisico decodificado.
type Node interface {
	Kind() string
	OutputSchema() common.Schema
}

// BatchSource es un nodo que sabe producir los batches de una particion de
// entrada. El shuffle-write lo exige de su hijo.
type BatchSource interface {
	Node
	Batches(ctx context.Context, partition int) ([]common.RecordBatch, error)
}

// envelope es el sobre JSON etiquetado: exactamente un campo poblado segun
// el kind.
type envelope struct {
	Kind         string            `json:"kind"`
	MemoryScan   *MemoryScanNode   `json:"memory_scan,omitempty"`
	ShuffleWrite *shuffleWriteJSON `json:"shuffle_write,omitempty"`
}

type shuffleWriteJSON struct {
	StageID      string            `json:"stage_id"`
	Child        json.RawMessage   `json:"child"`
	Partitioning *HashPartitioning `json:"partitioning,omitempty"`
}

// Encode serializa un nodo (recursivamente) al envelope etiquetado.
func Encode(node Node) ([]byte, error) {
	switch n := node.(type) {
	case *MemoryScanNode:
		return json.Marshal(envelope{Kind: KindMemoryScan, MemoryScan: n})
	case *ShuffleWriteNode:
		child, err := Encode(n.Child)
		if err != nil {
			return nil, err
		}
		return json.Marshal(envelope{
			Kind: KindShuffleWrite,
			ShuffleWrite: &shuffleWriteJSON{
				StageID:      n.StageID,
				Child:        child,
				Partitioning: n.Partitioning,
			},
		})
	default:
		return nil, fmt.Errorf("kind de nodo no serializable: %T", node)
	}
}

// Decode reconstruye un nodo desde el envelope. Un kind desconocido es un
// error con nombre, nunca un nil silencioso.
func Decode(data []byte) (Node, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("plan ilegible: %w", err)
	}
	switch env.Kind {
	case KindMemoryScan:
		if env.MemoryScan == nil {
			return nil, fmt.Errorf("envelope %s sin payload", env.Kind)
		}
		return env.MemoryScan, nil
	case KindShuffleWrite:
		if env.ShuffleWrite == nil {
			return nil, fmt.Errorf("envelope %s sin payload", env.Kind)
		}
		child, err := Decode(env.ShuffleWrite.Child)
		if err != nil {
			return nil, err
		}
		return &ShuffleWriteNode{
			StageID:      env.ShuffleWrite.StageID,
			Child:        child,
			Partitioning: env.ShuffleWrite.Partitioning,
		}, nil
	default:
		return nil, fmt.Errorf("kind de nodo desconocido: %q", env.Kind)
	}
}
