package plan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mini-fusion/internal/common"
	"mini-fusion/internal/storage"
)

func esquemaWordCount() common.Schema {
	return common.Schema{Fields: []common.Field{
		{Name: "palabra", Type: common.TypeString},
		{Name: "cuenta", Type: common.TypeInt64},
	}}
}

func scanDePrueba() *MemoryScanNode {
	return &MemoryScanNode{
		Schema: esquemaWordCount(),
		Partitions: [][][]any{
			{
				{"hola", float64(1)},
				{"mundo", float64(2)},
				{"hola", float64(3)},
			},
			{
				{"chau", float64(4)},
			},
		},
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	nodo := &ShuffleWriteNode{
		StageID: "stage-1",
		Child:   scanDePrueba(),
		Partitioning: &HashPartitioning{
			Columns:    []string{"palabra"},
			Partitions: 4,
		},
	}

	raw, err := Encode(nodo)
	require.NoError(t, err)

	decodificado, err := Decode(raw)
	require.NoError(t, err)

	sw, ok := decodificado.(*ShuffleWriteNode)
	require.True(t, ok, "esperaba un *ShuffleWriteNode, obtuve %T", decodificado)
	assert.Equal(t, "stage-1", sw.StageID)
	assert.Equal(t, 4, sw.Partitioning.Partitions)
	assert.Equal(t, KindMemoryScan, sw.Child.Kind())
	assert.Equal(t, esquemaWordCount(), sw.OutputSchema())
}

func TestDecode_KindDesconocido(t *testing.T) {
	_, err := Decode([]byte(`{"kind":"csv_scan"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "csv_scan")
}

func TestMemoryScan_Batching(t *testing.T) {
	scan := scanDePrueba()
	scan.BatchSize = 2

	batches, err := scan.Batches(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Equal(t, 2, batches[0].NumRows())
	assert.Equal(t, 1, batches[1].NumRows())

	_, err = scan.Batches(context.Background(), 5)
	require.Error(t, err, "particion fuera de rango debe fallar")
}

func TestShuffleWrite_SinParticionamiento(t *testing.T) {
	dir := t.TempDir()
	nodo := (&ShuffleWriteNode{StageID: "stage-1", Child: scanDePrueba()}).WithWorkDir(dir)

	salidas, err := nodo.ExecuteWrite(context.Background(), "job-1", 0)
	require.NoError(t, err)
	require.Len(t, salidas, 1)

	out := salidas[0]
	assert.Equal(t, 0, out.PartitionID)
	assert.EqualValues(t, 3, out.NumRows)
	assert.Positive(t, out.NumBytes)

	schema, batches, err := storage.ReadPartitionFile(out.Path)
	require.NoError(t, err)
	assert.Equal(t, esquemaWordCount(), schema)
	require.Len(t, batches, 1)
	assert.Equal(t, 3, batches[0].NumRows())
}

func TestShuffleWrite_HashParticionado(t *testing.T) {
	dir := t.TempDir()
	nodo := (&ShuffleWriteNode{
		StageID: "stage-1",
		Child:   scanDePrueba(),
		Partitioning: &HashPartitioning{
			Columns:    []string{"palabra"},
			Partitions: 2,
		},
	}).WithWorkDir(dir)

	salidas, err := nodo.ExecuteWrite(context.Background(), "job-1", 0)
	require.NoError(t, err)
	require.NotEmpty(t, salidas)

	// Todas las filas con la misma clave caen en el mismo bucket, y las 3
	// filas de entrada aparecen repartidas entre las salidas.
	var totalFilas int64
	vistos := map[string]int{}
	for _, out := range salidas {
		_, batches, err := storage.ReadPartitionFile(out.Path)
		require.NoError(t, err)
		for _, b := range batches {
			totalFilas += int64(b.NumRows())
			for _, fila := range b.Rows {
				palabra := fila[0].(string)
				if prev, ok := vistos[palabra]; ok {
					assert.Equal(t, prev, out.PartitionID, "la clave %q aparecio en dos buckets", palabra)
				}
				vistos[palabra] = out.PartitionID
			}
		}
	}
	assert.EqualValues(t, 3, totalFilas)
}

func TestShuffleWrite_SinWorkDir(t *testing.T) {
	nodo := &ShuffleWriteNode{StageID: "stage-1", Child: scanDePrueba()}
	_, err := nodo.ExecuteWrite(context.Background(), "job-1", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "work dir")
}
