package executor

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mini-fusion/internal/common"
	"mini-fusion/internal/plan"
)

func esquemaVentas() common.Schema {
	return common.Schema{Fields: []common.Field{
		{Name: "producto", Type: common.TypeString},
		{Name: "monto", Type: common.TypeFloat},
	}}
}

func scanVentas() *plan.MemoryScanNode {
	return &plan.MemoryScanNode{
		Schema: esquemaVentas(),
		Partitions: [][][]any{
			{
				{"yerba", 120.5},
				{"cafe", 80.0},
				{"yerba", 99.9},
			},
		},
	}
}

func planShuffleWrite(t *testing.T, particiones int) json.RawMessage {
	t.Helper()
	nodo := &plan.ShuffleWriteNode{
		StageID: "stage-0",
		Child:   scanVentas(),
	}
	if particiones > 0 {
		nodo.Partitioning = &plan.HashPartitioning{Columns: []string{"producto"}, Partitions: particiones}
	}
	raw, err := plan.Encode(nodo)
	require.NoError(t, err)
	return raw
}

func nuevoExecutorDePrueba(t *testing.T) *Executor {
	t.Helper()
	exec, err := New("exec-1", "localhost", 8091, t.TempDir(), 2)
	require.NoError(t, err)
	t.Cleanup(exec.Release)
	return exec
}

func archivosBajo(t *testing.T, dir string) []string {
	t.Helper()
	var archivos []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			archivos = append(archivos, path)
		}
		return nil
	})
	require.NoError(t, err)
	return archivos
}

func TestExecuteShuffleWrite_Ejecuta(t *testing.T) {
	exec := nuevoExecutorDePrueba(t)
	task := common.TaskDefinition{
		JobID: "job-1", StageID: "stage-0", PartitionID: 0,
		Plan: planShuffleWrite(t, 2),
	}

	salidas, err := exec.ExecuteShuffleWrite(context.Background(), task)
	require.NoError(t, err)
	require.NotEmpty(t, salidas)

	var filas int64
	for _, out := range salidas {
		// Toda salida queda bajo el work dir de ESTE executor.
		assert.True(t, strings.HasPrefix(out.Path, exec.WorkDir), "salida fuera del work dir: %s", out.Path)
		assert.FileExists(t, out.Path)
		filas += out.NumRows
	}
	assert.EqualValues(t, 3, filas)
}

func TestExecuteShuffleWrite_RechazaOtroTipoDeNodo(t *testing.T) {
	exec := nuevoExecutorDePrueba(t)
	raw, err := plan.Encode(scanVentas())
	require.NoError(t, err)

	task := common.TaskDefinition{
		JobID: "job-1", StageID: "stage-0", PartitionID: 0,
		Plan: raw,
	}

	_, err = exec.ExecuteShuffleWrite(context.Background(), task)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrNotShuffleWrite)
	assert.Contains(t, err.Error(), plan.KindShuffleWrite, "el error tiene que nombrar el kind esperado")

	// Violacion de contrato: ni un archivo escrito.
	assert.Empty(t, archivosBajo(t, exec.WorkDir))
}

func TestExecuteShuffleWrite_PlanIlegible(t *testing.T) {
	exec := nuevoExecutorDePrueba(t)
	task := common.TaskDefinition{
		JobID: "job-1", StageID: "stage-0", PartitionID: 0,
		Plan: json.RawMessage(`{"kind":`),
	}

	_, err := exec.ExecuteShuffleWrite(context.Background(), task)
	require.Error(t, err)
	assert.Empty(t, archivosBajo(t, exec.WorkDir))
}

func TestNew_SinWorkDir(t *testing.T) {
	_, err := New("exec-1", "localhost", 8091, "", 2)
	require.Error(t, err)
}
