package integration_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mini-fusion/internal/client"
	"mini-fusion/internal/common"
	"mini-fusion/internal/executor"
	"mini-fusion/internal/plan"
	"mini-fusion/internal/scheduler"
	"mini-fusion/internal/storage"
)

// estadoDeJob es la respuesta de GET /jobs/{id}.
type estadoDeJob struct {
	JobID      string                         `json:"job_id"`
	Status     string                         `json:"status"`
	Pending    int                            `json:"pending"`
	Partitions []common.ShuffleWritePartition `json:"partitions"`
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewBuffer(data))
	require.NoError(t, err)
	return resp
}

// Flujo completo con procesos reales en memoria: scheduler con sus event
// loops, executor con pool y plano de datos, y un client que al final trae
// las particiones de shuffle por TCP.
func TestE2E_ShuffleWriteCompleto(t *testing.T) {
	// Scheduler.
	state := scheduler.NewState(storage.NewJobStore())
	schedServer := scheduler.NewServer(state, scheduler.NewExecutorClients(), 16, 10*time.Millisecond)
	require.NoError(t, schedServer.Start())
	t.Cleanup(schedServer.Stop)
	schedHTTP := httptest.NewServer(schedServer.Router())
	t.Cleanup(schedHTTP.Close)

	// Executor: plano de control + plano de datos sobre el mismo work dir.
	workDir := t.TempDir()
	exec, err := executor.New("executor-e2e", "127.0.0.1", 0, workDir, 2)
	require.NoError(t, err)
	t.Cleanup(exec.Release)

	dataSrv, err := executor.NewDataServer("127.0.0.1:0", workDir, 4)
	require.NoError(t, err)
	go dataSrv.Serve()
	t.Cleanup(dataSrv.Close)

	execServer := executor.NewServer(exec, schedHTTP.URL, dataSrv.Port())
	execHTTP := httptest.NewServer(execServer.Router())
	t.Cleanup(execHTTP.Close)

	// Registro manual: anunciamos el puerto que httptest eligio.
	execURL, err := url.Parse(execHTTP.URL)
	require.NoError(t, err)
	execPort, err := strconv.Atoi(execURL.Port())
	require.NoError(t, err)

	resp := postJSON(t, schedHTTP.URL+"/executors/register", common.ExecutorMetadata{
		ID:                 "executor-e2e",
		Host:               execURL.Hostname(),
		Port:               execPort,
		DataPort:           dataSrv.Port(),
		AvailableTaskSlots: 2,
	})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Job: scan en memoria de 2 particiones bajo un shuffle-write hasheado
	// por producto en 2 buckets.
	schema := common.Schema{Fields: []common.Field{
		{Name: "producto", Type: common.TypeString},
		{Name: "monto", Type: common.TypeFloat},
	}}
	scan := &plan.MemoryScanNode{
		Schema: schema,
		Partitions: [][][]any{
			{{"yerba", 120.5}, {"cafe", 80.0}, {"yerba", 35.0}},
			{{"azucar", 55.0}, {"cafe", 42.5}, {"harina", 18.0}},
		},
	}
	raw, err := plan.Encode(&plan.ShuffleWriteNode{
		StageID:      "stage-0",
		Child:        scan,
		Partitioning: &plan.HashPartitioning{Columns: []string{"producto"}, Partitions: 2},
	})
	require.NoError(t, err)

	resp = postJSON(t, schedHTTP.URL+"/jobs", common.JobRequest{
		Name:       "ventas-e2e",
		StageID:    "stage-0",
		Partitions: 2,
		Plan:       raw,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var alta struct {
		JobID string `json:"job_id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&alta))
	resp.Body.Close()
	require.NotEmpty(t, alta.JobID)

	// Esperar a que las dos tareas se despachen, corran y reporten.
	var estado estadoDeJob
	require.Eventually(t, func() bool {
		r, err := http.Get(schedHTTP.URL + "/jobs/" + alta.JobID)
		if err != nil {
			return false
		}
		defer r.Body.Close()
		if json.NewDecoder(r.Body).Decode(&estado) != nil {
			return false
		}
		return estado.Status == common.JobStatusCompleted
	}, 5*time.Second, 20*time.Millisecond, "el job nunca llego a COMPLETED: %+v", estado)

	require.NotEmpty(t, estado.Partitions)

	// Leer todas las particiones reportadas por el plano de datos y contar
	// las filas: tienen que ser exactamente las 6 de entrada.
	c, err := client.Connect(dataSrv.Addr())
	require.NoError(t, err)
	defer c.Close()

	totalFilas := 0
	for _, p := range estado.Partitions {
		stream, err := c.FetchPartition(alta.JobID, "stage-0", p.PartitionID, p.Path)
		require.NoError(t, err)
		assert.Equal(t, schema, stream.Schema())

		batches, err := stream.Drain()
		require.NoError(t, err)
		for _, b := range batches {
			require.NoError(t, b.Validate())
			totalFilas += b.NumRows()
		}
	}
	assert.Equal(t, 6, totalFilas)
}
