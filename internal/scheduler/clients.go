package scheduler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"mini-fusion/internal/common"
)

// TaskLauncher es lo que el round de ofertas necesita de un cliente de
// executor. Interfaz chica para poder falsear el despacho en tests.
type TaskLauncher interface {
	LaunchTasks(tasks []common.TaskDefinition) error
}

// ExecutorClient habla con el API HTTP de un executor.
type ExecutorClient struct {
	addr string
	http *http.Client
}

func NewExecutorClient(addr string) *ExecutorClient {
	return &ExecutorClient{
		addr: addr,
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

// LaunchTasks manda el lote ordenado de tareas por POST /tasks.
func (c *ExecutorClient) LaunchTasks(tasks []common.TaskDefinition) error {
	body, err := json.Marshal(common.LaunchTaskRequest{Tasks: tasks})
	if err != nil {
		return err
	}
	url := fmt.Sprintf("http://%s/tasks", c.addr)
	resp, err := c.http.Post(url, "application/json", bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("no se pudo despachar a %s: %w", c.addr, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		detalle, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("executor %s devolvio status %d: %s", c.addr, resp.StatusCode, string(detalle))
	}
	return nil
}

// ExecutorClients cachea un cliente por executor bajo un RWMutex: lookup
// con read lock, creacion perezosa con write lock. Junto con el
// confinamiento de los rounds al loop de consultas, este mapa es el punto
// de serializacion documentado para las carreras de capacidad.
type ExecutorClients struct {
	mu      sync.RWMutex
	clients map[string]TaskLauncher

	// Factory reemplazable en tests.
	NewClient func(meta common.ExecutorMetadata) TaskLauncher
}

func NewExecutorClients() *ExecutorClients {
	return &ExecutorClients{
		clients: make(map[string]TaskLauncher),
		NewClient: func(meta common.ExecutorMetadata) TaskLauncher {
			return NewExecutorClient(meta.Addr())
		},
	}
}

// Get devuelve el cliente cacheado del executor, creandolo si es la
// primera vez que lo vemos.
func (c *ExecutorClients) Get(meta common.ExecutorMetadata) TaskLauncher {
	c.mu.RLock()
	cliente, ok := c.clients[meta.ID]
	c.mu.RUnlock()
	if ok {
		return cliente
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cliente, ok := c.clients[meta.ID]; ok {
		return cliente
	}
	cliente = c.NewClient(meta)
	c.clients[meta.ID] = cliente
	return cliente
}

// Remove descarta el cliente de un executor dado de baja.
func (c *ExecutorClients) Remove(executorID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.clients, executorID)
}
