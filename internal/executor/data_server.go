package executor

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"path/filepath"
	"strings"

	"github.com/panjf2000/ants/v2"

	"mini-fusion/internal/storage"
	"mini-fusion/internal/wire"
)

// DataServer es el plano de datos del executor: atiende tickets DoGet y
// streamea particiones de shuffle ya escritas. Los handlers de conexion
// estan acotados por un pool propio, separado del de tareas, para que un
// fetch lento no bloquee computo.
type DataServer struct {
	workDir string
	ln      net.Listener
	pool    *ants.Pool
}

func NewDataServer(addr, workDir string, maxConns int) (*DataServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("no se pudo escuchar en %s: %w", addr, err)
	}
	pool, err := ants.NewPool(maxConns, ants.WithPanicHandler(func(v any) {
		log.Printf("[DataServer] PANIC atendiendo una conexion: %v", v)
	}))
	if err != nil {
		ln.Close()
		return nil, err
	}
	return &DataServer{workDir: workDir, ln: ln, pool: pool}, nil
}

func (s *DataServer) Addr() string {
	return s.ln.Addr().String()
}

// Port devuelve el puerto real (util con addr ":0" en tests).
func (s *DataServer) Port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

// Serve acepta conexiones hasta que el listener se cierre.
func (s *DataServer) Serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		if err := s.pool.Submit(func() { s.handleConn(conn) }); err != nil {
			conn.Close()
		}
	}
}

func (s *DataServer) Close() {
	s.ln.Close()
	s.pool.Release()
}

// handleConn atiende tickets en serie sobre la misma conexion. Cada ticket
// responde un stream completo: schema, batches, fin.
func (s *DataServer) handleConn(conn net.Conn) {
	defer conn.Close()
	for {
		header, err := wire.ReadHeader(conn)
		if err != nil {
			return // conexion cerrada por el cliente
		}
		if header.OpCode != wire.OpDoGet {
			wire.WriteMessage(conn, wire.OpError, wire.ErrorMsg{Error: fmt.Sprintf("opcode inesperado: %d", header.OpCode)})
			return
		}
		var ticket wire.Ticket
		if err := wire.ReadBody(conn, header.Length, &ticket); err != nil {
			wire.WriteMessage(conn, wire.OpError, wire.ErrorMsg{Error: "ticket ilegible"})
			return
		}
		if err := s.serveTicket(conn, ticket); err != nil {
			// El error ya viajo como frame; si ni eso se pudo escribir, la
			// conexion no da para mas.
			return
		}
	}
}

func (s *DataServer) serveTicket(conn net.Conn, ticket wire.Ticket) error {
	if err := ticket.Validate(); err != nil {
		return wire.WriteMessage(conn, wire.OpError, wire.ErrorMsg{Error: err.Error()})
	}

	fetch := ticket.FetchPartition
	path, err := s.resolvePath(fetch.Path)
	if err != nil {
		log.Printf("[DataServer] Fetch rechazado %s/%s/%d: %v", fetch.JobID, fetch.StageID, fetch.PartitionID, err)
		return wire.WriteMessage(conn, wire.OpError, wire.ErrorMsg{Error: err.Error()})
	}

	reader, err := storage.OpenPartitionFile(path)
	if err != nil {
		return wire.WriteMessage(conn, wire.OpError, wire.ErrorMsg{Error: err.Error()})
	}
	defer reader.Close()

	// Invariante del protocolo: el schema va primero, siempre.
	msg := wire.SchemaMsg{Schema: reader.Schema(), Format: wire.FormatVersion}
	if err := wire.WriteMessage(conn, wire.OpSchema, msg); err != nil {
		return err
	}
	for {
		batch, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			wire.WriteMessage(conn, wire.OpError, wire.ErrorMsg{Error: err.Error()})
			return err
		}
		if err := wire.WriteMessage(conn, wire.OpRecordBatch, wire.BatchMsg{Rows: batch.Rows}); err != nil {
			return err
		}
	}
	return wire.WriteMessage(conn, wire.OpStreamEnd, nil)
}

// resolvePath valida que la ruta pedida caiga dentro del work dir. El
// ticket trae rutas que este mismo executor reporto, pero igual no vamos a
// servir cualquier archivo del nodo.
func (s *DataServer) resolvePath(path string) (string, error) {
	workAbs, err := filepath.Abs(s.workDir)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(workAbs, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("la ruta %s esta fuera del work dir del executor", path)
	}
	return abs, nil
}
