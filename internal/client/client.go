// Package client implementa el cliente del plano de datos: pide una
// particion de shuffle ya producida a un executor remoto y la expone como
// una secuencia perezosa de record batches.
package client

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"mini-fusion/internal/common"
	"mini-fusion/internal/wire"
)

// ErrNoSchema: el stream termino o arranco con cualquier cosa que no sea
// el frame de schema. Es el invariante del protocolo, no se negocia.
var ErrNoSchema = errors.New("no se recibio el schema del servidor")

const dialTimeout = 5 * time.Second

// Client es una conexion al servidor de particiones de un executor. La
// conexion se establece al construir: si el executor no esta, fallamos ya,
// con la direccion en el error.
//
// Un Client soporta un fetch a la vez: el stream es perezoso sobre la misma
// conexion, asi que hay que agotarlo (o cerrar el cliente) antes del
// siguiente FetchPartition.
type Client struct {
	addr string
	conn net.Conn
}

// Connect disca al servidor de particiones. La falla de conexion nombra la
// direccion destino.
func Connect(addr string) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("no se pudo conectar al executor en %s: %w", addr, err)
	}
	return &Client{addr: addr, conn: conn}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// FetchPartition arma el ticket fetch_partition, lo manda como accion
// generica DoGet y devuelve el stream de batches. El PRIMER frame de la
// respuesta tiene que ser el schema; cualquier otra cosa es error de
// protocolo.
func (c *Client) FetchPartition(jobID, stageID string, partitionID int, path string) (*BatchStream, error) {
	ticket := wire.Ticket{
		Action: wire.ActionFetchPartition,
		FetchPartition: &wire.FetchPartition{
			JobID:       jobID,
			StageID:     stageID,
			PartitionID: partitionID,
			Path:        path,
		},
	}
	if err := wire.WriteMessage(c.conn, wire.OpDoGet, ticket); err != nil {
		return nil, fmt.Errorf("no se pudo enviar el ticket a %s: %w", c.addr, err)
	}

	header, err := wire.ReadHeader(c.conn)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrNoSchema
		}
		return nil, fmt.Errorf("leyendo la respuesta de %s: %w", c.addr, err)
	}

	switch header.OpCode {
	case wire.OpSchema:
		var msg wire.SchemaMsg
		if err := wire.ReadBody(c.conn, header.Length, &msg); err != nil {
			return nil, fmt.Errorf("%w: schema ilegible: %v", ErrNoSchema, err)
		}
		return &BatchStream{conn: c.conn, schema: msg.Schema, format: msg.Format}, nil
	case wire.OpError:
		var msg wire.ErrorMsg
		if err := wire.ReadBody(c.conn, header.Length, &msg); err != nil {
			return nil, fmt.Errorf("leyendo el error del servidor: %v", err)
		}
		return nil, fmt.Errorf("el servidor rechazo el fetch: %s", msg.Error)
	default:
		return nil, fmt.Errorf("%w: llego el frame %d primero", ErrNoSchema, header.OpCode)
	}
}

// BatchStream es la secuencia perezosa de batches de una particion: solo
// hacia adelante, no reiniciable, finita. El schema resuelto se puede
// consultar en cualquier momento, sin importar cuanto se consumio.
type BatchStream struct {
	conn   net.Conn
	schema common.Schema
	format string

	terminal error // io.EOF en fin limpio, otro error si el stream se corto
}

func (s *BatchStream) Schema() common.Schema { return s.schema }

// Format devuelve la metadata de formato que vino con el schema.
func (s *BatchStream) Format() string { return s.format }

// Next devuelve el proximo batch, decodificado contra el schema del stream.
// Termina con io.EOF; un error de decodificacion sale como elemento de
// error y deja el stream terminado (los errores no se pisan en silencio).
func (s *BatchStream) Next() (*common.RecordBatch, error) {
	if s.terminal != nil {
		return nil, s.terminal
	}

	header, err := wire.ReadHeader(s.conn)
	if err != nil {
		// Corte de conexion sin frame de fin: truncamiento, no fin limpio.
		s.terminal = fmt.Errorf("stream cortado sin frame de fin: %w", err)
		return nil, s.terminal
	}

	switch header.OpCode {
	case wire.OpRecordBatch:
		var msg wire.BatchMsg
		if err := wire.ReadBody(s.conn, header.Length, &msg); err != nil {
			s.terminal = fmt.Errorf("batch ilegible: %w", err)
			return nil, s.terminal
		}
		return &common.RecordBatch{Schema: s.schema, Rows: msg.Rows}, nil
	case wire.OpStreamEnd:
		s.terminal = io.EOF
		return nil, io.EOF
	case wire.OpError:
		var msg wire.ErrorMsg
		if err := wire.ReadBody(s.conn, header.Length, &msg); err != nil {
			s.terminal = fmt.Errorf("leyendo el error del servidor: %v", err)
		} else {
			s.terminal = fmt.Errorf("el servidor corto el stream: %s", msg.Error)
		}
		return nil, s.terminal
	default:
		s.terminal = fmt.Errorf("frame inesperado %d en medio del stream", header.OpCode)
		return nil, s.terminal
	}
}

// Drain consume lo que quede del stream y devuelve todos los batches. Util
// para consumidores chicos (CLI, tests).
func (s *BatchStream) Drain() ([]common.RecordBatch, error) {
	var batches []common.RecordBatch
	for {
		b, err := s.Next()
		if errors.Is(err, io.EOF) {
			return batches, nil
		}
		if err != nil {
			return batches, err
		}
		batches = append(batches, *b)
	}
}
