package client

import (
	"encoding/binary"
	"errors"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mini-fusion/internal/common"
	"mini-fusion/internal/wire"
)

// servidorFalso levanta un listener que atiende UNA conexion: lee el ticket
// y le pasa la conexion al guion del test.
func servidorFalso(t *testing.T, guion func(conn net.Conn, ticket wire.Ticket)) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		header, err := wire.ReadHeader(conn)
		if err != nil || header.OpCode != wire.OpDoGet {
			return
		}
		var ticket wire.Ticket
		if err := wire.ReadBody(conn, header.Length, &ticket); err != nil {
			return
		}
		guion(conn, ticket)
	}()

	return ln.Addr().String()
}

func esquemaDePrueba() common.Schema {
	return common.Schema{Fields: []common.Field{
		{Name: "clave", Type: common.TypeString},
		{Name: "valor", Type: common.TypeInt64},
	}}
}

func TestConnect_FallaNombrandoLaDireccion(t *testing.T) {
	// Puerto libre garantizado: abrimos y cerramos un listener.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	_, err = Connect(addr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), addr)
}

func TestFetchPartition_StreamVacioEsErrorDeProtocolo(t *testing.T) {
	addr := servidorFalso(t, func(conn net.Conn, _ wire.Ticket) {
		// Cero mensajes: cerrar sin responder nada.
	})

	c, err := Connect(addr)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.FetchPartition("job-1", "stage-1", 0, "/tmp/x")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoSchema)
}

func TestFetchPartition_PrimerFrameNoEsSchema(t *testing.T) {
	addr := servidorFalso(t, func(conn net.Conn, _ wire.Ticket) {
		wire.WriteMessage(conn, wire.OpRecordBatch, wire.BatchMsg{Rows: [][]any{{"x", float64(1)}}})
	})

	c, err := Connect(addr)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.FetchPartition("job-1", "stage-1", 0, "/tmp/x")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoSchema)
}

func TestFetchPartition_SchemaYBatchesEnOrden(t *testing.T) {
	ticketCh := make(chan wire.Ticket, 1)
	addr := servidorFalso(t, func(conn net.Conn, ticket wire.Ticket) {
		ticketCh <- ticket
		wire.WriteMessage(conn, wire.OpSchema, wire.SchemaMsg{Schema: esquemaDePrueba(), Format: wire.FormatVersion})
		wire.WriteMessage(conn, wire.OpRecordBatch, wire.BatchMsg{Rows: [][]any{{"a", float64(1)}}})
		wire.WriteMessage(conn, wire.OpRecordBatch, wire.BatchMsg{Rows: [][]any{{"b", float64(2)}, {"c", float64(3)}}})
		wire.WriteMessage(conn, wire.OpStreamEnd, nil)
	})

	c, err := Connect(addr)
	require.NoError(t, err)
	defer c.Close()

	stream, err := c.FetchPartition("job-1", "stage-1", 3, "/datos/p3")
	require.NoError(t, err)

	// El schema se consulta antes de consumir nada.
	assert.Equal(t, esquemaDePrueba(), stream.Schema())
	assert.Equal(t, wire.FormatVersion, stream.Format())

	batches, err := stream.Drain()
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Equal(t, 1, batches[0].NumRows())
	assert.Equal(t, 2, batches[1].NumRows())
	assert.Equal(t, esquemaDePrueba(), batches[0].Schema, "cada batch se decodifica contra el schema del stream")

	// Despues de agotar el stream, Next sigue devolviendo io.EOF.
	_, err = stream.Next()
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, esquemaDePrueba(), stream.Schema())

	// El ticket viajo como accion generica con el payload tipado.
	ticketRecibido := <-ticketCh
	assert.Equal(t, wire.ActionFetchPartition, ticketRecibido.Action)
	require.NotNil(t, ticketRecibido.FetchPartition)
	assert.Equal(t, "job-1", ticketRecibido.FetchPartition.JobID)
	assert.Equal(t, 3, ticketRecibido.FetchPartition.PartitionID)
	assert.Equal(t, "/datos/p3", ticketRecibido.FetchPartition.Path)
}

func TestFetchPartition_ErrorDelServidor(t *testing.T) {
	addr := servidorFalso(t, func(conn net.Conn, _ wire.Ticket) {
		wire.WriteMessage(conn, wire.OpError, wire.ErrorMsg{Error: "particion inexistente"})
	})

	c, err := Connect(addr)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.FetchPartition("job-1", "stage-1", 0, "/tmp/x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "particion inexistente")
}

func TestBatchStream_ErrorDeDecodificacionNoSePierde(t *testing.T) {
	addr := servidorFalso(t, func(conn net.Conn, _ wire.Ticket) {
		wire.WriteMessage(conn, wire.OpSchema, wire.SchemaMsg{Schema: esquemaDePrueba(), Format: wire.FormatVersion})
		// Frame de batch con body corrupto, escrito a mano.
		basura := []byte(`{"rows": [[`)
		header := make([]byte, wire.HeaderSize)
		header[0] = byte(wire.OpRecordBatch)
		binary.BigEndian.PutUint32(header[1:], uint32(len(basura)))
		conn.Write(header)
		conn.Write(basura)
		wire.WriteMessage(conn, wire.OpStreamEnd, nil)
	})

	c, err := Connect(addr)
	require.NoError(t, err)
	defer c.Close()

	stream, err := c.FetchPartition("job-1", "stage-1", 0, "/tmp/x")
	require.NoError(t, err)

	_, err = stream.Next()
	require.Error(t, err)
	require.False(t, errors.Is(err, io.EOF), "el error de decodificacion no puede disfrazarse de fin de stream")

	// El stream queda terminado con ese mismo error.
	_, err2 := stream.Next()
	assert.Equal(t, err, err2)
}
