// Package wire define el protocolo binario del plano de datos.
//
// Formato:
//
//	[Header (5 bytes)] + [Body (JSON)]
//
// Header:
//   - OpCode (1 byte): tipo de mensaje
//   - Length (4 bytes): tamaño del body, uint32 Big-Endian
//
// Un stream de particion valido es siempre: un frame OpSchema, cero o mas
// frames OpRecordBatch, y un frame OpStreamEnd. Los archivos de shuffle en
// disco usan exactamente la misma secuencia de frames (sin el OpStreamEnd),
// asi el servidor de datos puede relayarlos sin re-encodear.
package wire

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// OpCode identifica el tipo de frame.
type OpCode uint8

const (
	// Cliente -> servidor
	OpDoGet OpCode = 1

	// Servidor -> cliente
	OpSchema      OpCode = 10
	OpRecordBatch OpCode = 11
	OpStreamEnd   OpCode = 12
	OpError       OpCode = 13
)

// Header es el encabezado fijo de 5 bytes.
type Header struct {
	OpCode OpCode
	Length uint32
}

const HeaderSize = 5

// WriteMessage escribe un frame completo (header + body JSON).
func WriteMessage(w io.Writer, op OpCode, body any) error {
	var bodyBytes []byte
	var err error
	if body != nil {
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("no se pudo serializar el body: %w", err)
		}
	}

	header := make([]byte, HeaderSize)
	header[0] = byte(op)
	binary.BigEndian.PutUint32(header[1:], uint32(len(bodyBytes)))
	if _, err := w.Write(header); err != nil {
		return err
	}

	if len(bodyBytes) > 0 {
		if _, err := w.Write(bodyBytes); err != nil {
			return err
		}
	}
	return nil
}

// ReadHeader lee y decodifica el encabezado del proximo frame.
func ReadHeader(r io.Reader) (Header, error) {
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Header{}, err
	}
	return Header{
		OpCode: OpCode(buf[0]),
		Length: binary.BigEndian.Uint32(buf[1:]),
	}, nil
}

// ReadBody decodifica el body del frame en v, sin leer de mas.
func ReadBody(r io.Reader, length uint32, v any) error {
	if length == 0 {
		return nil
	}
	lr := io.LimitReader(r, int64(length))
	decoder := json.NewDecoder(lr)
	if err := decoder.Decode(v); err != nil {
		return err
	}
	// Descartar lo que el decoder haya dejado buffereado de menos (bodies
	// con whitespace final); el proximo ReadHeader depende de quedar
	// alineados al byte exacto.
	_, err := io.Copy(io.Discard, lr)
	return err
}
