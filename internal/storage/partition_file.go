package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"mini-fusion/internal/common"
	"mini-fusion/internal/wire"
)

// Los archivos de shuffle usan la misma secuencia de frames que el stream
// del plano de datos: un OpSchema seguido de cero o mas OpRecordBatch. Asi
// el servidor de particiones lee y reenvia sin tocar el formato.

// PartitionFileStats son las estadisticas acumuladas de un archivo escrito.
type PartitionFileStats struct {
	NumBatches int64
	NumRows    int64
	NumBytes   int64
}

// PartitionFileWriter escribe batches de a uno y lleva las estadisticas.
type PartitionFileWriter struct {
	f     *os.File
	stats PartitionFileStats
}

// CreatePartitionFile crea el archivo (y sus directorios) y escribe el
// frame de schema. El schema queda fijo para todo el archivo.
func CreatePartitionFile(path string, schema common.Schema) (*PartitionFileWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("no se pudo crear el directorio de %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("no se pudo crear %s: %w", path, err)
	}
	msg := wire.SchemaMsg{Schema: schema, Format: wire.FormatVersion}
	if err := wire.WriteMessage(f, wire.OpSchema, msg); err != nil {
		f.Close()
		return nil, err
	}
	return &PartitionFileWriter{f: f}, nil
}

// WriteBatch agrega un frame de datos al archivo.
func (w *PartitionFileWriter) WriteBatch(batch *common.RecordBatch) error {
	if err := wire.WriteMessage(w.f, wire.OpRecordBatch, wire.BatchMsg{Rows: batch.Rows}); err != nil {
		return err
	}
	w.stats.NumBatches++
	w.stats.NumRows += int64(batch.NumRows())
	return nil
}

// Close cierra el archivo y devuelve las estadisticas finales. NumBytes es
// el tamaño real en disco, incluyendo el frame de schema.
func (w *PartitionFileWriter) Close() (PartitionFileStats, error) {
	info, statErr := w.f.Stat()
	if statErr == nil {
		w.stats.NumBytes = info.Size()
	}
	if err := w.f.Close(); err != nil {
		return w.stats, err
	}
	return w.stats, statErr
}

// PartitionFileReader lee un archivo de particion batch por batch.
type PartitionFileReader struct {
	f      *os.File
	schema common.Schema
}

// OpenPartitionFile abre el archivo y valida el frame inicial de schema.
func OpenPartitionFile(path string) (*PartitionFileReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("no se pudo abrir la particion %s: %w", path, err)
	}
	header, err := wire.ReadHeader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("particion %s sin frame de schema: %w", path, err)
	}
	if header.OpCode != wire.OpSchema {
		f.Close()
		return nil, fmt.Errorf("particion %s: el primer frame es %d, esperaba schema", path, header.OpCode)
	}
	var msg wire.SchemaMsg
	if err := wire.ReadBody(f, header.Length, &msg); err != nil {
		f.Close()
		return nil, fmt.Errorf("particion %s: schema ilegible: %w", path, err)
	}
	return &PartitionFileReader{f: f, schema: msg.Schema}, nil
}

func (r *PartitionFileReader) Schema() common.Schema {
	return r.schema
}

// Next devuelve el proximo batch o io.EOF al terminar el archivo.
func (r *PartitionFileReader) Next() (*common.RecordBatch, error) {
	header, err := wire.ReadHeader(r.f)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, err
	}
	if header.OpCode != wire.OpRecordBatch {
		return nil, fmt.Errorf("frame inesperado %d en medio de la particion", header.OpCode)
	}
	var msg wire.BatchMsg
	if err := wire.ReadBody(r.f, header.Length, &msg); err != nil {
		return nil, err
	}
	return &common.RecordBatch{Schema: r.schema, Rows: msg.Rows}, nil
}

func (r *PartitionFileReader) Close() error {
	return r.f.Close()
}

// ReadPartitionFile carga el archivo entero en memoria. Pensado para tests
// y para el CLI, no para el camino de datos del servidor.
func ReadPartitionFile(path string) (common.Schema, []common.RecordBatch, error) {
	r, err := OpenPartitionFile(path)
	if err != nil {
		return common.Schema{}, nil, err
	}
	defer r.Close()

	var batches []common.RecordBatch
	for {
		b, err := r.Next()
		if errors.Is(err, io.EOF) {
			return r.Schema(), batches, nil
		}
		if err != nil {
			return r.Schema(), nil, err
		}
		batches = append(batches, *b)
	}
}
