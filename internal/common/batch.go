package common

import "fmt"

// Tipos de columna soportados en el schema. El computo columnar no es
// responsabilidad de esta capa; solo necesitamos poder particionar por hash
// y mover filas por la red.
const (
	TypeString = "string"
	TypeInt64  = "int64"
	TypeFloat  = "float64"
)

type Field struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type Schema struct {
	Fields []Field `json:"fields"`
}

// ColumnIndex devuelve la posicion de la columna o -1 si no existe.
func (s Schema) ColumnIndex(name string) int {
	for i, f := range s.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// RecordBatch es un lote de filas con su schema. Orientado a filas: alcanza
// para shuffle y transporte, los kernels columnares quedan fuera de alcance.
type RecordBatch struct {
	Schema Schema  `json:"schema"`
	Rows   [][]any `json:"rows"`
}

func (b *RecordBatch) NumRows() int {
	return len(b.Rows)
}

// Validate chequea que cada fila tenga tantas celdas como campos el schema.
func (b *RecordBatch) Validate() error {
	width := len(b.Schema.Fields)
	for i, row := range b.Rows {
		if len(row) != width {
			return fmt.Errorf("fila %d tiene %d celdas, el schema define %d", i, len(row), width)
		}
	}
	return nil
}
