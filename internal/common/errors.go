package common

import "errors"

// Errores con nombre que cruzan paquetes. Los errores de transporte y de
// protocolo de stream viven en wire/client; aca van los de contrato.
var (
	// ErrNotShuffleWrite: llego un nodo de plan que no es shuffle-write al
	// executor. Es una violacion de contrato del que armo la tarea, no una
	// condicion recuperable.
	ErrNotShuffleWrite = errors.New("el nodo de plan no es shuffle-write")

	// ErrUnknownExecutor: se pidio despachar a un executor no registrado.
	ErrUnknownExecutor = errors.New("executor desconocido")
)
