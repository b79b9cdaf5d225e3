package common

// ShuffleWritePartition describe un archivo de salida producido por una
// tarea shuffle-write: la ruta local en el executor y sus estadisticas.
type ShuffleWritePartition struct {
	PartitionID int    `json:"partition_id"` // particion de SALIDA (0..N-1)
	Path        string `json:"path"`
	NumBatches  int64  `json:"num_batches"`
	NumRows     int64  `json:"num_rows"`
	NumBytes    int64  `json:"num_bytes"`
}
