package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"mini-fusion/internal/common"
	"mini-fusion/internal/plan"
)

// Genera un job JSON de ejemplo listo para someter con el client: un scan
// en memoria con filas sinteticas de ventas, envuelto en un shuffle-write
// hasheado por producto.
func main() {
	out := flag.String("out", "data/jobs/ventas.json", "Ruta del job JSON a generar")
	particiones := flag.Int("partitions", 2, "Particiones de entrada del scan")
	filas := flag.Int("rows", 100, "Filas por particion de entrada")
	buckets := flag.Int("buckets", 4, "Particiones de salida del shuffle")
	flag.Parse()

	productos := []string{"yerba", "cafe", "azucar", "harina", "aceite", "arroz"}
	schema := common.Schema{Fields: []common.Field{
		{Name: "producto", Type: common.TypeString},
		{Name: "monto", Type: common.TypeFloat},
	}}

	fmt.Printf("Generando %s ...\n", *out)
	scan := &plan.MemoryScanNode{Schema: schema, Partitions: make([][][]any, *particiones)}
	for p := 0; p < *particiones; p++ {
		for i := 0; i < *filas; i++ {
			scan.Partitions[p] = append(scan.Partitions[p], []any{
				productos[rand.Intn(len(productos))],
				float64(rand.Intn(10000)) / 100,
			})
		}
	}

	raw, err := plan.Encode(&plan.ShuffleWriteNode{
		StageID: "stage-0",
		Child:   scan,
		Partitioning: &plan.HashPartitioning{
			Columns:    []string{"producto"},
			Partitions: *buckets,
		},
	})
	if err != nil {
		fmt.Println("Error codificando el plan:", err)
		os.Exit(1)
	}

	job := common.JobRequest{
		Name:       "ventas-por-producto",
		StageID:    "stage-0",
		Partitions: *particiones,
		Plan:       raw,
	}
	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		fmt.Println("Error serializando el job:", err)
		os.Exit(1)
	}

	os.MkdirAll(filepath.Dir(*out), 0755)
	if err := os.WriteFile(*out, data, 0644); err != nil {
		fmt.Println("Error escribiendo el archivo:", err)
		os.Exit(1)
	}
	fmt.Printf(" Job generado: %d particiones x %d filas, %d buckets de salida.\n", *particiones, *filas, *buckets)
}
