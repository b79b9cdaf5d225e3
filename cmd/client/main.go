package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	"mini-fusion/internal/client"
)

// CLI minimo: somete un job desde un JSON o trae una particion de shuffle
// de un executor y muestra lo que llego.
func main() {
	submit := flag.String("submit", "", "Ruta a un job JSON para someter al scheduler")
	schedulerURL := flag.String("scheduler", "http://localhost:8080", "URL del scheduler")

	fetchAddr := flag.String("fetch", "", "host:port del plano de datos de un executor")
	jobID := flag.String("job", "", "Job de la particion a traer")
	stageID := flag.String("stage", "stage-0", "Etapa de la particion")
	partition := flag.Int("partition", 0, "Particion a traer")
	path := flag.String("path", "", "Ruta reportada de la particion")
	flag.Parse()

	switch {
	case *submit != "":
		someterJob(*schedulerURL, *submit)
	case *fetchAddr != "":
		traerParticion(*fetchAddr, *jobID, *stageID, *partition, *path)
	default:
		fmt.Fprintln(os.Stderr, "uso: client -submit job.json | client -fetch host:port -job ID -path RUTA")
		os.Exit(2)
	}
}

func someterJob(schedulerURL, rutaJob string) {
	data, err := os.ReadFile(rutaJob)
	if err != nil {
		log.Fatalf("[Client] No se pudo leer %s: %v", rutaJob, err)
	}
	resp, err := http.Post(schedulerURL+"/jobs", "application/json", bytes.NewBuffer(data))
	if err != nil {
		log.Fatalf("[Client] No se pudo conectar con el scheduler: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("[Client] El scheduler devolvio %d: %s", resp.StatusCode, string(body))
	}
	fmt.Println(string(body))
}

func traerParticion(addr, jobID, stageID string, partition int, path string) {
	c, err := client.Connect(addr)
	if err != nil {
		log.Fatalf("[Client] %v", err)
	}
	defer c.Close()

	stream, err := c.FetchPartition(jobID, stageID, partition, path)
	if err != nil {
		log.Fatalf("[Client] Fetch fallido: %v", err)
	}

	schemaJSON, _ := json.Marshal(stream.Schema())
	fmt.Printf("schema: %s\n", schemaJSON)

	batches, err := stream.Drain()
	if err != nil {
		log.Fatalf("[Client] Stream cortado: %v", err)
	}
	filas := 0
	for _, b := range batches {
		for _, fila := range b.Rows {
			filaJSON, _ := json.Marshal(fila)
			fmt.Println(string(filaJSON))
			filas++
		}
	}
	fmt.Printf("%d batches, %d filas\n", len(batches), filas)
}
