package eventloop

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
)

// EventAction es el conjunto de capacidades que el dueño del loop implementa.
// OnReceive puede re-emitir un evento devolviendo un puntero no nil: ese
// evento vuelve a la cola del MISMO mailbox, o sea que no tiene prioridad
// sobre eventos posteados despues.
type EventAction[E any] interface {
	OnStart()
	OnStop()
	OnReceive(event E) (*E, error)
	OnError(err error)
}

// EventLoop procesa eventos de a uno, en una goroutine dedicada, leyendo de
// un mailbox acotado. Maquina de estados: Created -> Running -> Stopped.
type EventLoop[E any] struct {
	Name     string
	capacity int
	action   EventAction[E]

	mu      sync.Mutex
	mailbox chan E // nil hasta Start()
	quit    chan struct{}
	started atomic.Bool
	stopped atomic.Bool
}

// NewEventLoop construye el loop inactivo. No reserva recursos todavia.
func NewEventLoop[E any](name string, capacity int, action EventAction[E]) *EventLoop[E] {
	return &EventLoop[E]{
		Name:     name,
		capacity: capacity,
		action:   action,
	}
}

// Start crea el mailbox, dispara el hook de arranque y lanza el consumidor.
// Falla si el loop ya fue detenido o si ya estaba corriendo (arrancar dos
// veces un loop vivo es un bug del que llama, no lo toleramos en silencio).
func (l *EventLoop[E]) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stopped.Load() {
		return fmt.Errorf("event loop %s ya detenido", l.Name)
	}
	if l.started.Load() {
		return fmt.Errorf("event loop %s ya iniciado", l.Name)
	}

	l.mailbox = make(chan E, l.capacity)
	l.quit = make(chan struct{})
	l.started.Store(true)

	l.action.OnStart()
	go l.consume()

	log.Printf("[EventLoop %s] Iniciado (mailbox=%d)", l.Name, l.capacity)
	return nil
}

// Stop es idempotente: el hook OnStop corre exactamente una vez. Es
// cooperativo: un evento en pleno procesamiento nunca se interrumpe.
func (l *EventLoop[E]) Stop() {
	if !l.stopped.CompareAndSwap(false, true) {
		return // ya detenido
	}
	l.mu.Lock()
	if l.quit != nil {
		close(l.quit)
	}
	l.mu.Unlock()

	l.action.OnStop()
	log.Printf("[EventLoop %s] Detenido", l.Name)
}

// PostEvent encola un evento. Si el mailbox esta lleno, bloquea al que llama
// (backpressure natural). Postear antes de Start no es error: el evento se
// descarta con un warning, ese es el contrato.
func (l *EventLoop[E]) PostEvent(event E) error {
	l.mu.Lock()
	mailbox, quit := l.mailbox, l.quit
	l.mu.Unlock()

	if mailbox == nil {
		log.Printf("[EventLoop %s] WARN: evento posteado antes de Start, se descarta", l.Name)
		return nil
	}
	if l.stopped.Load() {
		return fmt.Errorf("event loop %s detenido, no se pudo encolar el evento", l.Name)
	}

	select {
	case mailbox <- event:
		return nil
	case <-quit:
		return fmt.Errorf("event loop %s detenido, no se pudo encolar el evento", l.Name)
	}
}

// consume es el unico consumidor del mailbox. El flag de stop se chequea
// solamente entre eventos. Un error del handler nunca mata el loop: se
// rutea a OnError y se sigue con el proximo evento.
func (l *EventLoop[E]) consume() {
	for {
		if l.stopped.Load() {
			return
		}
		select {
		case event := <-l.mailbox:
			reemit, err := l.action.OnReceive(event)
			if err != nil {
				l.action.OnError(err)
				continue
			}
			if reemit != nil {
				// El evento re-emitido va al final de la cola, FIFO puro.
				if postErr := l.PostEvent(*reemit); postErr != nil {
					l.action.OnError(postErr)
				}
			}
		case <-l.quit:
			return
		}
	}
}
