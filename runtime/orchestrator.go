package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"rentchat/contract"
	"rentchat/domain"
	"rentchat/domain/event"
	"rentchat/moderation"
	"rentchat/repositories"
	"rentchat/runtime/workers"
	"rentchat/sink"
)

var _ contract.Dispatcher = (*Orchestrator)(nil)

// Orchestrator owns the delivery pipeline:
//
//	route commands -> router -> raw events -> moderation -> delivery
//	receipt commands -> receipts ----------------------------^
//
// A single router worker serializes per-conversation push order; the
// delivery worker pushes through the presence registry and feeds the
// permanent sinks (disk persistence) with a bounded timeout.
type Orchestrator struct {
	mu              sync.Mutex
	log             *slog.Logger
	supervisor      contract.ISupervisor
	registry        *Registry
	repository      repositories.IMessageRepository
	permanentSinks  []contract.EventSink
	routeCommands   chan domain.Command
	receiptCommands chan domain.Command
	rawEvents       chan event.DomainEvent
	deliveryEvents  chan event.DomainEvent
	sinkTimeout     time.Duration
	healthInterval  time.Duration
	maskChar        rune
}

func NewOrchestrator(log *slog.Logger, supervisor contract.ISupervisor,
	registry *Registry, repository repositories.IMessageRepository,
	bufferSize int, sinkTimeout, healthInterval time.Duration,
	maskChar rune) *Orchestrator {
	return &Orchestrator{
		log:             log,
		supervisor:      supervisor,
		registry:        registry,
		repository:      repository,
		routeCommands:   make(chan domain.Command, bufferSize),
		receiptCommands: make(chan domain.Command, bufferSize),
		rawEvents:       make(chan event.DomainEvent, bufferSize),
		deliveryEvents:  make(chan event.DomainEvent, bufferSize),
		sinkTimeout:     sinkTimeout,
		healthInterval:  healthInterval,
		maskChar:        maskChar,
	}
}

// Add appends permanent sinks consulted for every delivered message,
// in addition to the disk sink installed by Start.
func (o *Orchestrator) Add(sinks ...contract.EventSink) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.permanentSinks = append(o.permanentSinks, sinks...)
}

// Dispatch enqueues a command without blocking the caller. When a
// channel is saturated the command is dropped with a warning; senders
// learn the truth from the store, not from the push path.
func (o *Orchestrator) Dispatch(cmd domain.Command) {
	switch cmd.(type) {
	case domain.MarkReadCommand, domain.RefreshUnreadCommand:
		select {
		case o.receiptCommands <- cmd:
		default:
			o.log.Warn("Receipt command channel full, dropping command")
		}
	default:
		select {
		case o.routeCommands <- cmd:
		default:
			o.log.Warn(fmt.Sprintf("Route command channel full for %s, dropping command",
				cmd.Conversation()))
		}
	}
}

// Start prepares the moderation automaton and the worker set, then
// hands everything to the supervisor. The expensive work (blocklist
// load, automaton build) happens before the short critical section.
func (o *Orchestrator) Start(ctx context.Context) error {
	moderationWorker, err := o.prepareModeration("blocklist")
	if err != nil {
		return err
	}

	o.mu.Lock()
	o.permanentSinks = append(o.permanentSinks, sink.NewDiskSink(o.repository, o.log))
	o.supervisor.Add(
		workers.NewRouterWorker(o.routeCommands, o.rawEvents, o.log),
		moderationWorker,
		workers.NewDeliveryWorker(o.log, o.registry, o.permanentSinks, o.deliveryEvents, o.sinkTimeout),
		workers.NewReceiptsWorker(o.repository, o.receiptCommands, o.deliveryEvents, o.log),
		workers.NewHealthWorker(o.log, o.registry, o.healthInterval),
	)
	o.mu.Unlock()

	o.log.Info("Starting orchestrator and all supervised workers")
	go o.supervisor.Run(ctx)
	return nil
}

func (o *Orchestrator) prepareModeration(dir string) (contract.Worker, error) {
	loader := NewBlocklistLoader(blocklistFolder)
	data, err := loader.LoadAll(dir)
	if err != nil {
		return nil, err
	}
	o.log.Info(fmt.Sprintf("%d blocklist files loaded [%s]",
		len(data.Languages), strings.Join(data.Languages, ",")))
	o.log.Info(fmt.Sprintf("%d unique blocked terms loaded", len(data.Terms)))

	moderator, err := moderation.NewModerator(data.Terms, o.maskChar)
	if err != nil {
		return nil, err
	}
	return workers.NewModerationWorker(moderator, o.rawEvents, o.deliveryEvents, o.log), nil
}

// Stop cancels the supervised context; workers drain and exit.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.supervisor.Stop()
}
