//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"rentchat/domain"
	"rentchat/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself.
// Can be silly, focused.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// Used for logging and supervision, avoiding manual naming in the
// Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IPresence is the single source of truth for "is this user currently
// reachable for push delivery". At most one live entry per user id.
type IPresence interface {
	// Register binds userID to sink. If an older entry existed, it is
	// replaced and returned so the caller can notify the evicted
	// connection.
	Register(userID string, sink EventSink) (evicted EventSink, replaced bool)
	// Unregister removes the entry only if it still points at sink.
	// A stale unregister from an evicted connection is a no-op.
	Unregister(userID string, sink EventSink) bool
	Lookup(userID string) (EventSink, bool)
}

// Dispatcher accepts commands into the delivery pipeline without
// exposing the orchestrator itself to transport code.
type Dispatcher interface {
	Dispatch(cmd domain.Command)
}
