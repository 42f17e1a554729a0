package queue

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/carpoolio/carpool-api/internal/model"
)

const assignedQueueName = "carpool.child_assigned"

// PublishChildAssigned publishes one event to the
// carpool.child_assigned queue.  Messages are persistent and the
// queue is declared durable so broker restarts do not drop events.
// Errors are logged and returned; callers on the request path ignore
// them, since a broker outage must never fail an assignment that has
// already committed.
func PublishChildAssigned(ctx context.Context, url string, event ChildAssignedEvent) error {
	conn, err := amqp.Dial(url)
	if err != nil {
		log.Printf("rabbitmq: dial failed: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("rabbitmq: channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(assignedQueueName, true, false, false, false, nil); err != nil {
		log.Printf("rabbitmq: queue declare failed: %v", err)
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		log.Printf("rabbitmq: marshal event failed: %v", err)
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", assignedQueueName, false, false, pub); err != nil {
		log.Printf("rabbitmq: publish failed: %v", err)
		return err
	}
	return nil
}

// Notifier adapts the publisher to the assignment service's notifier
// contract.  It is injected at wiring time; nothing in the service
// layer reaches for a global.  Publishing happens on a goroutine so
// the HTTP response never waits on the broker.
type Notifier struct {
	url string
}

// NewNotifier returns a Notifier targeting the given AMQP URL, or
// nil when the URL is empty.  A nil Notifier is valid: the service
// treats it as "notifications disabled".
func NewNotifier(url string) *Notifier {
	if url == "" {
		return nil
	}
	return &Notifier{url: url}
}

// ChildAssigned fires the carpool.child_assigned event.  It runs
// after the assignment transaction commits.
func (n *Notifier) ChildAssigned(ctx context.Context, d model.ChildAssignmentDetail) {
	ev := ChildAssignedEvent{
		AssignmentID:        d.ID,
		ScheduleSlotID:      d.ScheduleSlotID,
		ChildID:             d.ChildID,
		ChildName:           d.ChildName,
		VehicleAssignmentID: d.VehicleAssignmentID,
		VehicleName:         d.VehicleName,
		AssignedAt:          d.CreatedAt.UTC().Format(time.RFC3339),
	}
	if d.DriverName != nil {
		ev.DriverName = *d.DriverName
	}
	go func() {
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = PublishChildAssigned(pubCtx, n.url, ev)
	}()
}
