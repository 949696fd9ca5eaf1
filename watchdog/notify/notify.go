package notify

import (
	"context"

	"github.com/evaafi/oracle-watchdog/watchdog/log"
)

// Transport delivers an already formatted message.
type Transport interface {
	Send(ctx context.Context, text string) error
}

// Notifier prefixes every message with the monitored oracle, logs it and
// forwards it to the transport. Delivery failures are only logged.
type Notifier struct {
	oracle    string
	transport Transport
}

func New(oracle string, transport Transport) *Notifier {
	if transport == nil {
		transport = LogTransport{}
	}

	return &Notifier{
		oracle:    oracle,
		transport: transport,
	}
}

func (n *Notifier) Format(text string) string {
	return "[" + n.oracle + "] " + text
}

func (n *Notifier) Notify(ctx context.Context, text string) {
	msg := n.Format(text)
	log.Info(msg)

	if err := n.transport.Send(ctx, msg); err != nil {
		log.Errorf("Error sending message: %v", err)
	}
}

// LogTransport drops messages; the notifier has already logged them.
type LogTransport struct{}

func (LogTransport) Send(context.Context, string) error {
	return nil
}
