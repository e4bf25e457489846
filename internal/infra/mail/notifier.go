// internal/infra/mail/notifier.go
package mail

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	appmint "candymint/internal/application/mint"
	mintdom "candymint/internal/domain/mint"
)

const sendTimeout = 15 * time.Second

// Notifier は Session の通知スロットを購読し、ミント成功時にメールを送ります。
// 送信は observer から切り離して行う（ミント処理を待たせない）。
type Notifier struct {
	client   EmailClient
	from, to string
	log      zerolog.Logger

	// 送信中メール
	wg sync.WaitGroup
}

func NewNotifier(client EmailClient, from, to string, log zerolog.Logger) *Notifier {
	return &Notifier{
		client: client,
		from:   from,
		to:     to,
		log:    log.With().Str("component", "notifier").Logger(),
	}
}

// Attach subscribes n to s and returns the unsubscribe func.
func (n *Notifier) Attach(s *appmint.Session) func() {
	return s.Subscribe(func(ev appmint.Event) {
		if ev.Kind != appmint.EventNotificationChanged {
			return
		}
		note := ev.Notification
		if !note.Open || note.Severity != mintdom.SeveritySuccess {
			return
		}
		n.send(s.WalletKey(), s.MintedTotal(), s.ItemsAvailable())
	})
}

func (n *Notifier) send(wallet string, minted, available uint64) {
	subject := "candymint: mint succeeded"
	body := fmt.Sprintf(
		"A mint was confirmed.\n\nwallet: %s\nredeemed: %d / %d\nat: %s\n",
		appmint.ShortKey(wallet, 4), minted, available, time.Now().UTC().Format(time.RFC3339),
	)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if err := n.client.Send(ctx, n.from, n.to, subject, body); err != nil {
			n.log.Warn().Err(err).Msg("success mail not sent")
		}
	}()
}

// Wait blocks until every pending mail has been handed to the client.
func (n *Notifier) Wait() {
	n.wg.Wait()
}
