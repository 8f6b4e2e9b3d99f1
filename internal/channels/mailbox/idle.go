package mailbox

import (
	"context"
	"encoding/json"
	"log"
	"time"

	idle "github.com/emersion/go-imap-idle"
	imapclient "github.com/emersion/go-imap/client"

	"github.com/commsync/commsync/internal/models"
	"github.com/commsync/commsync/internal/websocket"
)

// idleRetrySleep is the backoff duration after an error before retrying IDLE.
const idleRetrySleep = 10 * time.Second

// StartIdleListener runs an IMAP IDLE loop for one linked account and pushes
// new-message events to the hub. It listens on INBOX only and blocks until
// the context is canceled.
func StartIdleListener(ctx context.Context, userID string, account models.LinkedAccount, password string, useTLS bool, hub *websocket.Hub) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		// No connected clients means nobody to notify; avoid holding an
		// IMAP connection open for nothing.
		if hub.ActiveConnections(userID) == 0 {
			time.Sleep(idleRetrySleep)
			continue
		}

		c, err := Connect(account.Host, account.Username, password, useTLS)
		if err != nil {
			log.Printf("IMAP IDLE: failed to connect for account %s: %v", account.ID, err)
			time.Sleep(idleRetrySleep)
			continue
		}

		runIdleLoop(ctx, userID, account, c, hub)
		_ = c.Logout()

		time.Sleep(idleRetrySleep)
	}
}

// runIdleLoop runs the IDLE command and forwards mailbox updates to the hub.
func runIdleLoop(ctx context.Context, userID string, account models.LinkedAccount, c *imapclient.Client, hub *websocket.Hub) {
	if _, err := c.Select("INBOX", false); err != nil {
		log.Printf("IMAP IDLE: failed to select INBOX for account %s: %v", account.ID, err)
		return
	}

	idleClient := idle.NewClient(c)

	updates := make(chan imapclient.Update, 10)
	c.Updates = updates

	stop := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- idleClient.IdleWithFallback(stop, 5*time.Second)
	}()

	for {
		select {
		case <-ctx.Done():
			close(stop)
			return
		case err := <-done:
			if err != nil {
				log.Printf("IMAP IDLE: idle loop ended with error for account %s: %v", account.ID, err)
			}
			return
		case update := <-updates:
			if update == nil {
				continue
			}
			handleMailboxUpdate(userID, account, update, hub)
		}
	}
}

// handleMailboxUpdate notifies the hub when the INBOX gains messages.
func handleMailboxUpdate(userID string, account models.LinkedAccount, update imapclient.Update, hub *websocket.Hub) {
	mboxUpdate, ok := update.(*imapclient.MailboxUpdate)
	if !ok || mboxUpdate.Mailbox == nil {
		return
	}

	status := mboxUpdate.Mailbox
	if status.Name != "INBOX" || status.Messages == 0 {
		return
	}

	event := websocket.NewMessageEvent{
		Type:      "new_message",
		Channel:   models.ChannelIMAP,
		AccountID: account.ID,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("IMAP IDLE: failed to marshal new_message event: %v", err)
		return
	}
	hub.Send(userID, payload)
}
