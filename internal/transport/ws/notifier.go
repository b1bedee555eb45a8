package ws

import (
	"github.com/google/uuid"
	"github.com/vvukelic/ripple/internal/domain"
)

// HubNotifier implements service.Notifier using the WebSocket Hub.
type HubNotifier struct {
	hub *Hub
}

func NewHubNotifier(hub *Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

func (n *HubNotifier) NotifyNewMessage(msg *domain.Message) {
	n.hub.DeliverMessage(msg)
}

func (n *HubNotifier) NotifyMessagesRead(readerID, senderID uuid.UUID) {
	n.hub.DeliverReadReceipt(readerID, senderID)
}
