package events

import (
	"context"
	"log"
	"sync"

	"github.com/oessenger/oessenger/internal/stats"
)

type notifyReq struct {
	accountIds   []int
	notification *Notification
}

// Hub routes notifications to the live websocket connections of the
// users they are addressed to. It holds no domain state, only sockets.
type Hub struct {
	log            *log.Logger
	stats          stats.StatsProvider
	clients        map[*Client]struct{}
	userMap        map[int]map[*Client]struct{}
	clientsLock    sync.RWMutex
	registerChan   chan *Client
	deregisterChan chan *Client
	notifyChan     chan *notifyReq
	stop           chan struct{}
	done           chan struct{}
}

func NewHub(logger *log.Logger, sp stats.StatsProvider) *Hub {
	sp.RegisterMetric(stats.ActiveConnections)

	return &Hub{
		log:            logger,
		stats:          sp,
		clients:        make(map[*Client]struct{}),
		userMap:        make(map[int]map[*Client]struct{}),
		registerChan:   make(chan *Client),
		deregisterChan: make(chan *Client),
		notifyChan:     make(chan *notifyReq, 256),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.registerChan:
			h.log.Printf("adding connection from %q", client.user.Username)
			h.addClient(client)
			h.stats.Incr(stats.ActiveConnections)
		case client := <-h.deregisterChan:
			h.log.Printf("removing connection from %q", client.user.Username)
			if h.removeClient(client) {
				h.stats.Decr(stats.ActiveConnections)
			}
		case req := <-h.notifyChan:
			h.dispatch(req)
		case <-h.stop:
			h.clientsLock.Lock()
			for c := range h.clients {
				c.stopClient()
			}
			h.clientsLock.Unlock()

			close(h.done)
			return
		}
	}
}

func (h *Hub) Register(c *Client) {
	h.registerChan <- c
}

func (h *Hub) Deregister(c *Client) {
	h.deregisterChan <- c
}

// Notify queues a notification for every listed account. Accounts
// without a live connection are skipped.
func (h *Hub) Notify(accountIds []int, n *Notification) {
	if n.Timestamp.IsZero() {
		n.Timestamp = Now()
	}

	select {
	case h.notifyChan <- &notifyReq{accountIds: accountIds, notification: n}:
	default:
		h.log.Println("notify channel full, dropping notification")
	}
}

func (h *Hub) dispatch(req *notifyReq) {
	h.clientsLock.RLock()
	defer h.clientsLock.RUnlock()

	for _, accountId := range req.accountIds {
		for c := range h.userMap[accountId] {
			c.queueNotification(req.notification)
		}
	}
}

func (h *Hub) addClient(c *Client) {
	h.clientsLock.Lock()
	defer h.clientsLock.Unlock()

	h.clients[c] = struct{}{}
	if h.userMap[c.user.Id] == nil {
		h.userMap[c.user.Id] = make(map[*Client]struct{})
	}
	h.userMap[c.user.Id][c] = struct{}{}
}

func (h *Hub) removeClient(c *Client) bool {
	h.clientsLock.Lock()
	defer h.clientsLock.Unlock()

	if _, ok := h.clients[c]; !ok {
		return false
	}

	delete(h.clients, c)
	if userClients, ok := h.userMap[c.user.Id]; ok {
		delete(userClients, c)
		if len(userClients) == 0 {
			delete(h.userMap, c.user.Id)
		}
	}

	return true
}

func (h *Hub) Shutdown(ctx context.Context) error {
	close(h.stop)

	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
