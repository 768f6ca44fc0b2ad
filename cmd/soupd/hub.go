package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is a middleman between one websocket connection and the Hub.
type Client struct {
	hub  *Hub
	ctrl *Controller

	conn *websocket.Conn
	send chan []byte
}

// readPump pumps control messages from the websocket connection to the
// Controller. A broken connection is detected by a write failure in
// writePump, so no read deadline is set here.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("error: %v", err)
			}
			break
		}

		var msg UIMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Printf("error unmarshalling message: %v", err)
			continue
		}

		switch msg.Type {
		case "command":
			switch msg.Command {
			case "pause":
				c.ctrl.Pause()
			case "resume":
				c.ctrl.Resume()
			case "step":
				c.ctrl.Step()
			default:
				log.Printf("unknown command received: %s", msg.Command)
			}
		case "set_config":
			if err := c.ctrl.ApplyPatch(msg.Patch); err != nil {
				log.Printf("rejected set_config: %v", err)
			}
		default:
			log.Printf("unknown message type received: %s", msg.Type)
		}
	}
}

// writePump pumps messages from the Hub to the websocket connection. It is
// the only goroutine allowed to write to conn.
func (c *Client) writePump() {
	defer c.conn.Close()
	for message := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		msgType := websocket.BinaryMessage
		if json.Valid(message) {
			msgType = websocket.TextMessage
		}
		if err := c.conn.WriteMessage(msgType, message); err != nil {
			log.Printf("write error, closing connection: %v", err)
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// Hub maintains the set of active clients and fans broadcast messages out
// to all of them.
type Hub struct {
	clients    map[*Client]bool
	Broadcast  chan []byte
	Register   chan *Client
	Unregister chan *Client
}

// UIMessage is the control-plane JSON envelope sent from the browser.
type UIMessage struct {
	Type    string      `json:"type"`
	Command string      `json:"command,omitempty"`
	Patch   ConfigPatch `json:"patch,omitempty"`
}

// ConfigPatch mirrors simcore.ConfigPatch over the wire, since JSON cannot
// address Go's pointer-field-means-unset convention directly.
type ConfigPatch struct {
	StepsPerFrame    *int     `json:"steps_per_frame,omitempty"`
	MutationRate     *float64 `json:"mutation_rate,omitempty"`
	MaxPopulation    *int     `json:"max_population,omitempty"`
	TimeSlice        *int     `json:"time_slice,omitempty"`
}

// NewHub returns an unstarted Hub.
func NewHub() *Hub {
	return &Hub{
		Broadcast:  make(chan []byte, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// Run services the Hub's register/unregister/broadcast channels until the
// process exits.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.clients[client] = true
		case client := <-h.Unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
		case message := <-h.Broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow client: drop the frame rather than block the
					// whole broadcast on one stutter.
				}
			}
		}
	}
}

func handleWebSocket(hub *Hub, ctrl *Controller, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("upgrade error:", err)
		return
	}
	client := &Client{hub: hub, ctrl: ctrl, conn: conn, send: make(chan []byte, 256)}
	client.hub.Register <- client

	go client.writePump()
	go client.readPump()
}

func serveIndex(w http.ResponseWriter, r *http.Request) {
	if _, err := os.Stat("index.html"); os.IsNotExist(err) {
		http.Error(w, "index.html not found", http.StatusNotFound)
		return
	}
	http.ServeFile(w, r, "index.html")
}

// StartServer registers the websocket and index routes and blocks serving
// HTTP on addr.
func StartServer(addr string, hub *Hub, ctrl *Controller) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		handleWebSocket(hub, ctrl, w, r)
	})
	mux.HandleFunc("/", serveIndex)

	log.Printf("starting web server on http://localhost%s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal("ListenAndServe error: ", err)
	}
}
