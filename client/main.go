package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"log"
	"mime"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/wfunc/gardien/network"
)

const usage = `Commands:
  login <name> [password]
  logout
  start
  profile
  hub
  quest <id>
  answer <id> <text>
  photo <id> <file>
  review <id>
  inventory
  pos <lat> <lng>
  ask <message>
  quit`

// send formats and sends a message to the WebSocket server.
func send(c *websocket.Conn, msgID uint16, v interface{}) error {
	var data []byte
	if v != nil {
		var err error
		if data, err = json.Marshal(v); err != nil {
			return err
		}
	}
	packet, err := network.Encode(msgID, data)
	if err != nil {
		return err
	}
	return c.WriteMessage(websocket.BinaryMessage, packet)
}

func questID(arg string) (int, bool) {
	id, err := strconv.Atoi(arg)
	if err != nil {
		log.Printf("Bad quest id %q", arg)
		return 0, false
	}
	return id, true
}

// command turns one input line into a packet. ok is false when nothing
// should be sent.
func command(line, deviceID string) (msgID uint16, payload interface{}, ok bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return 0, nil, false
	}
	args := fields[1:]
	rest := strings.TrimSpace(strings.TrimPrefix(line, fields[0]))

	switch fields[0] {
	case "login":
		if len(args) == 0 {
			break
		}
		req := network.LoginRequest{DeviceID: deviceID, Name: args[0]}
		if len(args) > 1 {
			req.Password = args[1]
		}
		return network.MsgTypeLogin, req, true
	case "logout":
		return network.MsgTypeLogout, nil, true
	case "start":
		return network.MsgTypeStartGame, nil, true
	case "profile":
		return network.MsgTypeProfile, nil, true
	case "hub":
		return network.MsgTypeQuestHub, nil, true
	case "inventory":
		return network.MsgTypeInventory, nil, true
	case "quest", "review":
		if len(args) != 1 {
			break
		}
		id, ok := questID(args[0])
		if !ok {
			return 0, nil, false
		}
		if fields[0] == "quest" {
			return network.MsgTypeSelectQuest, network.QuestRequest{QuestID: id}, true
		}
		return network.MsgTypeRequestReview, network.QuestRequest{QuestID: id}, true
	case "answer":
		if len(args) < 2 {
			break
		}
		id, ok := questID(args[0])
		if !ok {
			return 0, nil, false
		}
		answer := strings.TrimSpace(strings.TrimPrefix(rest, args[0]))
		return network.MsgTypeSubmitAnswer, network.AnswerRequest{QuestID: id, Answer: answer}, true
	case "photo":
		if len(args) != 2 {
			break
		}
		id, ok := questID(args[0])
		if !ok {
			return 0, nil, false
		}
		image, err := os.ReadFile(args[1])
		if err != nil {
			log.Printf("Read photo: %v", err)
			return 0, nil, false
		}
		mimeType := mime.TypeByExtension(filepath.Ext(args[1]))
		return network.MsgTypeSubmitImage, network.ImageRequest{QuestID: id, Image: image, MimeType: mimeType}, true
	case "pos":
		if len(args) != 2 {
			break
		}
		lat, err1 := strconv.ParseFloat(args[0], 64)
		lng, err2 := strconv.ParseFloat(args[1], 64)
		if err1 != nil || err2 != nil {
			log.Printf("Bad position %q", rest)
			return 0, nil, false
		}
		return network.MsgTypePosition, network.PositionRequest{Lat: lat, Lng: lng}, true
	case "ask":
		if rest == "" {
			break
		}
		return network.MsgTypeOracleAsk, network.OracleRequest{Message: rest}, true
	}
	log.Println(usage)
	return 0, nil, false
}

func main() {
	addr := flag.String("addr", "localhost:8080", "server address")
	device := flag.String("device", "", "device id (random when empty)")
	flag.Parse()
	if *device == "" {
		*device = uuid.New().String()
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}
			packet, err := network.Decode(message)
			if err != nil {
				log.Printf("Received invalid packet of size %d: %v", len(message), err)
				continue
			}
			if packet.MsgID == network.MsgTypeHeartbeat {
				continue
			}
			log.Printf("<- RECV (ID: %d): %s", packet.MsgID, packet.Data)
		}
	}()

	// Heartbeat loop
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := send(c, network.MsgTypeHeartbeat, nil); err != nil {
					return
				}
			}
		}
	}()

	log.Printf("Client started as device %s.\n%s", *device, usage)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	// Write loop
	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		case line, ok := <-lines:
			if !ok || strings.TrimSpace(line) == "quit" {
				return
			}
			msgID, payload, ok := command(line, *device)
			if !ok {
				continue
			}
			if err := send(c, msgID, payload); err != nil {
				log.Println("Write error:", err)
				return
			}
		}
	}
}
