// chat_tail dials the chat websocket directly and prints parsed frames.
// Useful as a quick smoke test of the wire protocol without the engine.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/coder/websocket"

	"github.com/vovakirdan/dggchat/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("chat_tail: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "wss://destiny.gg/ws", "chat websocket address")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")
	conn.SetReadLimit(1 << 20)

	fmt.Printf("connected to %s, Ctrl+C to exit\n", *addr)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		ev, err := proto.ParseFrame(string(data))
		if err != nil {
			continue
		}
		switch ev.Kind {
		case proto.KindChatMessage:
			fmt.Printf("%s: %s\n", ev.Sender(), ev.Content)
		case proto.KindServedConnections:
			fmt.Printf("* %d connections, %d users\n", ev.Count, len(ev.Users))
		case proto.KindBroadcast:
			fmt.Printf("*** %s\n", ev.Content)
		case proto.KindUserJoined:
			fmt.Printf("+ %s\n", ev.Sender())
		case proto.KindUserQuit:
			fmt.Printf("- %s\n", ev.Sender())
		}
	}
}
