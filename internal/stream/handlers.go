package stream

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

func RegisterRoutes(r fiber.Router, hub *Hub) {
	r.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return c.Next()
	})

	r.Get("/ws", websocket.New(func(c *websocket.Conn) {
		client := hub.Connect()
		defer hub.Disconnect(client)

		done := make(chan struct{})
		go func() {
			defer close(done)
			for msg := range client.Send {
				if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
					// keep draining until Disconnect closes Send
					continue
				}
			}
		}()

		// one reader per connection keeps that client's events in arrival order
		ctx := context.Background()
		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}
			hub.Dispatch(ctx, client, msg)
		}

		hub.Disconnect(client)
		<-done
	}))
}
