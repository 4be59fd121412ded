package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/feedsync/feedsync/internal/feed"
	"github.com/feedsync/feedsync/internal/ws"
)

func watchCmd() *cobra.Command {
	var (
		relayName string
		users     []string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream new items from a relay as they arrive",
		Long: `Stream new items from a relay as they arrive.

Connects to the relay's websocket stream, subscribes to the configured
users and prints one line per stored item until interrupted.

Examples:
  # Watch every configured user on the first relay
  feedsync watch

  # Watch one user on a specific relay
  feedsync watch --relay mirror --users alice`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			name, rc, err := pickRelay(cfg, relayName)
			if err != nil {
				return err
			}

			seeds := buildSeeds(cfg)
			seeds, err = filterSeeds(seeds, users)
			if err != nil {
				return err
			}
			if len(seeds) == 0 {
				return fmt.Errorf("no users configured")
			}
			ids := make([]feed.UserID, 0, len(seeds))
			for _, seed := range seeds {
				ids = append(ids, seed.User.ID)
			}

			wsURL, err := streamURL(rc.URL, rc.Token)
			if err != nil {
				return err
			}

			conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
			if err != nil {
				if resp != nil {
					resp.Body.Close()
				}
				return fmt.Errorf("dialing relay %s: %w", name, err)
			}
			defer conn.Close()

			// Unblock the read loop on interrupt
			go func() {
				<-ctx.Done()
				conn.Close()
			}()

			_, data, err := conn.ReadMessage()
			if err != nil {
				return fmt.Errorf("reading hello: %w", err)
			}
			var hello struct {
				Op    string `json:"op"`
				Conn  string `json:"conn"`
				Relay string `json:"relay"`
			}
			if err := json.Unmarshal(data, &hello); err != nil || hello.Op != ws.OpHello {
				return fmt.Errorf("unexpected first frame from relay")
			}
			logger.Info("connected",
				zap.String("relay", hello.Relay),
				zap.String("conn", hello.Conn),
				zap.Int("users", len(ids)),
			)

			if err := conn.WriteMessage(websocket.TextMessage, ws.BuildSubscribeFrame(1, ids)); err != nil {
				return fmt.Errorf("subscribing: %w", err)
			}

			for {
				_, data, err := conn.ReadMessage()
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					return fmt.Errorf("reading stream: %w", err)
				}

				var env struct {
					Op string `json:"op"`
					OK *bool  `json:"ok"`
				}
				if err := json.Unmarshal(data, &env); err != nil {
					logger.Debug("ignoring malformed frame", zap.Error(err))
					continue
				}

				switch env.Op {
				case ws.OpAck:
					if env.OK != nil && !*env.OK {
						return fmt.Errorf("relay rejected subscription")
					}
					logger.Debug("subscription acknowledged")
				case ws.OpItem:
					var frame ws.ItemFrame
					if err := json.Unmarshal(data, &frame); err != nil {
						logger.Debug("ignoring malformed item frame", zap.Error(err))
						continue
					}
					fmt.Printf("%s  %s  %s\n",
						time.UnixMilli(frame.TS).UTC().Format(time.RFC3339),
						frame.User,
						frame.Sig,
					)
				case ws.OpPong:
				default:
					logger.Debug("ignoring frame", zap.String("op", env.Op))
				}
			}
		},
	}

	cmd.Flags().StringVar(&relayName, "relay", "", "relay to stream from (default: first configured)")
	cmd.Flags().StringSliceVar(&users, "users", nil, "restrict the stream to these users")

	return cmd
}

// streamURL converts a relay base URL into its websocket stream endpoint.
// Tokens ride in the query string because browsers and the dialer cannot
// set arbitrary headers during the handshake.
func streamURL(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parsing relay url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported relay scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/stream"
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
