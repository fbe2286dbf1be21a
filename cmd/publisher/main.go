package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/services"
	"streamcast/internal/infrastructure/monitoring"
	signalserver "streamcast/internal/infrastructure/signal"
	webrtcinfra "streamcast/internal/infrastructure/webrtc"
	"streamcast/pkg/config"
	"streamcast/pkg/logger"
	"streamcast/pkg/utils"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	var (
		server      = flag.String("server", "http://localhost:5001", "server base URL")
		wsPath      = flag.String("ws-path", "/ws", "signaling endpoint path")
		room        = flag.String("room", "default", "room to publish into")
		username    = flag.String("user", "admin", "login username")
		password    = flag.String("pass", "admin", "login password")
		quality     = flag.String("quality", "high", "initial quality preset")
		ice         = flag.String("ice", "", "comma-separated ICE server URLs (overrides config)")
		configPath  = flag.String("config", "", "optional config file for ICE servers and sampling intervals")
		metricsAddr = flag.String("metrics", "", "address to serve Prometheus metrics on (disabled when empty)")
		logLevel    = flag.String("log-level", "info", "log level")
	)
	flag.Parse()

	zapLogger := logger.New(*logLevel)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalw("failed to load config", "path", *configPath, "error", err)
	}

	iceServers := cfg.ICEServerURLs()
	if *ice != "" {
		iceServers = strings.Split(*ice, ",")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	token, err := login(*server, *username, *password)
	if err != nil {
		log.Fatalw("login failed", "error", err)
	}

	client, self, err := dialSignaling(*server, *wsPath, token)
	if err != nil {
		log.Fatalw("signaling dial failed", "error", err)
	}
	defer client.close()
	log.Infow("connected to signaling", "peer_id", self)

	transport, err := webrtcinfra.NewPionTransport(webrtcinfra.Config{
		ICEServers: iceServers,
	}, log)
	if err != nil {
		log.Fatalw("failed to create peer transport", "error", err)
	}

	roomID := domain.RoomID(*room)
	connID := domain.ConnectionID(utils.GenerateConnectionID())
	session := services.NewStreamerSession(roomID, self, connID, transport, client, log)
	session.Status = func(msg string) { log.Warnw("negotiation degraded", "status", msg) }
	defer session.Close()

	transport.OnCandidate = func(candidate json.RawMessage) {
		if err := client.Publish(roomID, connID, domain.SignalData{
			Type:      domain.SignalCandidate,
			Candidate: candidate,
		}); err != nil {
			log.Warnw("failed to publish candidate", "error", err)
		}
	}
	transport.OnConnected = func() {
		session.MarkConnected()
		log.Info("peer connection established")
	}

	stats := webrtcinfra.NewRTCPStats(log)
	controller := services.NewQualityController(
		webrtcinfra.NewRTPCaptureDevice(),
		transport,
		stats,
		nil,
		services.QualityControllerConfig{
			LiveInterval:      cfg.Quality.LiveSampleInterval,
			RecordingInterval: cfg.Quality.RecordingSampleInterval,
		},
		log,
	)

	var collector *monitoring.PrometheusCollector
	if *metricsAddr != "" {
		collector = monitoring.NewPrometheusCollector()
		go func() {
			if err := http.ListenAndServe(*metricsAddr, promhttp.Handler()); err != nil {
				log.Warnw("metrics listener stopped", "error", err)
			}
		}()
	}
	controller.OnPresetChange = func(from, to domain.PresetName) {
		if collector != nil {
			collector.PresetSwitched(to)
		}
		log.Infow("quality preset switched", "from", from, "to", to)
	}

	if err := controller.Start(ctx, domain.PresetName(*quality)); err != nil {
		log.Fatalw("failed to start capture", "error", err)
	}
	defer controller.Stop()

	// Tracks are attached now, so the audio sender exists and its RTCP
	// feedback can drive the sampling loop.
	if sender := transport.AudioSender(); sender != nil {
		go stats.Watch(ctx, webrtcinfra.SenderSource(sender))
	}

	if err := client.send(signalserver.ClientMessage{
		Type: signalserver.MsgStreamerJoin,
		Room: roomID,
	}); err != nil {
		log.Fatalw("failed to join room", "error", err)
	}
	log.Infow("publishing", "room", roomID, "quality", controller.Current())

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Info("shutting down publisher")
		client.send(signalserver.ClientMessage{Type: signalserver.MsgLeave})
		cancel()
		client.close()
	}()

	for {
		var evt signalserver.ServerEvent
		if err := client.read(&evt); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Fatalw("signaling connection lost", "error", err)
		}

		switch evt.Type {
		case signalserver.EvtRequestOffer:
			log.Infow("viewer requested offer", "viewer_id", evt.ViewerID)
			if err := session.StartOffer(ctx); err != nil {
				log.Debugw("offer not started", "error", err)
			}
		case signalserver.EvtSignal:
			if evt.Data == nil {
				continue
			}
			session.HandleSignal(ctx, domain.SignalEnvelope{
				ConnectionID: evt.ConnectionID,
				Data:         *evt.Data,
				FromPeer:     evt.FromPeer,
			})
		case signalserver.EvtNewPeer:
			log.Infow("peer joined room", "peer_id", evt.PeerID)
		case signalserver.EvtError:
			log.Errorw("signaling error", "message", evt.Message)
		}
	}
}

// signalClient is the publisher's half of the signaling channel. Writes
// are serialized; gorilla connections allow one concurrent writer.
type signalClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *signalClient) send(msg signalserver.ClientMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(msg)
}

func (c *signalClient) read(evt *signalserver.ServerEvent) error {
	return c.conn.ReadJSON(evt)
}

// Publish satisfies the negotiation session's signal publisher port.
func (c *signalClient) Publish(room domain.RoomID, connID domain.ConnectionID, data domain.SignalData) error {
	return c.send(signalserver.ClientMessage{
		Type:         signalserver.MsgSignal,
		Room:         room,
		ConnectionID: connID,
		Data:         data,
	})
}

func (c *signalClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.Close()
}

func login(server, username, password string) (string, error) {
	body, err := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return "", err
	}

	resp, err := http.Post(server+"/api/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login rejected with status %d", resp.StatusCode)
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Token, nil
}

func dialSignaling(server, path, token string) (*signalClient, domain.PeerID, error) {
	wsURL := strings.Replace(server, "http", "ws", 1) + path + "?token=" + token

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return nil, "", err
	}

	var welcome signalserver.ServerEvent
	if err := conn.ReadJSON(&welcome); err != nil {
		conn.Close()
		return nil, "", err
	}
	if welcome.Type != signalserver.EvtWelcome {
		conn.Close()
		return nil, "", fmt.Errorf("expected welcome, got %q", welcome.Type)
	}

	return &signalClient{conn: conn}, welcome.PeerID, nil
}
