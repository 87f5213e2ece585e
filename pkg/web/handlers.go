package web

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/teslashibe/sakshi/pkg/assistant"
	"github.com/teslashibe/sakshi/pkg/protocol"
)

// localTurnPath is the Locals key holding the routing decision.
const localTurnPath = "turn_path"

// spoolExt is used when the upload has no usable extension.
const spoolExt = ".webm"

// handleTalk runs one uploaded turn. The upload is spooled to a uniquely
// named temp file that is removed on every exit path.
func (s *Server) handleTalk(c *fiber.Ctx) error {
	start := time.Now()
	requestID := c.GetRespHeader(fiber.HeaderXRequestID)

	fh, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"detail": "field required: file",
		})
	}

	path := filepath.Join(s.cfg.TempDir, "sakshi-"+uuid.NewString()+uploadExt(fh.Filename))
	defer s.removeSpool(path)

	if err := c.SaveFile(fh, path); err != nil {
		return s.talkFailed(c, requestID, start, err)
	}
	f, err := os.Open(path)
	if err != nil {
		return s.talkFailed(c, requestID, start, err)
	}
	defer f.Close()

	resp, err := s.pipeline.Talk(c.UserContext(), &assistant.TalkRequest{
		Audio:    f,
		Filename: fh.Filename,
		History:  c.FormValue("history"),
	})
	if err != nil {
		return s.talkFailed(c, requestID, start, err)
	}

	c.Locals(localTurnPath, string(resp.Path))
	s.publish(requestID, "http", resp, start)
	return c.JSON(resp)
}

func (s *Server) talkFailed(c *fiber.Ctx, requestID string, start time.Time, err error) error {
	s.logger.Error("talk failed", "request_id", requestID, "error", err)
	s.publishError(requestID, "http", start)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"detail": err.Error()})
}

func (s *Server) removeSpool(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("failed to remove upload", "path", path, "error", err)
	}
}

// uploadExt keeps the client's extension as a format hint.
func uploadExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if len(ext) < 2 || len(ext) > 6 {
		return spoolExt
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return spoolExt
		}
	}
	return ext
}

// handleHealth reports liveness and whether research is available.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":   "ok",
		"research": s.pipeline.ResearchAvailable(),
	})
}

// handleStats returns turn metrics and feed subscribers.
func (s *Server) handleStats(c *fiber.Ctx) error {
	out := fiber.Map{
		"research":      s.pipeline.ResearchAvailable(),
		"event_clients": s.events.ClientCount(),
	}
	if m := s.pipeline.Metrics(); m != nil {
		out["turns"] = m.Stats()
	}
	return c.JSON(out)
}

// handleTalkWS runs one turn per "talk" frame. Frames on one connection
// are handled in order.
func (s *Server) handleTalkWS(conn *websocket.Conn) {
	sessionID, _ := conn.Locals("request_id").(string)
	s.logger.Debug("talk session opened", "session", sessionID)
	defer s.logger.Debug("talk session closed", "session", sessionID)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		reply := s.handleFrame(data)
		out, err := reply.Bytes()
		if err != nil {
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, out); err != nil {
			return
		}
	}
}

// handleFrame answers one websocket frame.
func (s *Server) handleFrame(data []byte) *protocol.Message {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		return protocol.NewErrorMessage(err.Error())
	}

	switch msg.Type {
	case protocol.TypePing:
		ping, err := msg.GetPingData()
		if err != nil {
			return protocol.NewErrorMessage(err.Error()).WithID(msg.ID)
		}
		pong, err := protocol.NewPongMessage(ping.ID, ping.Timestamp)
		if err != nil {
			return protocol.NewErrorMessage(err.Error()).WithID(msg.ID)
		}
		return pong.WithID(msg.ID)

	case protocol.TypeTalk:
		return s.talkFrame(msg)

	default:
		return protocol.NewErrorMessage("unsupported message type: " + string(msg.Type)).WithID(msg.ID)
	}
}

func (s *Server) talkFrame(msg *protocol.Message) *protocol.Message {
	start := time.Now()
	requestID := uuid.NewString()

	fail := func(err error) *protocol.Message {
		s.logger.Error("talk failed", "request_id", requestID, "transport", "ws", "error", err)
		s.publishError(requestID, "ws", start)
		return protocol.NewErrorMessage(err.Error()).WithID(msg.ID)
	}

	talk, err := msg.GetTalkData()
	if err != nil {
		return fail(err)
	}
	audio, err := talk.DecodeAudio()
	if err != nil {
		return fail(err)
	}

	resp, err := s.pipeline.Talk(s.ctx, &assistant.TalkRequest{
		Audio:    bytes.NewReader(audio),
		Filename: talk.Filename,
		History:  talk.HistoryJSON(),
	})
	if err != nil {
		return fail(err)
	}

	s.publish(requestID, "ws", resp, start)
	out, err := protocol.NewMessage(protocol.TypeResult, resp)
	if err != nil {
		return fail(err)
	}
	return out.WithID(msg.ID)
}

// publish sends a turn summary to the events feed.
func (s *Server) publish(requestID, transport string, resp *assistant.TalkResponse, start time.Time) {
	status := "ok"
	if resp.Transcript == "" {
		status = "empty"
	}
	s.broadcast(protocol.TurnEvent{
		RequestID: requestID,
		Transport: transport,
		Path:      string(resp.Path),
		Keyword:   resp.Metrics.Keyword,
		Status:    status,
		LatencyMs: time.Since(start).Milliseconds(),
		HasAudio:  resp.AudioB64 != "",
	})
}

func (s *Server) publishError(requestID, transport string, start time.Time) {
	s.broadcast(protocol.TurnEvent{
		RequestID: requestID,
		Transport: transport,
		Status:    "error",
		LatencyMs: time.Since(start).Milliseconds(),
	})
}

func (s *Server) broadcast(ev protocol.TurnEvent) {
	msg, err := protocol.NewMessage(protocol.TypeTurn, ev)
	if err != nil {
		return
	}
	data, err := msg.Bytes()
	if err != nil {
		return
	}
	s.events.Broadcast(data)
}
