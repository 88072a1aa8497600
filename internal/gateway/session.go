// Package gateway exposes the recording engine to the exam-practice UI
// over a WebSocket: lifecycle commands in, telemetry and the finished
// artifact out. The engine itself owns no protocol; everything here is
// consumer-side glue.
package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/aiexaminer/recorder-engine/internal/capture"
	"github.com/aiexaminer/recorder-engine/internal/config"
	"github.com/aiexaminer/recorder-engine/internal/observability"
	"github.com/aiexaminer/recorder-engine/internal/playback"
	"github.com/aiexaminer/recorder-engine/internal/recorder"
	"github.com/aiexaminer/recorder-engine/internal/stt"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The service binds to localhost on the student's machine; the
		// exam-practice UI is the only expected origin.
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// Command is one control message from the UI
type Command struct {
	Event string `json:"event"` // start, pause, resume, stop, reset, play
}

// ServerEvent is one message to the UI
type ServerEvent struct {
	Event      string                   `json:"event"`
	State      string                   `json:"state,omitempty"`
	Error      string                   `json:"error,omitempty"`
	Telemetry  *recorder.Telemetry      `json:"telemetry,omitempty"`
	Analytics  *recorder.AudioAnalytics `json:"analytics,omitempty"`
	Reason     string                   `json:"reason,omitempty"`
	MimeType   string                   `json:"mime_type,omitempty"`
	Audio      string                   `json:"audio,omitempty"` // base64-encoded artifact
	Transcript *TranscriptPayload       `json:"transcript,omitempty"`
}

// TranscriptPayload carries the optional transcription of the artifact
type TranscriptPayload struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// transcribeTimeout bounds the inline transcription of a stopped recording
const transcribeTimeout = 30 * time.Second

// Session owns one UI connection and its recording engine. The engine's
// microphone stream lives and dies with the connection.
type Session struct {
	id          string
	conn        *websocket.Conn
	engine      *recorder.Engine
	transcriber stt.Transcriber
	player      *playback.Controller
	log         zerolog.Logger

	writeMu sync.Mutex
}

// Handler returns the WebSocket endpoint for recorder sessions
func Handler(cfg *config.Config, transcriber stt.Transcriber, player *playback.Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			observability.GetLogger().Error().Err(err).Msg("websocket upgrade failed")
			return
		}

		sessionID := observability.NewSessionID()
		log := observability.WithSession(sessionID)

		source, err := capture.Auto(r.Context(), log)
		if err != nil {
			log.Error().Err(err).Msg("no capture backend available")
			writeClose(conn, "no capture backend available")
			return
		}

		engine, err := recorder.New(cfg.RecorderConfig(), source, recorder.Callbacks{}, log)
		if err != nil {
			log.Error().Err(err).Msg("engine construction failed")
			writeClose(conn, err.Error())
			return
		}

		s := &Session{
			id:          sessionID,
			conn:        conn,
			engine:      engine,
			transcriber: transcriber,
			player:      player,
			log:         log,
		}
		s.serve()
	}
}

func writeClose(conn *websocket.Conn, reason string) {
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseInternalServerErr, reason))
	conn.Close()
}

// serve pumps engine events out and commands in until the connection
// drops. The engine is always reset on exit so the microphone is released
// no matter how the connection ended.
func (s *Session) serve() {
	observability.RecordSessionStart()
	s.log.Info().Msg("recorder session connected")

	defer func() {
		s.engine.Reset()
		s.conn.Close()
		observability.RecordSessionEnd()
		s.log.Info().Msg("recorder session closed")
	}()

	done := make(chan struct{})
	go s.pumpEvents(done)
	defer close(done)

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warn().Err(err).Msg("websocket read failed")
			}
			return
		}

		var cmd Command
		if err := json.Unmarshal(payload, &cmd); err != nil {
			s.sendError("malformed command")
			continue
		}
		s.dispatch(cmd)
	}
}

// dispatch applies one UI command to the engine. Invalid-transition
// errors are reported as state echoes rather than failures: the UI may
// race its own button states.
func (s *Session) dispatch(cmd Command) {
	var err error
	switch cmd.Event {
	case "start":
		err = s.engine.Start(context.Background())
		if err == nil && s.engine.State() == recorder.StateRecording {
			observability.RecordRecordingStart()
		}
	case "pause":
		err = s.engine.Pause()
	case "resume":
		err = s.engine.Resume()
	case "stop":
		err = s.engine.Stop()
	case "reset":
		s.engine.Reset()
	case "play":
		s.play()
	default:
		s.sendError("unknown command " + cmd.Event)
		return
	}

	if err != nil && !errors.Is(err, recorder.ErrInvalidTransition) {
		if errors.Is(err, capture.ErrPermissionDenied) {
			observability.RecordPermissionDenied()
		}
		observability.RecordError("command", "gateway")
		s.sendError(err.Error())
	}

	s.send(ServerEvent{Event: "state", State: s.engine.State().String()})
}

// play replays the retained artifact. Recording and playback are mutually
// exclusive: the engine must not be actively recording.
func (s *Session) play() {
	switch s.engine.State() {
	case recorder.StateRecording, recorder.StatePaused:
		s.sendError("cannot play while recording")
		return
	}
	if s.player == nil {
		s.sendError("no playback device available")
		return
	}

	artifact, _, ok := s.engine.Last()
	if !ok {
		s.sendError("nothing recorded yet")
		return
	}

	if _, err := s.player.Play(artifact); err != nil {
		observability.RecordPlayback(false)
		s.sendError("playback failed: " + err.Error())
		return
	}
	observability.RecordPlayback(true)
}

// pumpEvents forwards engine events to the UI until the session ends
func (s *Session) pumpEvents(done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case ev := <-s.engine.Events():
			switch ev.Type {
			case recorder.EventStarted:
				s.send(ServerEvent{Event: "started", State: recorder.StateRecording.String()})
			case recorder.EventTelemetry:
				s.send(ServerEvent{Event: "telemetry", Telemetry: ev.Telemetry})
			case recorder.EventStopped:
				s.sendStopped(ev)
			}
		}
	}
}

// sendStopped delivers the finished artifact, its analytics, and the
// optional transcript in one message, mirroring the summary record the
// exam backend stores per answer.
func (s *Session) sendStopped(ev recorder.Event) {
	observability.RecordRecordingStop(
		string(ev.Reason),
		ev.Analytics.DurationSeconds,
		ev.Analytics.SilenceRatio,
		len(ev.Artifact.Data),
	)

	out := ServerEvent{
		Event:     "stopped",
		State:     recorder.StateStopped.String(),
		Reason:    string(ev.Reason),
		Analytics: ev.Analytics,
		MimeType:  ev.Artifact.MimeType,
		Audio:     base64.StdEncoding.EncodeToString(ev.Artifact.Data),
	}

	if s.transcriber != nil && len(ev.Artifact.Data) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), transcribeTimeout)
		result, err := s.transcriber.Transcribe(ctx, ev.Artifact.Data, ev.Artifact.MimeType)
		cancel()
		if err == nil {
			out.Transcript = &TranscriptPayload{Text: result.Text, Confidence: result.Confidence}
		}
		// on error the UI still gets audio and analytics
	}

	s.send(out)
}

func (s *Session) sendError(msg string) {
	s.send(ServerEvent{Event: "error", Error: msg})
}

func (s *Session) send(ev ServerEvent) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteJSON(ev); err != nil {
		s.log.Debug().Err(err).Str("event", ev.Event).Msg("websocket write failed")
	}
}
