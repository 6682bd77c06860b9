// Package ws carries the binary packet protocol over websocket frames. Each
// frame is one packet: a VarInt packet id followed by the packet payload.
package ws

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"opalcraft.gg/internal/advancement"
	"opalcraft.gg/internal/protocol"
	"opalcraft.gg/internal/resource"
)

// ErrQueueFull reports a session whose outbound queue is not draining.
var ErrQueueFull = errors.New("session send queue full")

// Encoder is any clientbound packet body.
type Encoder interface {
	Encode(w *protocol.Writer)
}

// Frame assembles one wire frame: VarInt packet id, then the payload.
func Frame(id protocol.PacketID, pkt Encoder) []byte {
	w := protocol.NewWriter()
	w.VarInt(int32(id))
	pkt.Encode(w)
	return w.Bytes()
}

// ProgressStore persists per-player advancement progress across sessions.
type ProgressStore interface {
	Load(playerID string, reg *advancement.Registry) (map[resource.ID]*advancement.Progress, error)
	Save(playerID string, progress map[resource.ID]*advancement.Progress) error
}

// Session is one connected player.
type Session struct {
	ID      uuid.UUID
	Player  string
	Tracker *advancement.Tracker

	out chan []byte
}

// Send queues one packet without blocking. A full queue returns ErrQueueFull
// and drops nothing already queued.
func (s *Session) Send(id protocol.PacketID, pkt Encoder) error {
	select {
	case s.out <- Frame(id, pkt):
		return nil
	default:
		return ErrQueueFull
	}
}

type Server struct {
	handle *advancement.Handle
	syncer *advancement.Syncer
	store  ProgressStore
	log    *log.Logger

	flushEvery time.Duration
	upgrader   websocket.Upgrader

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewServer(handle *advancement.Handle, syncer *advancement.Syncer, store ProgressStore, flushEvery time.Duration, logger *log.Logger) *Server {
	return &Server{
		handle:     handle,
		syncer:     syncer,
		store:      store,
		log:        logger,
		flushEvery: flushEvery,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		sessions: make(map[string]*Session),
	}
}

// Session returns the online session for a player name, if any.
func (s *Server) Session(player string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[player]
	return sess, ok
}

// Lookup resolves a command target selector to online trackers. "@a" and "*"
// select everyone; otherwise the selector is a comma-separated name list.
func (s *Server) Lookup(selector string) map[string]*advancement.Tracker {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]*advancement.Tracker)
	if selector == "@a" || selector == "*" {
		for name, sess := range s.sessions {
			out[name] = sess.Tracker
		}
		return out
	}
	for _, name := range strings.Split(selector, ",") {
		if sess, ok := s.sessions[name]; ok {
			out[name] = sess.Tracker
		}
	}
	return out
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		player := r.URL.Query().Get("player")
		if player == "" {
			http.Error(rw, "missing player", http.StatusBadRequest)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sess, err := s.join(player)
		if err != nil {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()), time.Now().Add(time.Second))
			return
		}
		s.log.Printf("player %s joined (session %s)", player, sess.ID)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-sess.out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Periodic flush. The tracker joins marked for reset, so the first
		// tick carries the full definition and progress snapshot.
		go func() {
			t := time.NewTicker(s.flushEvery)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					if err := s.syncer.Flush(ctx, sess.Tracker, s.sender(sess)); err != nil && ctx.Err() == nil {
						s.log.Printf("player %s: flush: %v", player, err)
					}
				}
			}
		}()

		s.sendBookState(sess)

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			if err := s.handlePacket(sess, msg); err != nil {
				s.log.Printf("player %s: %v", player, err)
			}
		}

		s.leave(sess)
	}
}

func (s *Server) join(player string) (*Session, error) {
	tr := advancement.NewTracker()
	if s.store != nil {
		progress, err := s.store.Load(player, s.handle.Snapshot())
		if err != nil {
			s.log.Printf("player %s: load progress: %v (starting empty)", player, err)
		} else {
			tr.LoadProgress(progress)
		}
	}
	tr.MarkNeedsReset()

	sess := &Session{
		ID:      uuid.New(),
		Player:  player,
		Tracker: tr,
		out:     make(chan []byte, 64),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[player]; ok {
		return nil, errors.New("already connected")
	}
	s.sessions[player] = sess
	return sess, nil
}

func (s *Server) leave(sess *Session) {
	s.mu.Lock()
	delete(s.sessions, sess.Player)
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.Save(sess.Player, sess.Tracker.SaveProgress()); err != nil {
			s.log.Printf("player %s: save progress: %v", sess.Player, err)
		}
	}
	s.log.Printf("player %s left (session %s)", sess.Player, sess.ID)
}

func (s *Server) sender(sess *Session) advancement.Sender {
	return func(ctx context.Context, pkt *protocol.UpdateAdvancements) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return sess.Send(protocol.ClientboundUpdateAdvancements, pkt)
	}
}

func (s *Server) sendBookState(sess *Session) {
	settings := sess.Tracker.BookSettings()
	pkt := &protocol.RecipeBookSettings{
		CraftingOpen:       settings[advancement.BookCrafting].Open,
		CraftingFilter:     settings[advancement.BookCrafting].FilterActive,
		FurnaceOpen:        settings[advancement.BookFurnace].Open,
		FurnaceFilter:      settings[advancement.BookFurnace].FilterActive,
		BlastFurnaceOpen:   settings[advancement.BookBlastFurnace].Open,
		BlastFurnaceFilter: settings[advancement.BookBlastFurnace].FilterActive,
		SmokerOpen:         settings[advancement.BookSmoker].Open,
		SmokerFilter:       settings[advancement.BookSmoker].FilterActive,
	}
	if err := sess.Send(protocol.ClientboundRecipeBookSettings, pkt); err != nil {
		s.log.Printf("player %s: book settings: %v", sess.Player, err)
	}
}

// handlePacket decodes and applies one serverbound frame. Malformed frames
// are reported and skipped; the connection stays up.
func (s *Server) handlePacket(sess *Session, frame []byte) error {
	r := protocol.NewReader(frame)
	id, err := r.VarInt()
	if err != nil {
		return err
	}
	switch protocol.PacketID(id) {
	case protocol.ServerboundSeenAdvancements:
		pkt, err := protocol.DecodeSeenAdvancements(r)
		if err != nil {
			return err
		}
		if pkt.Action == protocol.SeenOpenedTab {
			tab := pkt.Tab
			sess.Tracker.SetCurrentTab(&tab)
		} else {
			sess.Tracker.SetCurrentTab(nil)
		}
		return nil
	case protocol.ServerboundChangeBookSettings:
		pkt, err := protocol.DecodeChangeRecipeBookSettings(r)
		if err != nil {
			return err
		}
		sess.Tracker.SetBookSettings(advancement.RecipeBookType(pkt.Book), pkt.Open, pkt.FilterActive)
		return nil
	case protocol.ServerboundSeenRecipe:
		pkt, err := protocol.DecodeSeenRecipe(r)
		if err != nil {
			return err
		}
		sess.Tracker.MarkRecipeSeen(pkt.Recipe)
		return nil
	default:
		return errors.New("unknown serverbound packet id")
	}
}
