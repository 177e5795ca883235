package core

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ReportSink records abuse reports filed with /report.
type ReportSink interface {
	SaveReport(ctx context.Context, reporter, reported string) error
}

// Session is the per-connection actor. A pump goroutine feeds input lines
// into a channel, the actor loop multiplexes lines with bus envelopes, and
// the loop is the sole writer of the outbound stream. Registry and Directory
// locks are never held across a write to the connection.
type Session struct {
	conn    net.Conn
	r       *bufio.Reader
	w       *bufio.Writer
	reg     *Registry
	dir     *Directory
	bus     *Bus
	reports ReportSink
	log     zerolog.Logger

	addr     string
	username string
}

// NewSession wraps an accepted connection. reports may be nil, in which case
// /report is only logged.
func NewSession(conn net.Conn, reg *Registry, dir *Directory, bus *Bus, reports ReportSink, logger *zerolog.Logger) *Session {
	addr := uuid.NewString()
	return &Session{
		conn:    conn,
		r:       bufio.NewReader(conn),
		w:       bufio.NewWriter(conn),
		reg:     reg,
		dir:     dir,
		bus:     bus,
		reports: reports,
		log:     logger.With().Str("addr", addr).Logger(),
		addr:    addr,
	}
}

// Run drives the session through its lifecycle: username handshake, then the
// event loop, then teardown. It returns when the peer disconnects, /exit is
// processed, or ctx is cancelled.
func (s *Session) Run(ctx context.Context) {
	defer s.conn.Close()

	username, err := s.handshake()
	if err != nil {
		s.log.Debug().Err(err).Msg("connection closed during handshake")
		return
	}
	s.username = username
	s.log = s.log.With().Str("user", username).Logger()

	events := s.bus.Subscribe(s.addr)
	defer s.teardown()

	s.bus.Publish(Envelope{
		Tag:    TagSystem,
		Origin: s.addr,
		Text:   fmt.Sprintf("[i] %s connected", username),
	})
	s.log.Info().Msg("user connected")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go s.readLines(ctx, lines, readErr)

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-readErr:
			if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.log.Warn().Err(err).Msg("read error")
			}
			return
		case line := <-lines:
			if !s.dispatch(ctx, line) {
				return
			}
		case env := <-events:
			if !s.wants(env) {
				continue
			}
			if err := s.writeLine(env.Text); err != nil {
				s.log.Warn().Err(err).Msg("write error")
				return
			}
		}
	}
}

// handshake prompts for a username until the client supplies a non-empty one
// that is not already connected. Registration happens here, before the
// session subscribes to the bus.
func (s *Session) handshake() (string, error) {
	for {
		if err := s.writeRaw("Please enter your username: "); err != nil {
			return "", err
		}
		line, err := s.r.ReadString('\n')
		if err != nil {
			return "", err
		}
		name := strings.TrimSpace(line)
		if name == "" {
			continue
		}
		if err := s.reg.Register(name, s.addr); err != nil {
			if werr := s.writeLine(fmt.Sprintf("Username %s is already taken", name)); werr != nil {
				return "", werr
			}
			continue
		}
		return name, nil
	}
}

func (s *Session) readLines(ctx context.Context, lines chan<- string, done chan<- error) {
	for {
		line, err := s.r.ReadString('\n')
		if line != "" {
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			done <- err
			return
		}
	}
}

// wants applies the routing policy for one envelope against this session's
// identity. Room membership is checked live, not against a snapshot.
func (s *Session) wants(env Envelope) bool {
	switch env.Tag {
	case TagPrivate:
		return env.Recipient == s.addr
	case TagGlobal, TagSystem:
		return env.Origin != s.addr
	case TagRoom:
		return env.Origin != s.addr && s.dir.IsMember(env.Room, s.username)
	default:
		return false
	}
}

// teardown deregisters the session and announces the departure. The bus
// subscription is removed first so the notice cannot loop back.
func (s *Session) teardown() {
	s.bus.Unsubscribe(s.addr)
	s.dir.Disconnect(s.username)
	s.bus.Publish(Envelope{
		Tag:    TagSystem,
		Origin: s.addr,
		Text:   fmt.Sprintf("[i] %s disconnected", s.username),
	})
	s.log.Info().Msg("user disconnected")
}

// dispatch interprets one input line. It returns false when the session
// should close (/exit or a failed write).
func (s *Session) dispatch(ctx context.Context, raw string) bool {
	line := strings.TrimRight(raw, "\r\n")
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return true
	}

	var err error
	switch fields[0] {
	case "/help":
		err = s.handleHelp(fields[1:])
	case "/list":
		err = s.handleList()
	case "/report":
		err = s.handleReport(ctx, fields[1:])
	case "/pm":
		err = s.handlePM(fields[1:])
	case "/create_room":
		err = s.handleCreateRoom(fields[1:])
	case "/join_room":
		err = s.handleJoinRoom(fields[1:])
	case "/leave_room":
		err = s.handleLeaveRoom(fields[1:])
	case "/view_rooms":
		err = s.handleViewRooms()
	case "/view_users":
		err = s.handleViewUsers(fields[1:])
	case "/m_room":
		err = s.handleRoomMessage(fields[1:])
	case "/exit":
		return false
	default:
		s.bus.Publish(Envelope{
			Tag:    TagGlobal,
			Origin: s.addr,
			Text:   fmt.Sprintf("[glb] [%s] %s", s.username, line),
		})
	}

	if err != nil {
		s.log.Warn().Err(err).Msg("write error")
		return false
	}
	return true
}

func (s *Session) handleHelp(args []string) error {
	if len(args) == 0 {
		if err := s.writeLine("Available commands:"); err != nil {
			return err
		}
		for _, cmd := range helpOrder {
			if err := s.writeLine("  " + helpTopics[cmd]); err != nil {
				return err
			}
		}
		return nil
	}
	detail, ok := lookupHelp(args[0])
	if !ok {
		return s.writeLine("command not found")
	}
	return s.writeLine(detail)
}

func (s *Session) handleList() error {
	for _, name := range s.reg.List() {
		if err := s.writeLine("[" + name + "]"); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) handleReport(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return s.writeLine("usage: /report <user>")
	}
	reported := args[0]
	if _, ok := s.reg.Find(reported); !ok {
		return s.writeLine(fmt.Sprintf("User %s does not exist", reported))
	}
	s.log.Info().Str("reported", reported).Msg("user reported")
	if s.reports != nil {
		if err := s.reports.SaveReport(ctx, s.username, reported); err != nil {
			s.log.Warn().Err(err).Str("reported", reported).Msg("failed to persist report")
		}
	}
	return nil
}

func (s *Session) handlePM(args []string) error {
	if len(args) < 2 {
		return s.writeLine("usage: /pm <user> <message>")
	}
	target, ok := s.reg.Find(args[0])
	if !ok {
		return s.writeLine("User not found")
	}
	s.bus.Publish(Envelope{
		Tag:       TagPrivate,
		Recipient: target.Address,
		Origin:    s.addr,
		Text:      fmt.Sprintf("[PM] [%s] %s", s.username, strings.Join(args[1:], " ")),
	})
	return nil
}

func (s *Session) handleCreateRoom(args []string) error {
	if len(args) < 1 {
		return s.writeLine("usage: /create_room <name>")
	}
	name := args[0]
	switch err := s.dir.Create(name); {
	case errors.Is(err, ErrRoomNameReserved):
		return s.writeLine(fmt.Sprintf("Room name %s is reserved", name))
	case errors.Is(err, ErrRoomExists):
		return s.writeLine(fmt.Sprintf("Room %s already exists", name))
	case err != nil:
		return s.writeLine(fmt.Sprintf("Could not create room %s", name))
	}
	s.log.Info().Str("room", name).Msg("room created")
	return s.writeLine(fmt.Sprintf("[i] Room %s created", name))
}

func (s *Session) handleJoinRoom(args []string) error {
	if len(args) < 1 {
		return s.writeLine("usage: /join_room <name>")
	}
	name := args[0]
	if err := s.dir.Join(name, s.username); err != nil {
		return s.writeLine(fmt.Sprintf("Room %s does not exist", name))
	}
	s.log.Info().Str("room", name).Msg("joined room")
	return s.writeLine(fmt.Sprintf("[i] Joined room %s", name))
}

func (s *Session) handleLeaveRoom(args []string) error {
	if len(args) < 1 {
		return s.writeLine("usage: /leave_room <name>")
	}
	name := args[0]
	switch err := s.dir.Leave(name, s.username); {
	case errors.Is(err, ErrRoomNotFound):
		return s.writeLine("Room does not exist")
	case errors.Is(err, ErrNotAMember):
		return s.writeLine(fmt.Sprintf("You are not a member of %s", name))
	}
	s.log.Info().Str("room", name).Msg("left room")
	return s.writeLine(fmt.Sprintf("[i] Left room %s", name))
}

func (s *Session) handleViewRooms() error {
	for _, name := range s.dir.ListRooms() {
		if err := s.writeLine("[" + name + "]"); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) handleViewUsers(args []string) error {
	if len(args) < 1 {
		return s.writeLine("usage: /view_users <name>")
	}
	name := args[0]
	members, err := s.dir.Members(name)
	if err != nil {
		return s.writeLine(fmt.Sprintf("Room %s does not exist", name))
	}
	if !s.dir.IsMember(name, s.username) {
		return s.writeLine("[i] Member lists are private. Join room to view.")
	}
	for _, member := range members {
		if err := s.writeLine("[" + member + "]"); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) handleRoomMessage(args []string) error {
	if len(args) < 2 {
		return s.writeLine("usage: /m_room <name> <message>")
	}
	name := args[0]
	if _, err := s.dir.Members(name); err != nil {
		return s.writeLine(fmt.Sprintf("Room %s does not exist", name))
	}
	if !s.dir.IsMember(name, s.username) {
		return s.writeLine(fmt.Sprintf("You are not a member of %s", name))
	}
	s.bus.Publish(Envelope{
		Tag:    TagRoom,
		Room:   name,
		Origin: s.addr,
		Text:   fmt.Sprintf("[%s] [%s] %s", name, s.username, strings.Join(args[1:], " ")),
	})
	return nil
}

func (s *Session) writeLine(text string) error {
	return s.writeRaw(text + "\n")
}

func (s *Session) writeRaw(text string) error {
	if _, err := s.w.WriteString(text); err != nil {
		return err
	}
	return s.w.Flush()
}
