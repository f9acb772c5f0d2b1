// Package registry owns the room map: it turns formed matches into live room
// actors, binds connecting clients to the right one and retires rooms that
// reach their terminal phase. Like the rooms it manages, it is a
// single-goroutine actor with a typed inbox.
package registry

import (
	"context"

	"go.uber.org/zap"

	"github.com/brainclash/backend/internal/engine"
	"github.com/brainclash/backend/internal/questions"
	"github.com/brainclash/backend/internal/room"
)

type Msg interface{ isRegistryMsg() }

// Match is a formed pair handed over by matchmaking. Creator holds the first
// turn.
type Match struct {
	RoomID   string
	Creator  engine.PlayerInfo
	Opponent engine.PlayerInfo
}

type CreateRoom struct {
	Match Match
	Reply chan *room.Room
}

type GetRoom struct {
	RoomID string
	Reply  chan *room.Room
}

type RemoveRoom struct{ RoomID string }

type ShutdownAll struct{}

func (CreateRoom) isRegistryMsg()  {}
func (GetRoom) isRegistryMsg()     {}
func (RemoveRoom) isRegistryMsg()  {}
func (ShutdownAll) isRegistryMsg() {}

type Registry struct {
	inbox chan Msg
	rooms map[string]*room.Room

	cfg  room.Config
	bank questions.Bank
	sink room.ResultSink
	log  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

func New(parent context.Context, log *zap.Logger, cfg room.Config, bank questions.Bank, sink room.ResultSink) *Registry {
	ctx, cancel := context.WithCancel(parent)
	r := &Registry{
		inbox:  make(chan Msg, 64),
		rooms:  make(map[string]*room.Room),
		cfg:    cfg,
		bank:   bank,
		sink:   sink,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
	go r.loop()
	return r
}

func (r *Registry) Inbox() chan<- Msg { return r.inbox }

func (r *Registry) loop() {
	for {
		select {
		case <-r.ctx.Done():
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case CreateRoom:
				if rm := r.rooms[msg.Match.RoomID]; rm != nil {
					msg.Reply <- rm
					break
				}
				rm, err := r.spawn(msg.Match)
				if err != nil {
					r.log.Error("room creation failed",
						zap.String("room", msg.Match.RoomID), zap.Error(err))
					msg.Reply <- nil
					break
				}
				r.rooms[msg.Match.RoomID] = rm
				msg.Reply <- rm

			case GetRoom:
				msg.Reply <- r.rooms[msg.RoomID] // may be nil

			case RemoveRoom:
				delete(r.rooms, msg.RoomID)

			case ShutdownAll:
				for _, rm := range r.rooms {
					rm.Inbox() <- room.Shutdown{}
				}
				clear(r.rooms)
				r.cancel()
			}
		}
	}
}

// spawn deals both hands and starts the room actor. The onClose hook routes
// the room's self-retirement back through this actor, so the map is only ever
// touched here.
func (r *Registry) spawn(m Match) (*room.Room, error) {
	var hands [2][]questions.Card
	for i := range hands {
		cards, err := r.bank.Draw(r.ctx, r.cfg.HandSize, nil)
		if err != nil {
			return nil, err
		}
		hands[i] = cards
	}

	state := engine.NewState(m.RoomID, m.Creator, m.Opponent, r.cfg.MaxHP, hands)
	onClose := func(roomID string) {
		select {
		case r.inbox <- RemoveRoom{RoomID: roomID}:
		case <-r.ctx.Done():
		}
	}
	return room.New(r.ctx, r.log, r.cfg, state, r.bank, r.sink, onClose), nil
}
