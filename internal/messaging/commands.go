package messaging

import (
	"fmt"
	"strconv"
	"strings"

	"vehicle-led-service/internal/types"
)

type ProfileOp string

const (
	ProfileActivate     ProfileOp = "activate"
	ProfileNext         ProfileOp = "next"
	ProfilePrev         ProfileOp = "prev"
	ProfileDelete       ProfileOp = "delete"
	ProfileCreate       ProfileOp = "create"
	ProfileRename       ProfileOp = "rename"
	ProfileFactoryReset ProfileOp = "factory-reset"
)

// ProfileCommand is a parsed led:profile entry.
type ProfileCommand struct {
	Op   ProfileOp
	ID   int
	Name string
}

// ParseProfileCommand accepts "activate:<id>", "next", "prev", "delete:<id>",
// "create:<name>", "rename:<id>:<name>" and "factory-reset".
func ParseProfileCommand(value string) (ProfileCommand, error) {
	op, arg, _ := strings.Cut(value, ":")
	switch ProfileOp(op) {
	case ProfileNext, ProfilePrev, ProfileFactoryReset:
		if arg != "" {
			return ProfileCommand{}, fmt.Errorf("invalid profile command: %s", value)
		}
		return ProfileCommand{Op: ProfileOp(op)}, nil
	case ProfileActivate, ProfileDelete:
		id, err := strconv.Atoi(arg)
		if err != nil {
			return ProfileCommand{}, fmt.Errorf("invalid profile id in %q: %w", value, err)
		}
		return ProfileCommand{Op: ProfileOp(op), ID: id}, nil
	case ProfileCreate:
		if arg == "" {
			return ProfileCommand{}, fmt.Errorf("missing profile name: %s", value)
		}
		return ProfileCommand{Op: ProfileCreate, Name: arg}, nil
	case ProfileRename:
		idStr, name, ok := strings.Cut(arg, ":")
		if !ok || name == "" {
			return ProfileCommand{}, fmt.Errorf("invalid rename command: %s", value)
		}
		id, err := strconv.Atoi(idStr)
		if err != nil {
			return ProfileCommand{}, fmt.Errorf("invalid profile id in %q: %w", value, err)
		}
		return ProfileCommand{Op: ProfileRename, ID: id, Name: name}, nil
	default:
		return ProfileCommand{}, fmt.Errorf("invalid profile command: %s", value)
	}
}

type EventOp string

const (
	EventStop    EventOp = "stop"
	EventStopAll EventOp = "stop-all"
	EventFire    EventOp = "fire"
)

// EventCommand is a parsed led:event entry.
type EventCommand struct {
	Op    EventOp
	Event types.SemanticEvent
}

// ParseEventCommand accepts "stop:<EVENT>", "stop-all" and "fire:<EVENT>".
func ParseEventCommand(value string) (EventCommand, error) {
	op, arg, _ := strings.Cut(value, ":")
	switch EventOp(op) {
	case EventStopAll:
		if arg != "" {
			return EventCommand{}, fmt.Errorf("invalid event command: %s", value)
		}
		return EventCommand{Op: EventStopAll}, nil
	case EventStop, EventFire:
		ev := types.ParseEvent(arg)
		if !ev.Valid() {
			return EventCommand{}, fmt.Errorf("unknown event %q", arg)
		}
		return EventCommand{Op: EventOp(op), Event: ev}, nil
	default:
		return EventCommand{}, fmt.Errorf("invalid event command: %s", value)
	}
}
