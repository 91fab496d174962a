package core

import (
	"errors"
	"fmt"
	"time"

	"vehicle-led-service/internal/messaging"
)

// handleProfileCommand handles led:profile commands from Redis
func (s *LightingSystem) handleProfileCommand(cmd messaging.ProfileCommand) error {
	s.logger.Debugf("Handling profile command: %s", cmd.Op)

	switch cmd.Op {
	case messaging.ProfileActivate:
		return s.arbiter.ActivateProfile(cmd.ID)

	case messaging.ProfileNext, messaging.ProfilePrev:
		dir := 1
		if cmd.Op == messaging.ProfilePrev {
			dir = -1
		}
		id, err := s.profiles.Cycle(dir)
		if err != nil {
			return err
		}
		s.logger.Infof("Cycled to profile %d", id)
		return nil

	case messaging.ProfileDelete:
		return s.profiles.Delete(cmd.ID)

	case messaging.ProfileCreate:
		id, err := s.profiles.Create(cmd.Name, nil)
		if err != nil {
			return err
		}
		s.logger.Infof("Created profile %d %q", id, cmd.Name)
		return nil

	case messaging.ProfileRename:
		return s.profiles.Rename(cmd.ID, cmd.Name)

	case messaging.ProfileFactoryReset:
		s.logger.Infof("Factory reset requested")
		s.arbiter.StopAll()
		return s.profiles.FactoryReset()

	default:
		return fmt.Errorf("invalid profile command: %s", cmd.Op)
	}
}

// handleEventCommand handles led:event commands from Redis
func (s *LightingSystem) handleEventCommand(cmd messaging.EventCommand) error {
	s.logger.Debugf("Handling event command: %s %s", cmd.Op, cmd.Event)

	switch cmd.Op {
	case messaging.EventStop:
		if !s.arbiter.Stop(cmd.Event) {
			s.logger.Debugf("%s was not active", cmd.Event)
		}
		return nil

	case messaging.EventStopAll:
		s.logger.Infof("Stopped %d overrides", s.arbiter.StopAll())
		return nil

	case messaging.EventFire:
		outcome, err := s.arbiter.HandleEvent(cmd.Event, time.Now())
		if err != nil {
			return err
		}
		s.logger.Infof("Injected %s: %s", cmd.Event, outcome)
		return nil

	default:
		return fmt.Errorf("invalid event command: %s", cmd.Op)
	}
}

// handleImport imports a profile document into a free slot
func (s *LightingSystem) handleImport(doc []byte) error {
	id, err := s.profiles.ImportNew(doc)
	if err != nil {
		return fmt.Errorf("failed to import profile: %w", err)
	}
	s.logger.Infof("Imported profile %d", id)
	return nil
}

func (s *LightingSystem) handleExport(id int) ([]byte, error) {
	return s.profiles.Export(id)
}

// handleProfileUpdated reloads a profile another service edited in Redis.
// A removed document deletes the profile.
func (s *LightingSystem) handleProfileUpdated(id int) error {
	doc, err := s.redis.LoadProfile(id)
	if errors.Is(err, messaging.ErrNoProfile) {
		if _, getErr := s.profiles.Get(id); getErr != nil {
			return nil
		}
		s.logger.Infof("Profile %d removed externally", id)
		return s.profiles.Delete(id)
	}
	if err != nil {
		return err
	}
	if err := s.profiles.Import(id, doc); err != nil {
		return fmt.Errorf("failed to reload profile %d: %w", id, err)
	}
	s.logger.Infof("Reloaded profile %d", id)
	return nil
}
