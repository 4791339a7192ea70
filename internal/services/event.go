package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/inventariopro/inventariopro/internal/models"
	"github.com/inventariopro/inventariopro/validation"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// EventService manages events and their rooms.
type EventService struct {
	DB  *gorm.DB
	Log *zap.Logger
}

func NewEventService(db *gorm.DB, log *zap.Logger) *EventService {
	if log == nil {
		log = zap.NewNop()
	}
	return &EventService{DB: db, Log: log}
}

type EventInput struct {
	Name        string
	Location    string
	StartDate   *time.Time
	EndDate     *time.Time
	Description string
}

func (in *EventInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Location = strings.TrimSpace(in.Location)
	v := validation.Violations{}
	validation.Required("name", in.Name, v)
	validation.MaxLen("name", in.Name, 255, v)
	validation.MaxLen("location", in.Location, 255, v)
	if in.StartDate != nil && in.EndDate != nil && in.EndDate.Before(*in.StartDate) {
		v["end_date"] = "before_start_date"
	}
	return v.Err()
}

func (s *EventService) CreateEvent(ctx context.Context, in EventInput) (*models.Event, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	e := models.Event{Name: in.Name, Location: in.Location, StartDate: in.StartDate, EndDate: in.EndDate, Description: in.Description}
	if err := s.DB.WithContext(ctx).Create(&e).Error; err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	s.Log.Info("event created", zap.Uint("event_id", e.ID))
	return &e, nil
}

func (s *EventService) ListEvents(ctx context.Context) ([]models.Event, error) {
	var out []models.Event
	if err := s.DB.WithContext(ctx).Order("start_date DESC").Order("id DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return out, nil
}

// GetEvent returns the event with its rooms.
func (s *EventService) GetEvent(ctx context.Context, id uint) (*models.Event, error) {
	var e models.Event
	err := s.DB.WithContext(ctx).
		Preload("Rooms", func(db *gorm.DB) *gorm.DB { return db.Order("name") }).
		First(&e, id).Error
	if err != nil {
		return nil, lookupErr(err, "event", id)
	}
	return &e, nil
}

func (s *EventService) UpdateEvent(ctx context.Context, id uint, in EventInput) (*models.Event, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	db := s.DB.WithContext(ctx)
	if err := mustExist(db, &models.Event{}, id, "event"); err != nil {
		return nil, err
	}
	err := db.Model(&models.Event{ID: id}).
		Select("Name", "Location", "StartDate", "EndDate", "Description").
		Updates(models.Event{Name: in.Name, Location: in.Location, StartDate: in.StartDate, EndDate: in.EndDate, Description: in.Description}).Error
	if err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	return s.GetEvent(ctx, id)
}

// DeleteEvent removes the event with its rooms, room stock and proposals.
// Room stock is not returned to global stock.
func (s *EventService) DeleteEvent(ctx context.Context, id uint) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := mustExist(tx, &models.Event{}, id, "event"); err != nil {
			return err
		}
		proposals := tx.Model(&models.Proposal{}).Select("id").Where("event_id = ?", id)
		if err := tx.Where("proposal_id IN (?)", proposals).Delete(&models.ProposalItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("event_id = ?", id).Delete(&models.Proposal{}).Error; err != nil {
			return err
		}
		rooms := tx.Model(&models.Room{}).Select("id").Where("event_id = ?", id)
		if err := tx.Where("room_id IN (?)", rooms).Delete(&models.RoomStock{}).Error; err != nil {
			return err
		}
		if err := tx.Where("event_id = ?", id).Delete(&models.Room{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Event{}, id).Error
	})
	if err != nil {
		return err
	}
	s.Log.Info("event deleted", zap.Uint("event_id", id))
	return nil
}

func validateRoomName(name string) error {
	v := validation.Violations{}
	validation.Required("name", name, v)
	validation.MaxLen("name", name, 100, v)
	return v.Err()
}

func (s *EventService) ListRooms(ctx context.Context, eventID uint) ([]models.Room, error) {
	db := s.DB.WithContext(ctx)
	if err := mustExist(db, &models.Event{}, eventID, "event"); err != nil {
		return nil, err
	}
	var out []models.Room
	if err := db.Where("event_id = ?", eventID).Order("name").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return out, nil
}

func (s *EventService) CreateRoom(ctx context.Context, eventID uint, name string) (*models.Room, error) {
	name = strings.TrimSpace(name)
	if err := validateRoomName(name); err != nil {
		return nil, err
	}
	db := s.DB.WithContext(ctx)
	if err := mustExist(db, &models.Event{}, eventID, "event"); err != nil {
		return nil, err
	}
	r := models.Room{Name: name, EventID: eventID}
	if err := db.Create(&r).Error; err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}
	return &r, nil
}

// GetRoom returns the room with its stock lines.
func (s *EventService) GetRoom(ctx context.Context, id uint) (*models.Room, error) {
	var r models.Room
	if err := s.DB.WithContext(ctx).Preload("Stock.Product").First(&r, id).Error; err != nil {
		return nil, lookupErr(err, "room", id)
	}
	return &r, nil
}

// RenameRoom is the only room update; a room never changes event.
func (s *EventService) RenameRoom(ctx context.Context, id uint, name string) (*models.Room, error) {
	name = strings.TrimSpace(name)
	if err := validateRoomName(name); err != nil {
		return nil, err
	}
	var r models.Room
	db := s.DB.WithContext(ctx)
	if err := db.First(&r, id).Error; err != nil {
		return nil, lookupErr(err, "room", id)
	}
	if err := db.Model(&r).Update("name", name).Error; err != nil {
		return nil, fmt.Errorf("rename room: %w", err)
	}
	r.Name = name
	return &r, nil
}

// DeleteRoom removes the room, its stock lines and the proposal items placed in it.
func (s *EventService) DeleteRoom(ctx context.Context, id uint) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := mustExist(tx, &models.Room{}, id, "room"); err != nil {
			return err
		}
		if err := tx.Where("room_id = ?", id).Delete(&models.ProposalItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_id = ?", id).Delete(&models.RoomStock{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Room{}, id).Error
	})
}
