package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"marzsell/internal/models"
)

// NoteRepository handles subscription note database operations.
type NoteRepository struct {
	db *gorm.DB
}

func NewNoteRepository(db *gorm.DB) *NoteRepository {
	return &NoteRepository{db: db}
}

// Upsert inserts or refreshes the note row for a panel username.
func (r *NoteRepository) Upsert(note *models.SubscriptionNote) error {
	note.UpdatedAt = time.Now()
	return r.db.Save(note).Error
}

// FindByUsername returns the note for a username, or nil when absent.
func (r *NoteRepository) FindByUsername(username string) (*models.SubscriptionNote, error) {
	var note models.SubscriptionNote
	if err := r.db.Where("username = ?", username).First(&note).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &note, nil
}

// FindByUserID returns all notes linked to a Telegram user.
func (r *NoteRepository) FindByUserID(userID string) ([]models.SubscriptionNote, error) {
	var notes []models.SubscriptionNote
	err := r.db.Where("user_id = ?", userID).Find(&notes).Error
	return notes, err
}
