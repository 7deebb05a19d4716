// Package filestore persists rendered artifacts (invoice and reminder
// documents) as blob rows keyed by uuid.
package filestore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/smallbiznis/faktura/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// File is one stored artifact.
type File struct {
	ID        string    `gorm:"primaryKey;type:text"`
	Name      string    `gorm:"type:text;not null"`
	Mime      string    `gorm:"type:text;not null"`
	Size      int64     `gorm:"not null"`
	Content   []byte    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (File) TableName() string { return "files" }

type Store struct {
	log      *zap.Logger
	fileRepo repository.Repository[File]
}

type StoreParam struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

func NewStore(p StoreParam) *Store {
	return &Store{
		log:      p.Log.Named("filestore"),
		fileRepo: repository.ProvideStore[File](p.DB),
	}
}

// Save persists content and returns the created file handle.
func (s *Store) Save(ctx context.Context, tx *gorm.DB, name string, content []byte, mime string) (File, error) {
	file := File{
		ID:      uuid.NewString(),
		Name:    name,
		Mime:    mime,
		Size:    int64(len(content)),
		Content: content,
	}
	repo := s.fileRepo
	if tx != nil {
		repo = repo.WithTrx(tx)
	}
	if err := repo.Create(ctx, &file); err != nil {
		return File{}, err
	}
	return file, nil
}

// Get loads a stored file by id.
func (s *Store) Get(ctx context.Context, id string) (*File, error) {
	return s.fileRepo.FindOne(ctx, &File{ID: id})
}

var Module = fx.Module("filestore",
	fx.Provide(NewStore),
)
