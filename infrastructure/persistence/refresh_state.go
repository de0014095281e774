package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/dupdex/dupdex/domain/issue"
	"github.com/dupdex/dupdex/internal/database"
)

// watermarkStore implements the per-repository refresh watermark shared by
// both embedding store backends. Writes only advance the watermark; moving it
// backwards requires an explicit reset.
type watermarkStore struct {
	db database.Database
}

func (s watermarkStore) RefreshState(ctx context.Context, repo issue.RepoName) (time.Time, error) {
	var model RefreshStateModel
	result := s.db.Session(ctx).Where("repo = ?", repo.String()).First(&model)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("read refresh state: %w", result.Error)
	}
	return model.Watermark, nil
}

func (s watermarkStore) SetRefreshState(ctx context.Context, repo issue.RepoName, t time.Time) error {
	err := database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		var model RefreshStateModel
		result := tx.Where("repo = ?", repo.String()).First(&model)
		if result.Error != nil {
			if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return result.Error
			}
			return tx.Create(&RefreshStateModel{Repo: repo.String(), Watermark: t}).Error
		}

		if !t.After(model.Watermark) {
			return nil
		}
		return tx.Model(&RefreshStateModel{}).
			Where("repo = ?", repo.String()).
			Update("watermark", t).Error
	})
	if err != nil {
		return fmt.Errorf("set refresh state: %w", err)
	}
	return nil
}

func (s watermarkStore) ResetRefreshState(ctx context.Context, repo issue.RepoName) error {
	result := s.db.Session(ctx).
		Where("repo = ?", repo.String()).
		Delete(&RefreshStateModel{})
	if result.Error != nil {
		return fmt.Errorf("reset refresh state: %w", result.Error)
	}
	return nil
}
