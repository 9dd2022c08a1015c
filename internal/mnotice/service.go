// Package mnotice fans task events out to per-user notifications and tracks who has read them.
package mnotice

import (
	"context"
	"strings"

	"kyri56xcaesar/taskhub/internal/apperr"
	"kyri56xcaesar/taskhub/internal/models"
	"kyri56xcaesar/taskhub/internal/utils"
)

const (
	ModeAll = "all"
	ModeOne = "one"
)

type Store interface {
	InsertNotice(ctx context.Context, n *models.Notice) error
	ListNotices(ctx context.Context, userID string) ([]models.Notice, error)
	MarkAllNoticesRead(ctx context.Context, userID string) (int64, error)
	MarkNoticeRead(ctx context.Context, userID, id string) (models.Notice, error)
	DeleteAllNotices(ctx context.Context, userID string) (int64, error)
	DeleteNotice(ctx context.Context, userID, id string) error
}

type Service struct {
	store Store
}

func NewService(s Store) *Service {
	return &Service{store: s}
}

// Create stores a notice with an empty read-state.
func (s *Service) Create(ctx context.Context, team []string, text, taskID string) (models.Notice, error) {
	n, err := Prepare(models.Notice{Team: team, Text: text, TaskID: taskID})
	if err != nil {
		return models.Notice{}, err
	}
	if err := s.store.InsertNotice(ctx, &n); err != nil {
		return models.Notice{}, err
	}

	return n, nil
}

// Prepare normalizes a notice before it is written, alone or inside a task mutation.
func Prepare(n models.Notice) (models.Notice, error) {
	n.Team = utils.Uniq(n.Team)
	n.Text = strings.TrimSpace(n.Text)
	n.IsRead = []string{}

	if len(n.Team) == 0 {
		return models.Notice{}, apperr.Validation("notification needs at least one recipient")
	}
	if n.Text == "" {
		return models.Notice{}, apperr.Validation("notification text is required")
	}

	return n, nil
}

// ListFor returns every notice addressed to userID, newest first. unreadOnly drops
// the ones the user has already read.
func (s *Service) ListFor(ctx context.Context, userID string, unreadOnly bool) ([]models.Notice, error) {
	all, err := s.store.ListNotices(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !unreadOnly {
		return all, nil
	}

	return utils.Filter(all, func(n models.Notice) bool { return !n.ReadBy(userID) }), nil
}

// MarkRead is monotonic: it only ever adds userID to a read-state set.
// It returns how many notices changed.
func (s *Service) MarkRead(ctx context.Context, userID, mode, noticeID string) (int64, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case ModeAll:
		return s.store.MarkAllNoticesRead(ctx, userID)
	case ModeOne, "":
		if strings.TrimSpace(noticeID) == "" {
			return 0, apperr.Validation("notification id is required")
		}
		if _, err := s.store.MarkNoticeRead(ctx, userID, noticeID); err != nil {
			return 0, err
		}
		return 1, nil
	default:
		return 0, apperr.Validation("invalid read type %q", mode)
	}
}

// Delete removes one notice, or every notice addressed to userID when idOrAll is "all".
func (s *Service) Delete(ctx context.Context, userID, idOrAll string) (int64, error) {
	idOrAll = strings.TrimSpace(idOrAll)
	switch idOrAll {
	case "":
		return 0, apperr.Validation("notification id is required")
	case ModeAll:
		return s.store.DeleteAllNotices(ctx, userID)
	default:
		if err := s.store.DeleteNotice(ctx, userID, idOrAll); err != nil {
			return 0, err
		}
		return 1, nil
	}
}
