package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shiurfinder/shiurfinder/internal/logging"
	"github.com/shiurfinder/shiurfinder/internal/metrics"
	"github.com/shiurfinder/shiurfinder/internal/models"
	"github.com/shiurfinder/shiurfinder/internal/store"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrRabbiNotFound   = errors.New("rabbi not found")
	ErrShiurIDRequired = errors.New("shiurId is required")
	ErrRabbiIDRequired = errors.New("rabbiId required")
	ErrParashaRequired = errors.New("parasha is required")
	ErrNoteTooLong     = fmt.Errorf("note must be at most %d characters", models.MaxNoteLength)
	ErrUnknownShiurim  = errors.New("selection contains unknown shiurim")
	ErrInvalidShiurID  = errors.New("invalid shiur id")
	ErrUpstreamFailure = errors.New("follower count update failed")
)

// NoteResult tells what UpsertNote did.
type NoteResult string

const (
	NoteSaved     NoteResult = "saved"
	NoteDeleted   NoteResult = "deleted"
	NoteUnchanged NoteResult = "unchanged"
)

// Service reads and writes a user's preferences: interests, favorites,
// follows and notes.
type Service struct {
	store  store.Store
	logger *logging.Logger
	now    func() time.Time
}

func NewService(s store.Store, logger *logging.Logger) *Service {
	return &Service{
		store:  s,
		logger: logger,
		now:    time.Now,
	}
}

// SetInterests replaces the interests set.
func (s *Service) SetInterests(ctx context.Context, userID string, shiurIDs []string) error {
	if err := s.store.SetInterests(ctx, userID, uniqueIDs(shiurIDs)); err != nil {
		return userErr(err, "failed to set interests")
	}
	return nil
}

// SetFavorites replaces the favorites set. Both favorites routes use it.
func (s *Service) SetFavorites(ctx context.Context, userID string, shiurIDs []string) error {
	if err := s.store.SetFavorites(ctx, userID, uniqueIDs(shiurIDs)); err != nil {
		return userErr(err, "failed to set favorites")
	}
	return nil
}

// RemoveFavorite drops one favorite. Removing an absent id succeeds.
func (s *Service) RemoveFavorite(ctx context.Context, userID, shiurID string) error {
	if shiurID == "" {
		return ErrShiurIDRequired
	}
	if err := s.store.RemoveFavorite(ctx, userID, shiurID); err != nil {
		return userErr(err, "failed to remove favorite")
	}
	return nil
}

// UpsertNote keeps at most one note per shiur. Non-empty text overwrites or
// appends; empty text deletes the existing note, if any.
func (s *Service) UpsertNote(ctx context.Context, userID, shiurID, text string) (NoteResult, error) {
	if shiurID == "" {
		return "", ErrShiurIDRequired
	}
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) > models.MaxNoteLength {
		return "", ErrNoteTooLong
	}

	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return "", userErr(err, "failed to get user")
	}

	notes := u.ShiurNotes
	idx := -1
	for i, n := range notes {
		if n.ShiurID == shiurID {
			idx = i
			break
		}
	}

	now := s.now().UTC()
	var result NoteResult
	switch {
	case text == "" && idx < 0:
		return NoteUnchanged, nil
	case text == "":
		notes = append(notes[:idx], notes[idx+1:]...)
		result = NoteDeleted
	case idx >= 0:
		notes[idx].Note = text
		notes[idx].UpdatedAt = now
		result = NoteSaved
	default:
		notes = append(notes, models.ShiurNote{
			ShiurID:   shiurID,
			Note:      text,
			CreatedAt: now,
			UpdatedAt: now,
		})
		result = NoteSaved
	}

	if err := s.store.SaveNotes(ctx, userID, notes); err != nil {
		return "", userErr(err, "failed to save notes")
	}
	return result, nil
}

// Follow adds the rabbi to the user's following set and bumps the rabbi's
// follower count, but only the first time. If the count update fails the
// following entry is removed again so the two stay in step.
func (s *Service) Follow(ctx context.Context, userID, rabbiID string) error {
	if rabbiID == "" {
		return ErrRabbiIDRequired
	}

	if _, err := s.store.GetRabbi(ctx, rabbiID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrRabbiNotFound
		}
		return fmt.Errorf("failed to get rabbi: %w", err)
	}

	added, err := s.store.AddFollowing(ctx, userID, rabbiID)
	if err != nil {
		return userErr(err, "failed to add following")
	}
	if !added {
		return nil
	}

	if err := s.store.AdjustFollowers(ctx, rabbiID, 1); err != nil {
		_, undoErr := s.store.RemoveFollowing(ctx, userID, rabbiID)
		s.recordCompensation(ctx, "follow", userID, rabbiID, err, undoErr)
		return fmt.Errorf("%w: %w", ErrUpstreamFailure, errors.Join(err, undoErr))
	}

	metrics.FollowChangesTotal.WithLabelValues("follow").Inc()
	return nil
}

// Unfollow removes the rabbi from the following set and decrements the
// follower count only when an entry was actually removed.
func (s *Service) Unfollow(ctx context.Context, userID, rabbiID string) error {
	if rabbiID == "" {
		return ErrRabbiIDRequired
	}

	removed, err := s.store.RemoveFollowing(ctx, userID, rabbiID)
	if err != nil {
		return userErr(err, "failed to remove following")
	}
	if !removed {
		return nil
	}

	if err := s.store.AdjustFollowers(ctx, rabbiID, -1); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// The rabbi is gone; there is no counter left to keep in step.
			s.logger.Warn("unfollowed a rabbi that no longer exists", "user_id", userID, "rabbi_id", rabbiID)
			metrics.FollowChangesTotal.WithLabelValues("unfollow").Inc()
			return nil
		}
		_, undoErr := s.store.AddFollowing(ctx, userID, rabbiID)
		s.recordCompensation(ctx, "unfollow", userID, rabbiID, err, undoErr)
		return fmt.Errorf("%w: %w", ErrUpstreamFailure, errors.Join(err, undoErr))
	}

	metrics.FollowChangesTotal.WithLabelValues("unfollow").Inc()
	return nil
}

func (s *Service) recordCompensation(ctx context.Context, action, userID, rabbiID string, cause, undoErr error) {
	logger := logging.GetLoggerFromContext(ctx)
	if undoErr != nil {
		metrics.CompensationsTotal.WithLabelValues(action, "failed").Inc()
		logger.Error("follower count update failed and could not be undone",
			"action", action,
			"user_id", userID,
			"rabbi_id", rabbiID,
			"error", cause.Error(),
			"undo_error", undoErr.Error(),
		)
		return
	}
	metrics.CompensationsTotal.WithLabelValues(action, "ok").Inc()
	logger.Warn("follower count update failed, following change undone",
		"action", action,
		"user_id", userID,
		"rabbi_id", rabbiID,
		"error", cause.Error(),
	)
}

// FavoritesByParasha returns the user's favorites whose parasha equals
// parasha exactly.
func (s *Service) FavoritesByParasha(ctx context.Context, userID, parasha string) ([]models.Shiur, error) {
	if parasha == "" {
		return nil, ErrParashaRequired
	}

	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, userErr(err, "failed to get user")
	}
	if len(u.Favorites) == 0 {
		return []models.Shiur{}, nil
	}

	shiurim, err := s.store.ListShiurim(ctx, store.ShiurFilter{IDs: u.Favorites, Parasha: parasha})
	if err != nil {
		return nil, fmt.Errorf("failed to list shiurim: %w", err)
	}
	return shiurim, nil
}

// OnboardingStatus is where a user stands in the wizard.
type OnboardingStatus struct {
	Stage     Stage `json:"stage"`
	Interests int   `json:"interests"`
	Favorites int   `json:"favorites"`
}

func (s *Service) OnboardingStatus(ctx context.Context, userID string) (*OnboardingStatus, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, userErr(err, "failed to get user")
	}
	return &OnboardingStatus{
		Stage:     StageOf(len(u.Interests), len(u.Favorites)),
		Interests: len(u.Interests),
		Favorites: len(u.Favorites),
	}, nil
}

// CompleteOnboarding runs both wizard steps and saves interests and
// favorites in a single write, so a failure never leaves one set saved
// without the other.
func (s *Service) CompleteOnboarding(ctx context.Context, userID string, interests, favorites []string) (*OnboardingStatus, error) {
	wizard := NewOnboarding()
	if err := wizard.ChooseInterests(interests); err != nil {
		return nil, err
	}
	if err := wizard.ChooseFavorites(favorites); err != nil {
		return nil, err
	}
	chosenInterests, chosenFavorites, _ := wizard.Selections()

	found, err := s.store.ListShiurim(ctx, store.ShiurFilter{IDs: chosenInterests})
	if err != nil {
		return nil, fmt.Errorf("failed to list shiurim: %w", err)
	}
	if len(found) != len(chosenInterests) {
		return nil, ErrUnknownShiurim
	}

	if err := s.store.SetSelections(ctx, userID, chosenInterests, chosenFavorites); err != nil {
		return nil, userErr(err, "failed to save selections")
	}

	return &OnboardingStatus{
		Stage:     wizard.Stage(),
		Interests: len(chosenInterests),
		Favorites: len(chosenFavorites),
	}, nil
}

// userErr maps a store miss on the user document to ErrUserNotFound and a
// rejected shiur id to ErrInvalidShiurID.
func userErr(err error, msg string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ErrUserNotFound
	case errors.Is(err, store.ErrInvalidID):
		return fmt.Errorf("%w: %w", ErrInvalidShiurID, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
