package user

import (
	"errors"
	"fmt"
)

// Selection bounds of the onboarding wizard.
const (
	MinInterests = 20
	MaxInterests = 30
	MinFavorites = 5
	MaxFavorites = 10
)

// Stage is a step of the onboarding wizard.
type Stage string

const (
	StageSelectingInterests Stage = "selecting_interests"
	StageSelectingFavorites Stage = "selecting_favorites"
	StageComplete           Stage = "complete"
)

var (
	ErrWrongStage       = errors.New("onboarding step not allowed at this stage")
	ErrInvalidSelection = errors.New("invalid onboarding selection")
)

// Onboarding walks a user through picking interests and then favorites.
// It holds no I/O; the caller persists the result once Stage is Complete.
type Onboarding struct {
	stage     Stage
	interests []string
	favorites []string
}

func NewOnboarding() *Onboarding {
	return &Onboarding{stage: StageSelectingInterests}
}

func (o *Onboarding) Stage() Stage {
	return o.stage
}

// ChooseInterests accepts MinInterests to MaxInterests distinct shiur ids and
// moves on to favorites.
func (o *Onboarding) ChooseInterests(ids []string) error {
	if o.stage != StageSelectingInterests {
		return fmt.Errorf("%w: %s", ErrWrongStage, o.stage)
	}

	ids = uniqueIDs(ids)
	if len(ids) < MinInterests || len(ids) > MaxInterests {
		return fmt.Errorf("%w: choose between %d and %d interests, got %d",
			ErrInvalidSelection, MinInterests, MaxInterests, len(ids))
	}

	o.interests = ids
	o.stage = StageSelectingFavorites
	return nil
}

// ChooseFavorites accepts MinFavorites to MaxFavorites distinct ids, each one
// of the chosen interests, and completes the wizard.
func (o *Onboarding) ChooseFavorites(ids []string) error {
	if o.stage != StageSelectingFavorites {
		return fmt.Errorf("%w: %s", ErrWrongStage, o.stage)
	}

	ids = uniqueIDs(ids)
	if len(ids) < MinFavorites || len(ids) > MaxFavorites {
		return fmt.Errorf("%w: choose between %d and %d favorites, got %d",
			ErrInvalidSelection, MinFavorites, MaxFavorites, len(ids))
	}

	chosen := make(map[string]bool, len(o.interests))
	for _, id := range o.interests {
		chosen[id] = true
	}
	for _, id := range ids {
		if !chosen[id] {
			return fmt.Errorf("%w: favorite %s is not among the chosen interests", ErrInvalidSelection, id)
		}
	}

	o.favorites = ids
	o.stage = StageComplete
	return nil
}

// BackToInterests returns from the favorites step, keeping nothing.
func (o *Onboarding) BackToInterests() error {
	if o.stage != StageSelectingFavorites {
		return fmt.Errorf("%w: %s", ErrWrongStage, o.stage)
	}
	o.interests = nil
	o.stage = StageSelectingInterests
	return nil
}

// Selections returns the chosen sets once the wizard is complete.
func (o *Onboarding) Selections() (interests, favorites []string, ok bool) {
	if o.stage != StageComplete {
		return nil, nil, false
	}
	return o.interests, o.favorites, true
}

// StageOf infers where a stored user stands in the wizard from the sizes of
// their saved sets.
func StageOf(interests, favorites int) Stage {
	switch {
	case interests < MinInterests:
		return StageSelectingInterests
	case favorites < MinFavorites:
		return StageSelectingFavorites
	default:
		return StageComplete
	}
}

// uniqueIDs drops empty and repeated ids, keeping first occurrences in order.
func uniqueIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
