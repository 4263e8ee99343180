package reactions

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/clipstream/backend/internal/apperr"
	"github.com/clipstream/backend/internal/models"
)

// State is the per-caller reaction state reported back to clients.
type State string

const (
	StateNone     State = "none"
	StateLiked    State = State(models.ReactionLiked)
	StateDisliked State = State(models.ReactionDisliked)
)

// RequestedState maps the wire value (?reaction=true|false) to a state.
func RequestedState(raw string) (State, error) {
	switch raw {
	case "true":
		return StateLiked, nil
	case "false":
		return StateDisliked, nil
	default:
		return "", apperr.InvalidReactionValue("reaction must be \"true\" (like) or \"false\" (dislike)")
	}
}

// Result is the outcome of a toggle: the caller's new state plus totals
// that already include this toggle's effect.
type Result struct {
	CurrentState  State `json:"current_state"`
	LikedTotal    int64 `json:"liked_total"`
	DislikedTotal int64 `json:"disliked_total"`
}

// errStaleRow signals that the row changed between our read and our write
// (deleted or flipped by a concurrent request). The decision table is then
// re-evaluated once against fresh state.
var errStaleRow = errors.New("reaction row changed underneath us")

// Engine applies reaction toggles and serves aggregate counts. The only
// synchronization is the storage-level unique index on
// (user_id, target_type, target_id): there is no in-process locking, so
// independent (subject, target) pairs proceed fully in parallel.
type Engine struct {
	db *gorm.DB
}

func NewEngine(db *gorm.DB) *Engine {
	return &Engine{db: db}
}

// Apply runs the toggle state machine for one (subject, target) pair:
//
//	none     + liked    -> create liked
//	none     + disliked -> create disliked
//	liked    + liked    -> delete (undo)
//	disliked + disliked -> delete (undo)
//	liked    + disliked -> flip
//	disliked + liked    -> flip
//
// A write conflict is retried once with a fresh reload. A lost insert
// race is special-cased: the loser was a concurrent duplicate of the same
// intent, so it adopts the winner's matching row instead of undoing it;
// only a sequential repeat of a held state is an undo.
func (e *Engine) Apply(ctx context.Context, subjectID int, target Target, requested State) (Result, error) {
	res, err := e.toggle(ctx, subjectID, target, requested, false)
	if isWriteConflict(err) {
		lostInsert := errors.Is(err, gorm.ErrDuplicatedKey)
		res, err = e.toggle(ctx, subjectID, target, requested, lostInsert)
	}
	if err != nil {
		return Result{}, classify(err)
	}
	return res, nil
}

func (e *Engine) toggle(ctx context.Context, subjectID int, target Target, requested State, adoptExisting bool) (Result, error) {
	var out Result

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row models.Reaction
		err := tx.
			Where("user_id = ? AND target_type = ? AND target_id = ?", subjectID, target.Type, target.ID).
			First(&row).Error

		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			row = models.Reaction{
				UserID:     subjectID,
				TargetType: string(target.Type),
				TargetID:   target.ID,
				State:      string(requested),
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			out.CurrentState = requested

		case err != nil:
			return err

		case row.State == string(requested):
			if adoptExisting {
				// We lost the insert race to a request with the same
				// intent: report the winner's state, do not undo it.
				out.CurrentState = requested
				break
			}
			// Undo: reapplying the held state removes the row.
			del := tx.Delete(&models.Reaction{}, row.ID)
			if del.Error != nil {
				return del.Error
			}
			if del.RowsAffected == 0 {
				return errStaleRow
			}
			out.CurrentState = StateNone

		default:
			// Flip liked<->disliked in place, guarded by the state we
			// read so a concurrent change is detected instead of
			// silently overwritten.
			upd := tx.Model(&models.Reaction{}).
				Where("id = ? AND state = ?", row.ID, row.State).
				Update("state", string(requested))
			if upd.Error != nil {
				return upd.Error
			}
			if upd.RowsAffected == 0 {
				return errStaleRow
			}
			out.CurrentState = requested
		}

		// Count inside the same transaction so the totals returned with a
		// toggle always include that toggle's effect.
		liked, disliked, err := countsIn(tx, target)
		if err != nil {
			return err
		}
		out.LikedTotal, out.DislikedTotal = liked, disliked
		return nil
	})

	return out, err
}

// Counts serves the public read path. No identity involved; counts are
// always derived from the reaction rows, never stored separately.
func (e *Engine) Counts(ctx context.Context, target Target) (liked, disliked int64, err error) {
	liked, disliked, err = countsIn(e.db.WithContext(ctx), target)
	if err != nil {
		return 0, 0, classify(err)
	}
	return liked, disliked, nil
}

func countsIn(tx *gorm.DB, target Target) (liked, disliked int64, err error) {
	base := func() *gorm.DB {
		return tx.Model(&models.Reaction{}).
			Where("target_type = ? AND target_id = ?", target.Type, target.ID)
	}
	if err := base().Where("state = ?", models.ReactionLiked).Count(&liked).Error; err != nil {
		return 0, 0, err
	}
	if err := base().Where("state = ?", models.ReactionDisliked).Count(&disliked).Error; err != nil {
		return 0, 0, err
	}
	return liked, disliked, nil
}

// StateFor reports the caller's current state on a target.
func (e *Engine) StateFor(ctx context.Context, subjectID int, target Target) (State, error) {
	var row models.Reaction
	err := e.db.WithContext(ctx).
		Where("user_id = ? AND target_type = ? AND target_id = ?", subjectID, target.Type, target.ID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return StateNone, nil
	}
	if err != nil {
		return StateNone, classify(err)
	}
	return State(row.State), nil
}

// Mine returns everything the subject has reacted to, partitioned by state.
func (e *Engine) Mine(ctx context.Context, subjectID int) (liked, disliked []models.Reaction, err error) {
	var rows []models.Reaction
	err = e.db.WithContext(ctx).
		Where("user_id = ?", subjectID).
		Order("updated_at desc").
		Find(&rows).Error
	if err != nil {
		return nil, nil, classify(err)
	}

	liked = []models.Reaction{}
	disliked = []models.Reaction{}
	for _, r := range rows {
		if r.State == models.ReactionLiked {
			liked = append(liked, r)
		} else {
			disliked = append(disliked, r)
		}
	}
	return liked, disliked, nil
}

// LikedVideos returns the published videos the subject has liked.
func (e *Engine) LikedVideos(ctx context.Context, subjectID int) ([]models.Video, error) {
	var videos []models.Video
	err := e.db.WithContext(ctx).
		Preload("Owner").
		Where("published = ?", true).
		Where("id IN (?)", e.db.Model(&models.Reaction{}).
			Select("target_id").
			Where("user_id = ? AND target_type = ? AND state = ?",
				subjectID, TargetVideo, models.ReactionLiked)).
		Order("created_at desc").
		Find(&videos).Error
	if err != nil {
		return nil, classify(err)
	}
	if videos == nil {
		videos = []models.Video{}
	}
	return videos, nil
}

func isWriteConflict(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, errStaleRow)
}

func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case isWriteConflict(err):
		// Still conflicting after the internal retry. Surface as
		// retry-safe: the transaction rolled back, no partial row remains.
		return apperr.Timeout(err)
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return apperr.Timeout(err)
	default:
		return apperr.Unavailable(err)
	}
}
