package reactions

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"gorm.io/gorm"

	"github.com/clipstream/backend/internal/apperr"
	"github.com/clipstream/backend/internal/models"
)

// TargetType discriminates the three reactable kinds. The set is closed:
// anything else is rejected at parse time.
type TargetType string

const (
	TargetComment TargetType = "comment"
	TargetVideo   TargetType = "video"
	TargetTweet   TargetType = "tweet"
)

// Target is a resolved reference to an existing entity. It is only valid
// for the request that resolved it; existence is re-checked on every
// resolution because targets can be deleted between requests.
type Target struct {
	Type TargetType
	ID   int
}

func (t Target) String() string {
	return fmt.Sprintf("%s/%d", t.Type, t.ID)
}

// ParseTargetType validates a path-supplied discriminator.
func ParseTargetType(raw string) (TargetType, error) {
	switch TargetType(raw) {
	case TargetComment, TargetVideo, TargetTweet:
		return TargetType(raw), nil
	default:
		return "", apperr.NoTargetSpecified(fmt.Sprintf("unknown target type %q, want comment, video or tweet", raw))
	}
}

// Resolver confirms that a referenced entity exists in its owning store.
type Resolver struct {
	db *gorm.DB
}

func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{db: db}
}

// ResolveQuery resolves the ?commentId/?videoId/?tweetId form. When more
// than one id is supplied, precedence is comment > video > tweet; exactly
// one target is ever resolved.
func (r *Resolver) ResolveQuery(ctx context.Context, commentID, videoID, tweetID string) (Target, error) {
	switch {
	case commentID != "":
		return r.Resolve(ctx, TargetComment, commentID)
	case videoID != "":
		return r.Resolve(ctx, TargetVideo, videoID)
	case tweetID != "":
		return r.Resolve(ctx, TargetTweet, tweetID)
	default:
		return Target{}, apperr.NoTargetSpecified("one of commentId, videoId or tweetId is required")
	}
}

// Resolve parses the id and performs the mandatory existence check against
// the owning store.
func (r *Resolver) Resolve(ctx context.Context, tt TargetType, rawID string) (Target, error) {
	id, err := strconv.Atoi(rawID)
	if err != nil || id <= 0 {
		return Target{}, apperr.MalformedID(fmt.Sprintf("invalid %s id %q", tt, rawID))
	}

	target := Target{Type: tt, ID: id}
	if err := r.exists(ctx, target); err != nil {
		return Target{}, err
	}
	return target, nil
}

func (r *Resolver) exists(ctx context.Context, target Target) error {
	var probe error
	switch target.Type {
	case TargetComment:
		probe = r.db.WithContext(ctx).Select("id").First(&models.Comment{}, target.ID).Error
	case TargetVideo:
		probe = r.db.WithContext(ctx).Select("id").First(&models.Video{}, target.ID).Error
	case TargetTweet:
		probe = r.db.WithContext(ctx).Select("id").First(&models.Tweet{}, target.ID).Error
	default:
		return apperr.NoTargetSpecified(fmt.Sprintf("unknown target type %q", target.Type))
	}

	if probe == nil {
		return nil
	}
	if errors.Is(probe, gorm.ErrRecordNotFound) {
		return apperr.TargetNotFound(fmt.Sprintf("no %s with id %d", target.Type, target.ID))
	}
	if errors.Is(probe, context.DeadlineExceeded) || errors.Is(probe, context.Canceled) {
		return apperr.Timeout(probe)
	}
	return apperr.Unavailable(probe)
}
