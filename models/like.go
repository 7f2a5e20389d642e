package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrAlreadyLiked is returned when a like insert loses the race against a
// concurrent toggle for the same (user, post) pair.
var ErrAlreadyLiked = errors.New("post already liked")

// Like is one user's like on one post. The (user_id, post_id) pair is unique
// across all time; unliking removes the row rather than tombstoning it.
type Like struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"uniqueIndex:idx_likes_user_post;not null" json:"user_id"`
	PostID    uint      `gorm:"uniqueIndex:idx_likes_user_post;index;not null" json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
	User      User      `json:"-"`
	Post      Post      `json:"-"`

	// Computed per response, never persisted.
	Liker PublicUser `gorm:"-" json:"user"`
}

// ToggleResult reports the outcome of a like toggle.
type ToggleResult struct {
	Action    string `json:"action"` // "liked" or "unliked"
	Liked     bool   `json:"liked"`
	LikeCount int    `json:"like_count"`
}

// ToggleLike creates a like for (userID, postID) if absent or removes it if
// present, adjusting the post's like_count in the same transaction so the
// counter and the membership set cannot drift apart.
//
// The duplicate-insert race between two concurrent toggles from the same user
// is resolved by the unique index: the loser's insert surfaces as
// ErrAlreadyLiked and performs no counter write. The post must still be
// active; toggling a like on a soft-deleted or missing post fails with
// ErrPostNotFound.
func ToggleLike(db *gorm.DB, userID, postID uint) (*ToggleResult, error) {
	res := &ToggleResult{}

	err := db.Transaction(func(tx *gorm.DB) error {
		var post Post
		if err := ActivePosts(tx).First(&post, postID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPostNotFound
			}
			return err
		}

		var existing Like
		err := tx.Where("user_id = ? AND post_id = ?", userID, postID).First(&existing).Error
		switch {
		case err == nil:
			del := tx.Delete(&Like{}, existing.ID)
			if del.Error != nil {
				return del.Error
			}
			// Decrement only for the toggle that actually removed the row,
			// and never below zero.
			if del.RowsAffected > 0 {
				if err := tx.Model(&Post{}).
					Where("id = ? AND like_count > 0", postID).
					UpdateColumn("like_count", gorm.Expr("like_count - 1")).Error; err != nil {
					return err
				}
			}
			res.Action = "unliked"
			res.Liked = false

		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := createLike(tx, userID, postID); err != nil {
				return err
			}
			if err := tx.Model(&Post{}).
				Where("id = ?", postID).
				UpdateColumn("like_count", gorm.Expr("like_count + 1")).Error; err != nil {
				return err
			}
			res.Action = "liked"
			res.Liked = true

		default:
			return err
		}

		return tx.Model(&Post{}).
			Select("like_count").
			Where("id = ?", postID).
			Scan(&res.LikeCount).Error
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// createLike inserts the membership row, mapping the storage layer's
// duplicate-key violation to the domain conflict.
func createLike(tx *gorm.DB, userID, postID uint) error {
	like := Like{UserID: userID, PostID: postID}
	if err := tx.Create(&like).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrAlreadyLiked
		}
		return err
	}
	return nil
}

// HasLiked reports whether the user currently likes the post. Pure read.
func HasLiked(db *gorm.DB, userID, postID uint) (bool, error) {
	var count int64
	err := db.Model(&Like{}).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListPostLikers returns one page of users who liked a post, newest like first.
func ListPostLikers(db *gorm.DB, postID uint, page, limit int) ([]Like, int64, error) {
	query := db.Model(&Like{}).Where("post_id = ?", postID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var likes []Like
	err := query.Preload("User").
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&likes).Error
	if err != nil {
		return nil, 0, err
	}
	for i := range likes {
		likes[i].Liker = likes[i].User.Public()
	}
	return likes, total, nil
}

// ListLikedPosts returns one page of the active posts a user has liked,
// ordered by when the like was created, newest first.
func ListLikedPosts(db *gorm.DB, userID uint, page, limit int) ([]Post, int64, error) {
	query := db.Model(&Like{}).
		Joins("JOIN posts ON posts.id = likes.post_id AND posts.is_active = ?", true).
		Where("likes.user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var likes []Like
	err := query.Preload("Post.User").
		Order("likes.created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&likes).Error
	if err != nil {
		return nil, 0, err
	}

	posts := make([]Post, 0, len(likes))
	for _, l := range likes {
		p := l.Post
		p.Author = p.User.Public()
		p.HasLiked = true
		posts = append(posts, p)
	}
	return posts, total, nil
}

// LikeStats aggregates like activity across the whole site.
type LikeStats struct {
	TotalLikes      int64   `json:"total_likes"`
	UniqueUsers     int64   `json:"unique_users"`
	UniquePosts     int64   `json:"unique_posts"`
	AvgLikesPerPost float64 `json:"average_likes_per_post"`
}

// GetLikeStats computes sitewide like statistics.
func GetLikeStats(db *gorm.DB) (*LikeStats, error) {
	var stats LikeStats
	if err := db.Model(&Like{}).Count(&stats.TotalLikes).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&Like{}).Distinct("user_id").Count(&stats.UniqueUsers).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&Like{}).Distinct("post_id").Count(&stats.UniquePosts).Error; err != nil {
		return nil, err
	}
	if stats.UniquePosts > 0 {
		stats.AvgLikesPerPost = float64(stats.TotalLikes) / float64(stats.UniquePosts)
	}
	return &stats, nil
}

// RecountLikeCounts recomputes every post's like_count from the likes table.
// Safety net for drift introduced outside the toggle transaction (manual
// writes, restored backups, likes orphaned by removed posts coming back).
func RecountLikeCounts(db *gorm.DB) (int64, error) {
	res := db.Exec(`UPDATE posts SET like_count = (
		SELECT COUNT(*) FROM likes WHERE likes.post_id = posts.id
	)`)
	return res.RowsAffected, res.Error
}
