package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrPostNotFound is returned when a post does not exist or was soft-deleted.
var ErrPostNotFound = errors.New("post not found")

// Post represents a short text post created by a user.
// LikeCount is a denormalized cache of the matching rows in likes; the like
// toggle keeps both in step inside one transaction.
type Post struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index:idx_posts_author_created,priority:1;not null" json:"user_id"`
	Content   string    `gorm:"size:500;not null" json:"content"`
	LikeCount int       `gorm:"not null;default:0" json:"like_count"`
	IsActive  bool      `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt time.Time `gorm:"index:idx_posts_author_created,priority:2;index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	User      User      `json:"-"`

	// Computed per response, never persisted.
	Author   PublicUser `gorm:"-" json:"author"`
	HasLiked bool       `gorm:"-" json:"has_liked"`
}

// ActivePosts scopes a query to posts that were not soft-deleted.
func ActivePosts(db *gorm.DB) *gorm.DB {
	return db.Where("is_active = ?", true)
}

// FindActivePost loads a single active post with its author.
func FindActivePost(db *gorm.DB, id uint) (*Post, error) {
	var post Post
	err := ActivePosts(db).Preload("User").First(&post, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	post.Author = post.User.Public()
	return &post, nil
}

// ListTimeline returns one page of active posts, newest first, with the total
// count of active posts.
func ListTimeline(db *gorm.DB, page, limit int) ([]Post, int64, error) {
	return listPosts(ActivePosts(db), page, limit)
}

// ListByAuthor returns one page of a single user's active posts, newest first.
func ListByAuthor(db *gorm.DB, authorID uint, page, limit int) ([]Post, int64, error) {
	return listPosts(ActivePosts(db).Where("user_id = ?", authorID), page, limit)
}

func listPosts(query *gorm.DB, page, limit int) ([]Post, int64, error) {
	var total int64
	if err := query.Model(&Post{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var posts []Post
	err := query.Preload("User").
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, 0, err
	}
	for i := range posts {
		posts[i].Author = posts[i].User.Public()
	}
	return posts, total, nil
}

// AttachLikeState annotates a page of posts with the viewer's like membership
// using a single post_id IN (...) lookup instead of one query per post.
func AttachLikeState(db *gorm.DB, posts []Post, viewerID uint) error {
	if len(posts) == 0 || viewerID == 0 {
		return nil
	}

	ids := make([]uint, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
	}

	var likedIDs []uint
	err := db.Model(&Like{}).
		Where("user_id = ? AND post_id IN ?", viewerID, ids).
		Pluck("post_id", &likedIDs).Error
	if err != nil {
		return err
	}

	liked := make(map[uint]bool, len(likedIDs))
	for _, id := range likedIDs {
		liked[id] = true
	}
	for i := range posts {
		posts[i].HasLiked = liked[posts[i].ID]
	}
	return nil
}
