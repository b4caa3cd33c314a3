package model

import (
	"fmt"

	"tsreddit/internal/errors"
)

// VoteValue is the direction of a single vote. Only Upvote and Downvote
// are valid; a missing vote is represented by the absence of a row.
type VoteValue int8

const (
	Upvote   VoteValue = 1
	Downvote VoteValue = -1
)

// ParseVoteValue converts a client supplied integer into a VoteValue.
func ParseVoteValue(v int) (VoteValue, error) {
	switch v {
	case 1:
		return Upvote, nil
	case -1:
		return Downvote, nil
	default:
		return 0, errors.ErrInvalidVote
	}
}

// Vote is one ledger row. (UserID, PostID) is the primary key.
type Vote struct {
	UserID uint      `json:"user_id" gorm:"primaryKey;autoIncrement:false"`
	PostID uint      `json:"post_id" gorm:"primaryKey;autoIncrement:false;index"`
	Value  VoteValue `json:"value" gorm:"type:smallint;not null"`

	// Relations
	User User `json:"-" gorm:"foreignKey:UserID"`
	Post Post `json:"-" gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE"`
}

// Key returns the composite identity of the vote.
func (v Vote) Key() VoteKey {
	return VoteKey{UserID: v.UserID, PostID: v.PostID}
}

// VoteKey identifies the vote a user cast on a post.
type VoteKey struct {
	UserID uint
	PostID uint
}

// String renders the key as "user|post".
func (k VoteKey) String() string {
	return fmt.Sprintf("%d|%d", k.UserID, k.PostID)
}

// VoteStatus is the viewer's vote on a post: either no vote or a direction.
type VoteStatus struct {
	value VoteValue
	cast  bool
}

// NoVote is the status of a post the viewer never voted on.
func NoVote() VoteStatus {
	return VoteStatus{}
}

// Voted is the status of a post the viewer voted on with v.
func Voted(v VoteValue) VoteStatus {
	return VoteStatus{value: v, cast: true}
}

// Get returns the vote direction and whether a vote exists.
func (s VoteStatus) Get() (VoteValue, bool) {
	return s.value, s.cast
}

// Ptr returns nil for NoVote, for serializers that need a nullable value.
func (s VoteStatus) Ptr() *int {
	if !s.cast {
		return nil
	}
	v := int(s.value)
	return &v
}
