package repo

import "errors"

var (
	ErrNotFound     = errors.New("record not found")
	ErrNotOwner     = errors.New("not the owner")
	ErrSelfRating   = errors.New("cannot rate own image")
	ErrAlreadyRated = errors.New("image already rated by this user")
	ErrStarsRange   = errors.New("stars must be between 1 and 5")
	ErrReplyDepth   = errors.New("replies to replies are not allowed")
	ErrTooManyTags  = errors.New("too many tags")
)
