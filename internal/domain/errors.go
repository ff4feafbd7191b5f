package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrBidLocked       = errors.New("another bid is being processed")
	ErrBidTooLow       = errors.New("bid amount is too low")
	ErrAuctionNotLive  = errors.New("auction is not live")
	ErrOutOfWindow     = errors.New("auction is not within the bidding window")
	ErrNoBids          = errors.New("auction has no bids")
	ErrNotSeller       = errors.New("only the auction's seller may do this")
	ErrWrongBuyer      = errors.New("only the designated buyer may respond")
	ErrSelfBid         = errors.New("cannot bid on your own auction")
	ErrHighestBid      = errors.New("cannot delete the current highest bid")
	ErrBadTransition   = errors.New("invalid auction state transition")
	ErrOfferNotPending = errors.New("counter-offer is no longer pending")
	ErrInvalidAmount   = errors.New("amount must be positive")
	ErrInvalidInput    = errors.New("invalid input")
	ErrLockHeld        = errors.New("lock already held")
)
