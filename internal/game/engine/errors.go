package engine

import (
	"errors"

	"UnoArena/internal/game/table"
)

// 以下错误都属于会话级致命错误，调用方应直接断开该会话
var (
	ErrNotSeated      = table.ErrNotSeated
	ErrAlreadySeated  = table.ErrAlreadySeated
	ErrNotRunning     = errors.New("match not running")
	ErrAlreadyRunning = errors.New("match already running")
	ErrNotMaster      = errors.New("no permission")
	ErrNotYourTurn    = errors.New("not your turn")
	ErrNotDrawn       = errors.New("must draw before skipping")
	ErrAlreadyDrawn   = errors.New("already drew this turn")
	ErrInvalidIndex   = errors.New("invalid card index")
	ErrMatchFull      = errors.New("match full")
	ErrInvalidName    = errors.New("invalid match name")
	ErrStopped        = errors.New("match closed")
)
