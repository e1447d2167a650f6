package models

import (
	"database/sql"
	"time"
)

// CompletionEvent is a validated stage completion submitted by a game client.
type CompletionEvent struct {
	UserID       string
	StageCode    string
	PromptLength int
	ClearTimeMs  int64
}

type User struct {
	UserID    string    `db:"user_id" json:"user_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type Stage struct {
	ID    int64  `db:"stage_id" json:"stage_id"`
	Code  string `db:"code" json:"code"`
	Title string `db:"title" json:"title"`
}

// Progress is the mutable per (user, stage) state. It always reflects the
// latest submission; history lives in RunLog.
type Progress struct {
	UserID       string       `db:"user_id"`
	StageID      int64        `db:"stage_id"`
	Unlocked     bool         `db:"unlocked"`
	Cleared      bool         `db:"cleared"`
	PromptLength int          `db:"prompt_length"`
	ClearTimeMs  int64        `db:"clear_time_ms"`
	ClearedAt    sql.NullTime `db:"cleared_at"`
}

// StageProgress joins a catalog stage with a user's progress on it.
type StageProgress struct {
	Code         string     `db:"code" json:"code"`
	Unlocked     bool       `db:"unlocked" json:"unlocked"`
	Cleared      bool       `db:"cleared" json:"cleared"`
	PromptLength int        `db:"prompt_length" json:"prompt_length"`
	ClearTimeMs  int64      `db:"clear_time_ms" json:"clear_time_ms"`
	ClearedAt    *time.Time `db:"-" json:"cleared_at"`
}

// RunLog is one immutable row of the ranking corpus.
type RunLog struct {
	Seq          int64     `db:"seq" json:"seq"`
	UserID       string    `db:"user_id" json:"user_id"`
	StageCode    string    `db:"stage_code" json:"stage_code"`
	PromptLength int       `db:"prompt_length" json:"prompt_length"`
	ClearTimeMs  int64     `db:"clear_time_ms" json:"clear_time_ms"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// RankCounts are the raw aggregates for one stage relative to a submission.
type RankCounts struct {
	Total   int64 `db:"total"`
	Faster  int64 `db:"faster"`
	Shorter int64 `db:"shorter"`
}

// Rank is the competition ranking of a submission within its stage.
type Rank struct {
	RankByTime      int64
	TimePercentile  float64
	RankByTokens    int64
	TokenPercentile float64
	Total           int64
}

// RunResult is what an accepted submission yields.
type RunResult struct {
	Log  RunLog
	Rank Rank
}
