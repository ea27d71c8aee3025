// Package answer holds per-question answer records and the transition rules
// that make recording an answer idempotent.
package answer

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Record is a user's answer to one question within one accreditation window.
type Record struct {
	UserID       string     `json:"user_id"`
	YearID       string     `json:"year_id"`
	QuestionHash string     `json:"question_hash"`
	Category     string     `json:"category,omitempty"`
	IsCorrect    bool       `json:"is_correct"`
	AnsweredAt   time.Time  `json:"answered_at"`
	CorrectedAt  *time.Time `json:"corrected_at,omitempty"`
}

// Hash returns the deterministic identity of a question: the hex SHA-256 of
// its text with surrounding whitespace trimmed and inner runs collapsed.
func Hash(question string) string {
	normalized := strings.Join(strings.Fields(question), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
