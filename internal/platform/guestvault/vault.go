// Package guestvault stores everything a guest install owns in one JSON
// record on disk: the guest tag, the current goal, the streak state and a
// bounded session history.
package guestvault

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	SchemaVersion       = 1
	DefaultHistoryLimit = 500
)

type GoalRecord struct {
	TimeTargetMinutes int                  `json:"time_target_minutes"`
	DailyFrequency    int                  `json:"daily_frequency"`
	UpdatedAt         time.Time            `json:"updated_at"`
	Source            string               `json:"source"`
	FieldUpdatedAt    map[string]time.Time `json:"field_updated_at,omitempty"`
}

type StreakRecord struct {
	TimeStreak         int    `json:"time_streak"`
	DailyStreak        int    `json:"daily_streak"`
	LastQualifyingDate string `json:"last_qualifying_date,omitempty"`
}

type HistoryRecord struct {
	SessionID           string    `json:"session_id"`
	Identity            string    `json:"identity"`
	ActualDurationSec   int       `json:"actual_duration_sec"`
	TargetDurationSec   int       `json:"target_duration_sec"`
	AimedSessionsPerDay int       `json:"aimed_sessions_per_day"`
	OccurredAt          time.Time `json:"occurred_at"`
	BasePoints          int       `json:"base_points"`
	BonusPoints         int       `json:"bonus_points"`
	TotalPoints         int       `json:"total_points"`
	TimeStreak          int       `json:"time_streak"`
	DailyStreak         int       `json:"daily_streak"`
	RecordedAt          time.Time `json:"recorded_at"`
}

// Blob is the single serialized record. History is newest first.
type Blob struct {
	SchemaVersion int             `json:"schema_version"`
	GuestTag      string          `json:"guest_tag"`
	CurrentGoal   *GoalRecord     `json:"current_goal,omitempty"`
	Streak        StreakRecord    `json:"streak_state"`
	History       []HistoryRecord `json:"history"`
}

// FindSession returns the history entry for sessionID.
func (b *Blob) FindSession(sessionID string) (HistoryRecord, bool) {
	for _, rec := range b.History {
		if rec.SessionID == sessionID {
			return rec, true
		}
	}
	return HistoryRecord{}, false
}

type Vault struct {
	path  string
	limit int
	mu    sync.Mutex
}

func Open(path string, historyLimit int) *Vault {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Vault{path: path, limit: historyLimit}
}

func (v *Vault) Path() string {
	return v.path
}

func (v *Vault) Load(_ context.Context) (Blob, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.read()
}

// Update runs fn against the current record and persists the result when fn
// reports a change. The whole read-modify-write holds the vault lock and the
// file is replaced by rename, so readers never observe a partial record.
func (v *Vault) Update(_ context.Context, fn func(*Blob) (bool, error)) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	blob, err := v.read()
	if err != nil {
		return err
	}
	changed, err := fn(&blob)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	if len(blob.History) > v.limit {
		blob.History = blob.History[:v.limit]
	}
	return v.write(blob)
}

// EnsureGuestTag returns the install's guest tag, creating it on first use.
func (v *Vault) EnsureGuestTag(ctx context.Context, newTag func() string) (string, error) {
	tag := ""
	err := v.Update(ctx, func(b *Blob) (bool, error) {
		if b.GuestTag != "" {
			tag = b.GuestTag
			return false, nil
		}
		b.GuestTag = newTag()
		tag = b.GuestTag
		return true, nil
	})
	return tag, err
}

func (v *Vault) read() (Blob, error) {
	raw, err := os.ReadFile(v.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Blob{SchemaVersion: SchemaVersion, History: []HistoryRecord{}}, nil
		}
		return Blob{}, fmt.Errorf("read guest vault: %w", err)
	}
	blob := Blob{}
	if len(raw) == 0 {
		return Blob{SchemaVersion: SchemaVersion, History: []HistoryRecord{}}, nil
	}
	if err := json.Unmarshal(raw, &blob); err != nil {
		return Blob{}, fmt.Errorf("decode guest vault: %w", err)
	}
	if blob.SchemaVersion > SchemaVersion {
		return Blob{}, fmt.Errorf("guest vault schema %d is newer than supported %d", blob.SchemaVersion, SchemaVersion)
	}
	if blob.History == nil {
		blob.History = []HistoryRecord{}
	}
	return blob, nil
}

func (v *Vault) write(blob Blob) error {
	if err := os.MkdirAll(filepath.Dir(v.path), 0o755); err != nil {
		return fmt.Errorf("create guest vault dir: %w", err)
	}
	blob.SchemaVersion = SchemaVersion
	payload, err := json.MarshalIndent(blob, "", "  ")
	if err != nil {
		return fmt.Errorf("encode guest vault: %w", err)
	}
	tmp := v.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o600); err != nil {
		return fmt.Errorf("write guest vault: %w", err)
	}
	if err := os.Rename(tmp, v.path); err != nil {
		return fmt.Errorf("replace guest vault: %w", err)
	}
	return nil
}
