package progress

import (
	"errors"
	"testing"
)

func TestXPThreshold(t *testing.T) {
	tests := []struct {
		level int
		want  int
	}{
		{0, 0},
		{1, 0},
		{2, 350},
		{3, 750},
		{4, 1200},
		{5, 1700},
		{100, 99 * (700 + 50*98) / 2},
	}
	for _, tt := range tests {
		if got := XPThreshold(tt.level); got != tt.want {
			t.Errorf("XPThreshold(%d) = %d, want %d", tt.level, got, tt.want)
		}
	}
}

func TestXPThresholdMatchesStepCosts(t *testing.T) {
	total := 0
	for level := 1; level < MaxLevel; level++ {
		total += 350 + 50*(level-1)
		if got := XPThreshold(level + 1); got != total {
			t.Fatalf("XPThreshold(%d) = %d, want %d", level+1, got, total)
		}
	}
}

func TestLevelFromThresholdIsExact(t *testing.T) {
	for level := 1; level <= MaxLevel; level++ {
		if got := LevelFromXP(XPThreshold(level)); got != level {
			t.Fatalf("LevelFromXP(XPThreshold(%d)) = %d", level, got)
		}
		if level > 1 {
			if got := LevelFromXP(XPThreshold(level) - 1); got != level-1 {
				t.Fatalf("LevelFromXP(XPThreshold(%d)-1) = %d, want %d", level, got, level-1)
			}
		}
	}
}

func TestLevelFromXPMonotonicAndCapped(t *testing.T) {
	prev := 0
	for xp := 0; xp <= XPThreshold(MaxLevel)+5000; xp += 37 {
		level := LevelFromXP(xp)
		if level < prev {
			t.Fatalf("level decreased at xp=%d: %d < %d", xp, level, prev)
		}
		if level < 1 || level > MaxLevel {
			t.Fatalf("level %d out of range at xp=%d", level, xp)
		}
		prev = level
	}
	if got := LevelFromXP(XPThreshold(MaxLevel) * 10); got != MaxLevel {
		t.Fatalf("surplus xp level = %d, want %d", got, MaxLevel)
	}
	if got := LevelFromXP(-10); got != 1 {
		t.Fatalf("negative xp level = %d, want 1", got)
	}
}

func TestLevelInfoProgressBounds(t *testing.T) {
	for xp := 0; xp <= XPThreshold(MaxLevel)+1000; xp += 113 {
		info := LevelInfo(xp)
		if info.Progress < 0 || info.Progress > 100 {
			t.Fatalf("progress %v out of range at xp=%d", info.Progress, xp)
		}
	}

	info := LevelInfo(175)
	if info.Level != 1 || info.XPForCurrentLevel != 0 || info.XPForNextLevel != 350 {
		t.Fatalf("unexpected info: %+v", info)
	}
	if info.Progress != 50 {
		t.Fatalf("progress = %v, want 50", info.Progress)
	}

	max := LevelInfo(XPThreshold(MaxLevel) + 1)
	if max.Level != MaxLevel || max.Progress != 100 || max.XPForNextLevel != max.XPForCurrentLevel {
		t.Fatalf("unexpected max info: %+v", max)
	}
}

func TestQuizXPAward(t *testing.T) {
	tests := []struct {
		name           string
		correct, total int
		level          int
		want           int
	}{
		{"perfect", 10, 10, 1, 150},
		{"sixty percent", 6, 10, 1, 100},
		{"zero", 0, 10, 1, 0},
		{"fifty", 5, 10, 1, 70},
		{"forty", 4, 10, 1, 55},
		{"thirty", 3, 10, 1, 40},
		{"twenty", 2, 10, 1, 20},
		{"ten", 1, 10, 1, 10},
		{"just below ten", 1, 11, 1, 0},
		{"two of three", 2, 3, 1, 100},
		{"perfect at milestone 5", 10, 10, 5, 350},
		{"zero at level 12", 0, 10, 12, 400},
		{"perfect at level 100", 3, 3, 100, 150 + 19*200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := QuizXPAward(tt.correct, tt.total, tt.level)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("QuizXPAward(%d,%d,%d) = %d, want %d", tt.correct, tt.total, tt.level, got, tt.want)
			}
		})
	}
}

func TestQuizXPAwardRejectsInvalidInput(t *testing.T) {
	if _, err := QuizXPAward(0, 0, 1); !errors.Is(err, ErrEmptyQuiz) {
		t.Fatalf("err = %v, want ErrEmptyQuiz", err)
	}
	if _, err := QuizXPAward(4, 3, 1); !errors.Is(err, ErrInvalidScore) {
		t.Fatalf("err = %v, want ErrInvalidScore", err)
	}
	if _, err := QuizXPAward(-1, 3, 1); !errors.Is(err, ErrInvalidScore) {
		t.Fatalf("err = %v, want ErrInvalidScore", err)
	}
}
