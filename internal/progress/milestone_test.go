package progress

import (
	"reflect"
	"testing"
)

func TestBonusQuizQuota(t *testing.T) {
	tests := []struct {
		level int
		want  int
	}{
		{1, 0},
		{4, 0},
		{5, 3},
		{9, 3},
		{10, 6},
		{95, 57},
		{99, 57},
		{100, 1057},
	}
	for _, tt := range tests {
		if got := BonusQuizQuota(tt.level); got != tt.want {
			t.Errorf("BonusQuizQuota(%d) = %d, want %d", tt.level, got, tt.want)
		}
	}
	if BonusQuizQuota(100) < 1000 {
		t.Fatal("level 100 quota must be at least 1000")
	}
}

func TestMilestoneBonusXP(t *testing.T) {
	tests := []struct {
		level int
		want  int
	}{
		{1, 0},
		{5, 200},
		{14, 400},
		{95, 3800},
		{100, 3800},
	}
	for _, tt := range tests {
		if got := MilestoneBonusXP(tt.level); got != tt.want {
			t.Errorf("MilestoneBonusXP(%d) = %d, want %d", tt.level, got, tt.want)
		}
	}
}

func TestMilestonesTable(t *testing.T) {
	table := Milestones()
	if len(table) != 20 {
		t.Fatalf("len = %d, want 20", len(table))
	}
	for i, m := range table[:19] {
		if m.Level != (i+1)*5 || m.BonusQuizzes != 3 || m.BonusXPPerQuiz != 200 {
			t.Fatalf("row %d = %+v", i, m)
		}
		if !IsMilestoneLevel(m.Level) {
			t.Fatalf("IsMilestoneLevel(%d) = false", m.Level)
		}
	}
	last := table[19]
	if last.Level != 100 || last.BonusQuizzes != 1000 || last.BonusXPPerQuiz != 0 {
		t.Fatalf("last row = %+v", last)
	}

	table[0].Level = 42
	if Milestones()[0].Level != 5 {
		t.Fatal("Milestones must return a copy")
	}
	if IsMilestoneLevel(7) || IsMilestoneLevel(0) || IsMilestoneLevel(105) {
		t.Fatal("unexpected milestone level")
	}
}

func TestMilestonesBetween(t *testing.T) {
	if got := MilestonesBetween(4, 11); !reflect.DeepEqual(got, []int{5, 10}) {
		t.Fatalf("got %v", got)
	}
	if got := MilestonesBetween(5, 5); got != nil {
		t.Fatalf("got %v, want nil", got)
	}
	if got := MilestonesBetween(95, 100); !reflect.DeepEqual(got, []int{100}) {
		t.Fatalf("got %v", got)
	}
}
