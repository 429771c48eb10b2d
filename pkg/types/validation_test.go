package types

import (
	"errors"
	"testing"
)

func validMemory() *Memory {
	return &Memory{
		DoppleID: "dopple-1",
		UserID:   "user-1",
		Text:     "I love my family",
		Role:     RoleUser,
	}
}

func TestMemoryValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Memory)
		wantErr bool
	}{
		{"valid user memory", func(m *Memory) {}, false},
		{"valid dopple memory", func(m *Memory) { m.Role = RoleDopple }, false},
		{"empty text", func(m *Memory) { m.Text = "" }, true},
		{"whitespace text", func(m *Memory) { m.Text = "   \t\n" }, true},
		{"missing dopple id", func(m *Memory) { m.DoppleID = "" }, true},
		{"missing user id", func(m *Memory) { m.UserID = "" }, true},
		{"bad role", func(m *Memory) { m.Role = "system" }, true},
		{"empty role", func(m *Memory) { m.Role = "" }, true},
		{"importance in range", func(m *Memory) { m.Importance = 8 }, false},
		{"importance unset", func(m *Memory) { m.Importance = 0 }, false},
		{"importance too low", func(m *Memory) { m.Importance = -3 }, true},
		{"importance too high", func(m *Memory) { m.Importance = 11 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validMemory()
			tt.mutate(m)
			err := m.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatal("Validate() = nil, want error")
				}
				if !errors.Is(err, ErrValidation) {
					t.Errorf("Validate() error %v is not ErrValidation", err)
				}
			} else if err != nil {
				t.Fatalf("Validate() = %v, want nil", err)
			}
		})
	}
}

func TestClampImportance(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, DefaultImportance},
		{-5, MinImportance},
		{1, 1},
		{5, 5},
		{10, 10},
		{42, MaxImportance},
	}
	for _, tt := range tests {
		if got := ClampImportance(tt.in); got != tt.want {
			t.Errorf("ClampImportance(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestValidRole(t *testing.T) {
	if !ValidRole(RoleUser) || !ValidRole(RoleDopple) {
		t.Error("expected user and dopple roles to be valid")
	}
	if ValidRole("assistant") || ValidRole("") {
		t.Error("expected unknown roles to be invalid")
	}
}
