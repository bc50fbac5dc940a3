package relay

import (
	"errors"
	"testing"
)

func TestPasswordListCheck(t *testing.T) {
	list := NewPasswordList([]string{"alpha", "bravo", "charlie"})

	tests := []struct {
		password string
		next     string
		err      error
	}{
		{"alpha", "bravo", nil},
		{"bravo", "charlie", nil},
		{"charlie", NoNextPassword, nil},
		{"delta", "", ErrBadPassword},
		{"", "", ErrBadPassword},
		{"Alpha", "", ErrBadPassword},
	}

	for _, tt := range tests {
		next, err := list.Check(tt.password)
		if !errors.Is(err, tt.err) {
			t.Errorf("Check(%q) error = %v, want %v", tt.password, err, tt.err)
		}
		if next != tt.next {
			t.Errorf("Check(%q) = %q, want %q", tt.password, next, tt.next)
		}
	}
}

func TestEmptyPasswordListRejectsEverything(t *testing.T) {
	if _, err := NewPasswordList(nil).Check("anything"); !errors.Is(err, ErrBadPassword) {
		t.Fatalf("error = %v, want ErrBadPassword", err)
	}
}
