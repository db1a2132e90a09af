package editor

import "testing"

func bufferWith(text string) *Buffer {
	b := NewBuffer()
	b.SetText(text)
	return b
}

func TestDeleteLine(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		line  int
		want  string
		taken string
	}{
		{"single line", "hello", 0, "", "hello"},
		{"first of two", "first\nsecond", 0, "second", "first"},
		{"last of two", "first\nsecond", 1, "first", "second"},
		{"middle", "aaa\nbbb\nccc", 1, "aaa\nccc", "bbb"},
		{"trailing empty line", "a\n", 1, "a", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := bufferWith(tt.text)
			taken, ok := b.DeleteLine(tt.line)
			if !ok {
				t.Fatal("DeleteLine returned false")
			}
			if b.Text() != tt.want {
				t.Errorf("text = %q, want %q", b.Text(), tt.want)
			}
			if taken != tt.taken {
				t.Errorf("deleted = %q, want %q", taken, tt.taken)
			}
		})
	}
}

func TestDeleteLineOutOfRange(t *testing.T) {
	b := bufferWith("a\nb")
	if _, ok := b.DeleteLine(5); ok {
		t.Error("DeleteLine(5) should fail")
	}
	if _, ok := b.DeleteLine(-1); ok {
		t.Error("DeleteLine(-1) should fail")
	}
	if b.Text() != "a\nb" {
		t.Errorf("text changed to %q", b.Text())
	}
}

func TestDeleteLineUndo(t *testing.T) {
	b := bufferWith("aaa\nbbb\nccc")
	b.DeleteLine(2)
	b.Undo()
	if b.Text() != "aaa\nbbb\nccc" {
		t.Errorf("after undo text = %q", b.Text())
	}
}

func TestDuplicateLine(t *testing.T) {
	b := bufferWith("aaa\nbbb")
	if !b.DuplicateLine(0) {
		t.Fatal("DuplicateLine returned false")
	}
	if b.Text() != "aaa\naaa\nbbb" {
		t.Errorf("text = %q", b.Text())
	}
	b.DuplicateLine(2)
	if b.Text() != "aaa\naaa\nbbb\nbbb" {
		t.Errorf("text = %q", b.Text())
	}
	if b.DuplicateLine(9) {
		t.Error("DuplicateLine(9) should fail")
	}
}

func TestMoveLine(t *testing.T) {
	tests := []struct {
		name  string
		line  int
		delta int
		want  string
		ok    bool
	}{
		{"down", 0, 1, "b\na\nc", true},
		{"up", 2, -1, "a\nc\nb", true},
		{"top edge", 0, -1, "a\nb\nc", false},
		{"bottom edge", 2, 1, "a\nb\nc", false},
		{"zero delta", 1, 0, "a\nb\nc", false},
		{"two down", 0, 2, "c\nb\na", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := bufferWith("a\nb\nc")
			if ok := b.MoveLine(tt.line, tt.delta); ok != tt.ok {
				t.Fatalf("MoveLine ok = %v, want %v", ok, tt.ok)
			}
			if b.Text() != tt.want {
				t.Errorf("text = %q, want %q", b.Text(), tt.want)
			}
		})
	}
}
