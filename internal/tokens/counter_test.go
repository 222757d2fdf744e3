package tokens

import (
	"testing"

	"github.com/chatgate-dev/chatgate/internal/domain"
)

func TestCountText(t *testing.T) {
	c := NewCounter()

	n, err := c.CountText("gpt-4o", "Hello, world!")
	if err != nil {
		t.Fatalf("CountText() error = %v", err)
	}
	if n <= 0 {
		t.Errorf("CountText() = %d, want > 0", n)
	}

	empty, err := c.CountText("gpt-4o", "")
	if err != nil {
		t.Fatalf("CountText(empty) error = %v", err)
	}
	if empty != 0 {
		t.Errorf("CountText(empty) = %d, want 0", empty)
	}
}

func TestCountConversationIncludesOverhead(t *testing.T) {
	c := NewCounter()

	conv := domain.Conversation{
		{Role: "system", Content: "You are helpful."},
		{Role: "user", Content: "hi"},
	}

	total, err := c.CountConversation("gpt-4o", conv)
	if err != nil {
		t.Fatalf("CountConversation() error = %v", err)
	}

	var contentOnly int
	for _, m := range conv {
		n, err := c.CountText("gpt-4o", m.Content)
		if err != nil {
			t.Fatalf("CountText() error = %v", err)
		}
		contentOnly += n
	}

	// 3 per message + 1 per role + 3 assistant priming.
	want := contentOnly + 2*4 + 3
	if total != want {
		t.Errorf("CountConversation() = %d, want %d", total, want)
	}
}

func TestUnknownModelFallsBackToDefaultEncoding(t *testing.T) {
	c := NewCounter()

	if _, err := c.CountText("custom-deployment-name", "some text"); err != nil {
		t.Fatalf("CountText() with unknown model error = %v", err)
	}
}
