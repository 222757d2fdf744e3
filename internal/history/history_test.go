package history

import (
	"testing"

	"github.com/chatgate-dev/chatgate/internal/domain"
)

func TestBuildMapsRoles(t *testing.T) {
	conv := domain.Conversation{
		{Role: "system", Content: "You are helpful."},
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
		{Role: "moderator", Content: "carry on"},
	}

	got := Build(conv)
	if len(got) != 4 {
		t.Fatalf("Build() returned %d messages, want 4", len(got))
	}

	wantRoles := []string{"system", "user", "assistant", "user"}
	for i, want := range wantRoles {
		if got[i].Role != want {
			t.Errorf("message[%d].Role = %q, want %q", i, got[i].Role, want)
		}
		if got[i].Content != conv[i].Content {
			t.Errorf("message[%d].Content = %q, want %q", i, got[i].Content, conv[i].Content)
		}
	}
}

func TestBuildEmptyConversation(t *testing.T) {
	if got := Build(nil); len(got) != 0 {
		t.Errorf("Build(nil) = %v, want empty", got)
	}
}
