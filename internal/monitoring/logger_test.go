package monitoring

import (
	"fmt"
	"strings"
	"testing"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var got []string
	SetLogger(func(format string, v ...interface{}) {
		got = append(got, fmt.Sprintf(format, v...))
	})
	Logf("rescaling trial %d", 3)

	if len(got) != 1 || !strings.Contains(got[0], "trial 3") {
		t.Errorf("captured %v, want one formatted message", got)
	}

	// nil installs a no-op that must not panic or call back.
	got = nil
	SetLogger(nil)
	Logf("muted")
	if len(got) != 0 {
		t.Errorf("no-op logger produced %v", got)
	}
}

func TestLogfDefault(t *testing.T) {
	if Logf == nil {
		t.Fatal("Logf should not be nil by default")
	}
	Logf("default logger: %s", "ok")
}
