package logfields

import (
	"errors"
	"log/slog"
	"testing"
)

func TestHelpersProduceCanonicalKeys(t *testing.T) {
	cases := []struct {
		attr slog.Attr
		key  string
		want string
	}{
		{RunID("r-1"), KeyRunID, "r-1"},
		{Stage("fetch"), KeyStage, "fetch"},
		{Branch("main"), KeyBranch, "main"},
		{Commit("abc1234"), KeyCommit, "abc1234"},
		{Repository("pool"), KeyRepo, "pool"},
		{URL("https://example.test/r.git"), KeyURL, "https://example.test/r.git"},
		{Path("/tmp/ws"), KeyPath, "/tmp/ws"},
		{Outcome("success"), KeyOutcome, "success"},
	}
	for _, c := range cases {
		if c.attr.Key != c.key {
			t.Fatalf("expected key %s got %s", c.key, c.attr.Key)
		}
		if c.attr.Value.String() != c.want {
			t.Fatalf("key %s expected value %s got %s", c.key, c.want, c.attr.Value.String())
		}
	}
}

func TestErrorAttr(t *testing.T) {
	a := Error(errors.New("boom"))
	if a.Key != KeyError || a.Value.String() != "boom" {
		t.Fatalf("unexpected attr %v", a)
	}
	if Error(nil).Value.String() != "" {
		t.Fatalf("nil error should render empty string")
	}
}
