package integrity_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/lockstep-dev/lockstep/contracts"
	"github.com/lockstep-dev/lockstep/internal/integrity"
)

func open(t *testing.T) *integrity.Checker {
	t.Helper()
	c, err := integrity.Open(filepath.Join(t.TempDir(), "integrity.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCheckMissingWitness(t *testing.T) {
	c := open(t)
	if c.FileExists() {
		t.Fatal("FileExists() = true before any Save")
	}

	res, err := c.Check(context.Background(), []string{"a"}, nil, nil)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !res.IntegrityFileMissing {
		t.Fatal("IntegrityFileMissing = false, want true with no prior witness")
	}
}

func TestSaveThenCheckMatches(t *testing.T) {
	c := open(t)
	lockImage := map[string]contracts.LockedReference{"a@^1.0.0": {Resolved: "a-1.0.0.tgz", Version: "1.0.0"}}

	if err := c.Save(context.Background(), []string{"a@^1.0.0"}, lockImage, nil, []string{"npm"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !c.FileExists() {
		t.Fatal("FileExists() = false after Save")
	}

	res, err := c.Check(context.Background(), []string{"a@^1.0.0"}, lockImage, nil)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !res.IntegrityMatches {
		t.Fatalf("Check() = %+v, want a match against the just-saved witness", res)
	}
}

func TestCheckDetectsMissingPattern(t *testing.T) {
	c := open(t)
	lockImage := map[string]contracts.LockedReference{"a@^1.0.0": {Resolved: "a-1.0.0.tgz"}}
	if err := c.Save(context.Background(), []string{"a@^1.0.0"}, lockImage, nil, nil); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	res, err := c.Check(context.Background(), []string{"a@^1.0.0", "b@^1.0.0"}, lockImage, nil)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if len(res.MissingPatterns) != 1 || res.MissingPatterns[0] != "b@^1.0.0" {
		t.Fatalf("MissingPatterns = %v, want [b@^1.0.0]", res.MissingPatterns)
	}
}

func TestRemoveIntegrityFile(t *testing.T) {
	c := open(t)
	if err := c.Save(context.Background(), []string{"a"}, map[string]contracts.LockedReference{"a": {}}, nil, nil); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := c.RemoveIntegrityFile(context.Background()); err != nil {
		t.Fatalf("RemoveIntegrityFile() error = %v", err)
	}
	if c.FileExists() {
		t.Fatal("FileExists() = true after RemoveIntegrityFile")
	}
}
