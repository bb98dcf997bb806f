package update

import (
	"strings"
	"testing"
	"time"
)

func TestBuildRequest(t *testing.T) {
	now := time.Date(2026, 8, 25, 15, 4, 5, 123456789, time.UTC)
	req := BuildRequest("package main", []string{"fs-import", "main-entry"}, now)

	if !strings.Contains(req.User, "2026-08-25T15:04:05.123456789Z") {
		t.Fatalf("user prompt missing generation token:\n%s", req.User)
	}
	if !strings.Contains(req.User, "fs-import, main-entry") {
		t.Fatal("user prompt missing marker list")
	}
	if !strings.HasSuffix(req.User, "package main") {
		t.Fatal("user prompt must end with the program text")
	}
	if !strings.Contains(req.System, "no code fences") {
		t.Fatal("system prompt missing output constraints")
	}
}

func TestBuildRequest_DistinctTokensPerCall(t *testing.T) {
	a := BuildRequest("p", nil, time.Unix(100, 0))
	b := BuildRequest("p", nil, time.Unix(101, 0))
	if a.User == b.User {
		t.Fatal("requests with different timestamps must differ")
	}
}
