package identity_test

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/petitstrawberry/prism/internal/identity"
	"github.com/petitstrawberry/prism/internal/models"
)

// fakeProc builds a minimal proc tree: pid -> (comm, ppid).
func fakeProc(t *testing.T, procs map[int32]struct {
	comm string
	ppid int32
}) string {
	t.Helper()
	root := t.TempDir()
	for pid, p := range procs {
		dir := filepath.Join(root, strconv.Itoa(int(pid)))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "comm"), []byte(p.comm+"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		stat := strconv.Itoa(int(pid)) + " (" + p.comm + ") S " + strconv.Itoa(int(p.ppid)) + " 0 0 0"
		if err := os.WriteFile(filepath.Join(dir, "stat"), []byte(stat), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestLookupAndParent(t *testing.T) {
	root := fakeProc(t, map[int32]struct {
		comm string
		ppid int32
	}{
		100: {"musicapp", 1},
		101: {"audio helper (x)", 100},
	})
	r := identity.NewResolverAt(root)

	id, ok := r.Lookup(101)
	if !ok || id.Name != "audio helper (x)" {
		t.Fatalf("Lookup(101) = %+v, %v", id, ok)
	}
	if ppid := r.ParentPID(101); ppid != 100 {
		t.Errorf("ParentPID(101) = %d, want 100", ppid)
	}
	if _, ok := r.Lookup(999); ok {
		t.Error("Lookup of a missing pid should fail")
	}
}

func TestResponsiblePID(t *testing.T) {
	root := fakeProc(t, map[int32]struct {
		comm string
		ppid int32
	}{
		100: {"musicapp", 1},
		101: {"helper", 100},
		102: {"renderer", 101},
	})
	r := identity.NewResolverAt(root)

	if got := r.ResponsiblePID(102); got != 100 {
		t.Errorf("ResponsiblePID(102) = %d, want 100", got)
	}
	// Already the top: responsible is itself.
	if got := r.ResponsiblePID(100); got != 100 {
		t.Errorf("ResponsiblePID(100) = %d, want 100", got)
	}
}

func TestResponsiblePIDLoopGuard(t *testing.T) {
	// 200 <-> 201 form a bogus parent loop; the walk must terminate.
	root := fakeProc(t, map[int32]struct {
		comm string
		ppid int32
	}{
		200: {"a", 201},
		201: {"b", 200},
	})
	r := identity.NewResolverAt(root)

	if got := r.ResponsiblePID(200); got != 201 {
		t.Errorf("ResponsiblePID(200) = %d, want 201 (last before loop)", got)
	}
}

func TestEnrich(t *testing.T) {
	root := fakeProc(t, map[int32]struct {
		comm string
		ppid int32
	}{
		100: {"musicapp", 1},
		101: {"helper", 100},
	})
	r := identity.NewResolverAt(root)

	clients := []models.ClientEntry{
		{PID: 101, ClientID: 7, ChannelOffset: 4},
		{PID: 555, ClientID: 9, ChannelOffset: 6}, // unresolvable
	}
	r.Enrich(clients)

	if clients[0].ProcessName != "helper" || clients[0].ResponsiblePID != 100 || clients[0].ResponsibleName != "musicapp" {
		t.Errorf("enriched entry = %+v", clients[0])
	}
	if clients[1].ProcessName != "" || clients[1].ResponsiblePID != 0 {
		t.Errorf("unresolvable entry should stay bare, got %+v", clients[1])
	}
}
