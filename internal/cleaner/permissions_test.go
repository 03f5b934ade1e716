package cleaner

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/fenilsonani/reclaim/internal/testutil"
)

func TestCanDelete(t *testing.T) {
	f := testutil.NewFixture(t)
	pm := NewPermissionManager()

	writable := f.CreateFile("writable.txt", []byte("test"))
	readonly := f.CreateFile("readonly.txt", []byte("test"))
	if err := os.Chmod(readonly, 0o444); err != nil {
		t.Fatal(err)
	}
	dir := f.CreateDir("writable-dir")

	tests := []struct {
		name    string
		path    string
		want    bool
		wantErr bool
	}{
		{"writable file", writable, true, false},
		{"read-only file in writable dir", readonly, true, false},
		{"directory", dir, true, false},
		{"non-existent file", f.Path("missing.txt"), false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := pm.CanDelete(tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CanDelete() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("CanDelete() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanDeleteReadOnlyParent(t *testing.T) {
	testutil.SkipIfRoot(t)
	f := testutil.NewFixture(t)
	p := f.CreateFile("locked/file.txt", []byte("x"))
	parent := filepath.Dir(p)
	if err := os.Chmod(parent, 0o555); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chmod(parent, 0o755) })

	ok, err := NewPermissionManager().CanDelete(p)
	if err != nil || ok {
		t.Errorf("CanDelete() = %v, %v; want false, nil", ok, err)
	}
}

func TestIsSpecialFile(t *testing.T) {
	f := testutil.NewFixture(t)
	regular := f.CreateFile("regular.txt", []byte("x"))
	link := f.CreateSymlink(regular, "link")
	fifo := f.Path("pipe")
	if err := syscall.Mkfifo(fifo, 0o644); err != nil {
		t.Skipf("mkfifo unavailable: %v", err)
	}

	tests := []struct {
		path string
		want bool
	}{
		{regular, false},
		{link, false},
		{fifo, true},
	}
	for _, tt := range tests {
		got, _ := IsSpecialFile(tt.path)
		if got != tt.want {
			t.Errorf("IsSpecialFile(%s) = %v, want %v", filepath.Base(tt.path), got, tt.want)
		}
	}

	if err := IsSafeToDelete(fifo); err == nil {
		t.Error("IsSafeToDelete should reject a FIFO")
	}
	if err := IsSafeToDelete(regular); err != nil {
		t.Errorf("IsSafeToDelete(regular) = %v", err)
	}
}

func TestAnalyzePermissions(t *testing.T) {
	f := testutil.NewFixture(t)
	a := f.CreateSizedFile("a.bin", 10)
	b := f.CreateSizedFile("b.bin", 20)

	report := NewPermissionManager().AnalyzePermissions([]string{a, b, f.Path("gone")}, nil)
	if len(report.Removable) != 2 {
		t.Errorf("Removable = %v", report.Removable)
	}
	if report.TotalRemovable != 30 {
		t.Errorf("TotalRemovable = %d, want 30", report.TotalRemovable)
	}
	if len(report.Inaccessible) != 0 {
		t.Errorf("Inaccessible = %v", report.Inaccessible)
	}

	sized := NewPermissionManager().AnalyzePermissions([]string{a}, func(string) int64 { return 1000 })
	if sized.TotalRemovable != 1000 {
		t.Errorf("TotalRemovable with size func = %d", sized.TotalRemovable)
	}
}
