package logging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func useTempCrashDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	crashLogDirOverride = dir
	t.Cleanup(func() { crashLogDirOverride = "" })
	return dir
}

func TestCrashLogDir(t *testing.T) {
	dir := CrashLogDir()
	if dir == "" {
		t.Error("CrashLogDir returned empty string")
	}
}

func TestWriteAndReadCrashLog(t *testing.T) {
	dir := useTempCrashDir(t)

	path, err := WriteCrashLog("test panic value", []byte("test stack trace"))
	if err != nil {
		t.Fatalf("WriteCrashLog failed: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("crash log written to %s, want directory %s", path, dir)
	}

	content, err := ReadCrashLog(filepath.Base(path))
	if err != nil {
		t.Fatalf("ReadCrashLog failed: %v", err)
	}
	for _, want := range []string{"NFC Wedge Crash Report", "test panic value", "test stack trace"} {
		if !strings.Contains(content, want) {
			t.Errorf("crash log missing %q", want)
		}
	}
}

func TestReadCrashLogRejectsPaths(t *testing.T) {
	useTempCrashDir(t)

	if _, err := ReadCrashLog("../secrets.log"); err == nil {
		t.Error("expected error for path traversal")
	}
}

func TestGetCrashLogs(t *testing.T) {
	dir := useTempCrashDir(t)

	for i := 0; i < 3; i++ {
		name := fmt.Sprintf("crash_2024-01-0%d_00-00-00.log", i+1)
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "other.log"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	logs, err := GetCrashLogs(2)
	if err != nil {
		t.Fatalf("GetCrashLogs failed: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected 2 logs, got %d", len(logs))
	}
	if logs[0].Name != "crash_2024-01-03_00-00-00.log" {
		t.Errorf("expected newest first, got %s", logs[0].Name)
	}
}

func TestGetCrashLogsMissingDir(t *testing.T) {
	crashLogDirOverride = filepath.Join(t.TempDir(), "does-not-exist")
	t.Cleanup(func() { crashLogDirOverride = "" })

	logs, err := GetCrashLogs(10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(logs) != 0 {
		t.Errorf("expected no logs, got %d", len(logs))
	}
}

func TestCleanupOldCrashLogs(t *testing.T) {
	tmpDir := t.TempDir()

	numFiles := MaxCrashLogs + 5
	for i := 0; i < numFiles; i++ {
		timestamp := time.Now().Add(time.Duration(-numFiles+i) * time.Hour).Format("2006-01-02_15-04-05")
		path := filepath.Join(tmpDir, "crash_"+timestamp+".log")
		if err := os.WriteFile(path, []byte("test"), 0644); err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}
	}

	nonCrashFile := filepath.Join(tmpDir, "other.log")
	if err := os.WriteFile(nonCrashFile, []byte("test"), 0644); err != nil {
		t.Fatalf("Failed to create non-crash file: %v", err)
	}

	cleanupCrashLogs(tmpDir, time.Now())

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		t.Fatalf("Failed to read temp dir: %v", err)
	}

	crashLogCount := 0
	hasNonCrashFile := false
	for _, entry := range entries {
		if entry.Name() == "other.log" {
			hasNonCrashFile = true
		} else if filepath.Ext(entry.Name()) == ".log" {
			crashLogCount++
		}
	}

	if crashLogCount != MaxCrashLogs {
		t.Errorf("Expected %d crash logs, got %d", MaxCrashLogs, crashLogCount)
	}
	if !hasNonCrashFile {
		t.Error("Non-crash file was incorrectly deleted")
	}
}

func TestCleanupOldCrashLogsByAge(t *testing.T) {
	tmpDir := t.TempDir()

	oldFile := filepath.Join(tmpDir, "crash_2020-01-01_00-00-00.log")
	if err := os.WriteFile(oldFile, []byte("old"), 0644); err != nil {
		t.Fatalf("Failed to create old file: %v", err)
	}
	oldTime := time.Now().Add(-60 * 24 * time.Hour)
	if err := os.Chtimes(oldFile, oldTime, oldTime); err != nil {
		t.Fatalf("Failed to set mod time: %v", err)
	}

	recentFile := filepath.Join(tmpDir, "crash_2099-01-01_00-00-00.log")
	if err := os.WriteFile(recentFile, []byte("recent"), 0644); err != nil {
		t.Fatalf("Failed to create recent file: %v", err)
	}

	cleanupCrashLogs(tmpDir, time.Now())

	if _, err := os.Stat(oldFile); !os.IsNotExist(err) {
		t.Error("Old crash log was not deleted")
	}
	if _, err := os.Stat(recentFile); os.IsNotExist(err) {
		t.Error("Recent crash log was incorrectly deleted")
	}
}

func TestRecoverAndLogFunc(t *testing.T) {
	useTempCrashDir(t)

	var gotValue interface{}
	var gotFile string

	func() {
		defer RecoverAndLogFunc("test goroutine", false, func(v interface{}, crashFile string) {
			gotValue = v
			gotFile = crashFile
		})
		panic(errors.New("boom"))
	}()

	if err, ok := gotValue.(error); !ok || err.Error() != "boom" {
		t.Errorf("onPanic got %v, want boom", gotValue)
	}
	if gotFile == "" {
		t.Error("expected crash file path")
	}
}
