package cmd

import (
	"bytes"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionCommandStructure(t *testing.T) {
	assert.NotNil(t, versionCmd)
	assert.Equal(t, "version", versionCmd.Use)
	assert.NotEmpty(t, versionCmd.Short)
	assert.NotEmpty(t, versionCmd.Long)
	assert.NotNil(t, versionCmd.Run)
}

func TestRunVersion(t *testing.T) {
	// Save original values and restore after test
	originalVersion := Version
	originalCommit := Commit
	originalDate := Date
	defer func() {
		Version = originalVersion
		Commit = originalCommit
		Date = originalDate
	}()

	tests := []struct {
		name         string
		version      string
		commit       string
		date         string
		wantInOutput []string
	}{
		{
			name:    "dev version",
			version: "0.0.1-dev",
			commit:  "unknown",
			date:    "unknown",
			wantInOutput: []string{
				"gobulk version 0.0.1-dev",
				"Commit: unknown",
				"Built: unknown",
				"Go version:",
				"OS/Arch:",
			},
		},
		{
			name:    "release version",
			version: "1.0.0",
			commit:  "abc123def456",
			date:    "2026-08-25",
			wantInOutput: []string{
				"gobulk version 1.0.0",
				"Commit: abc123def456",
				"Built: 2026-08-25",
				"Go version:",
				"OS/Arch:",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Version = tt.version
			Commit = tt.commit
			Date = tt.date

			// Capture output
			var buf bytes.Buffer
			versionCmd.SetOut(&buf)

			runVersion(versionCmd, []string{})

			output := buf.String()
			for _, want := range tt.wantInOutput {
				assert.Contains(t, output, want)
			}
		})
	}
}

func TestVersionOutputFormat(t *testing.T) {
	// Save original values and restore after test
	originalVersion := Version
	originalCommit := Commit
	originalDate := Date
	defer func() {
		Version = originalVersion
		Commit = originalCommit
		Date = originalDate
	}()

	Version = "1.2.3"
	Commit = "abc123"
	Date = "2026-01-02"

	var buf bytes.Buffer
	versionCmd.SetOut(&buf)

	runVersion(versionCmd, []string{})

	// Verify each line format
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	assert.GreaterOrEqual(t, len(lines), 5, "Expected at least 5 lines in version output")

	// Check version line
	assert.Contains(t, string(lines[0]), "gobulk version 1.2.3")

	// Check commit line
	assert.Contains(t, string(lines[1]), "Commit: abc123")

	// Check build date line
	assert.Contains(t, string(lines[2]), "Built: 2026-01-02")

	// Check Go version line
	assert.Contains(t, string(lines[3]), "Go version:")
	assert.Contains(t, string(lines[3]), runtime.Version())

	// Check OS/Arch line
	assert.Contains(t, string(lines[4]), "OS/Arch:")
	assert.Contains(t, string(lines[4]), runtime.GOOS)
	assert.Contains(t, string(lines[4]), runtime.GOARCH)
}

func TestVersionIsAddedToRoot(t *testing.T) {
	// Check that version command is registered
	found := false
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == "version" {
			found = true
			break
		}
	}
	assert.True(t, found, "version command should be added to root command")
}
