package git

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

type ChangedFile struct {
	Path         string
	ChangedLines []int
}

// Regex for chunk header: @@ -oldStart,oldLen +newStart,newLen @@
var chunkHeader = regexp.MustCompile(`^@@ \-\d+(?:,\d+)? \+(\d+)(?:,(\d+))? @@`)

// GetChangedFiles runs git diff against baseRef inside dir and returns the
// changed files with the line numbers touched in the working tree. Paths are
// reported relative to dir, and only files below dir are considered.
func GetChangedFiles(ctx context.Context, dir, baseRef string, paths ...string) ([]ChangedFile, error) {
	if baseRef == "" || strings.HasPrefix(baseRef, "-") {
		return nil, fmt.Errorf("invalid base ref %q", baseRef)
	}
	args := []string{"diff", "-U0", "--relative", baseRef, "--"}
	if len(paths) > 0 {
		args = append(args, paths...)
	} else {
		args = append(args, ".")
	}
	return runDiff(ctx, dir, args)
}

// DiffFile reports the uncommitted changes of a single file relative to HEAD.
// It returns nil when the file is unchanged.
func DiffFile(ctx context.Context, path string) (*ChangedFile, error) {
	dir, name := filepath.Split(path)
	changes, err := runDiff(ctx, dir, []string{"diff", "-U0", "HEAD", "--", name})
	if err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		return nil, nil
	}
	return &changes[0], nil
}

func runDiff(ctx context.Context, dir string, args []string) ([]ChangedFile, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git diff failed: %w", err)
	}
	return parseDiff(output)
}

func parseDiff(output []byte) ([]ChangedFile, error) {
	scanner := bufio.NewScanner(bytes.NewReader(output))
	var changes []ChangedFile
	var currentFile *ChangedFile

	for scanner.Scan() {
		line := scanner.Text()

		if strings.HasPrefix(line, "diff --git") {
			parts := strings.Fields(line)
			if len(parts) >= 4 {
				// a/path/to/file b/path/to/file
				path := strings.TrimPrefix(parts[3], "b/")
				if currentFile != nil {
					changes = append(changes, *currentFile)
				}
				currentFile = &ChangedFile{Path: path, ChangedLines: []int{}}
			}
			continue
		}

		if currentFile == nil || !strings.HasPrefix(line, "@@") {
			continue
		}

		matches := chunkHeader.FindStringSubmatch(line)
		if len(matches) < 2 {
			continue
		}
		startLine, _ := strconv.Atoi(matches[1])
		count := 1 // Default length is 1 if omitted
		if len(matches) > 2 && matches[2] != "" {
			count, _ = strconv.Atoi(matches[2])
		}
		// count == 0 is a pure deletion; nothing exists at startLine in the new file.
		for i := 0; i < count; i++ {
			currentFile.ChangedLines = append(currentFile.ChangedLines, startLine+i)
		}
	}

	if currentFile != nil {
		changes = append(changes, *currentFile)
	}

	return changes, scanner.Err()
}
