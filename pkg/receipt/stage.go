package receipt

import (
	"fmt"
	"os"
	"path/filepath"
)

const stageSuffix = ".stage"

// WriteStaged writes data to path+".stage" and then atomically renames it
// onto path, so that a reader never observes a partially written file —
// the pattern the teacher uses for every artifact write (write to a temp
// path, then os.Rename onto the final path).
func WriteStaged(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("receipt: ensure dir: %w", err)
	}
	stagePath := path + stageSuffix
	if err := os.WriteFile(stagePath, data, perm); err != nil {
		return fmt.Errorf("receipt: write stage: %w", err)
	}
	if err := os.Rename(stagePath, path); err != nil {
		return fmt.Errorf("receipt: finalize: %w", err)
	}
	return nil
}

// OrphanStageFiles walks root and returns the relative paths of any
// leftover ".stage" files — output from a run that crashed between the
// write and the rename. Their presence is reported as
// VERIFY360_ORPHAN_OUTPUT rather than silently adopted or deleted.
func OrphanStageFiles(root string) ([]string, error) {
	var orphans []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if filepath.Ext(path) == stageSuffix {
			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				rel = path
			}
			orphans = append(orphans, rel)
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return orphans, nil
}

const OrphanOutputReason = "VERIFY360_ORPHAN_OUTPUT"
