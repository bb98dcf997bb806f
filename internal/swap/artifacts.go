package swap

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// Artifacts lists the run leftovers living next to target: backup files and
// .failed forensic markers. Paths are returned sorted by name.
func Artifacts(target string) (backups, failed []string, err error) {
	dir := filepath.Dir(target)
	base := filepath.Base(target)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if ok, _ := doublestar.Match(base+".backup.*", name); ok {
			backups = append(backups, filepath.Join(dir, name))
			continue
		}
		if ok, _ := doublestar.Match(base+".tmp.*.failed", name); ok {
			failed = append(failed, filepath.Join(dir, name))
		}
	}
	sort.Strings(backups)
	sort.Strings(failed)
	return backups, failed, nil
}

// Prune removes all .failed markers and every backup beyond the newest keep.
// With dryRun set it only reports what would be removed.
func Prune(target string, keep int, dryRun bool) ([]string, error) {
	backups, failed, err := Artifacts(target)
	if err != nil {
		return nil, err
	}
	if keep < 0 {
		keep = 0
	}

	// Newest first by mod time; ties fall back to the name sort from Artifacts.
	sort.SliceStable(backups, func(i, j int) bool {
		si, ierr := os.Stat(backups[i])
		sj, jerr := os.Stat(backups[j])
		if ierr != nil || jerr != nil {
			return false
		}
		return si.ModTime().After(sj.ModTime())
	})

	var victims []string
	if len(backups) > keep {
		victims = append(victims, backups[keep:]...)
	}
	victims = append(victims, failed...)

	if dryRun {
		return victims, nil
	}
	for _, path := range victims {
		if err := os.Remove(path); err != nil {
			return victims, err
		}
	}
	return victims, nil
}
