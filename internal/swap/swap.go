// Package swap performs crash-safe replacement of a program file.
//
// The sequence is write-temp, validate, backup, rename-into-place. The target
// path is never left missing when it existed before the call, and never holds
// content that did not pass integrity validation. Only the temp file may ever
// be partially written.
package swap

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/zeebo/blake3"
	"go.uber.org/zap"

	"github.com/ouro-sh/ouro/internal/integrity"
	"github.com/ouro-sh/ouro/internal/log"
)

// IntegrityError reports a candidate missing required structural markers.
type IntegrityError struct {
	Missing []string
}

func (e *IntegrityError) Error() string {
	return "candidate rejected: missing markers: " + strings.Join(e.Missing, ", ")
}

type Replacer struct {
	checker *integrity.Checker
	log     *log.Logger

	// backupSuffix is fixed at construction so every backup reference within
	// one run resolves to the same file.
	backupSuffix string

	// rename is replaced in tests to simulate commit failures.
	rename func(oldpath, newpath string) error
}

func NewReplacer(checker *integrity.Checker, logger *log.Logger) *Replacer {
	if logger == nil {
		logger = log.Nop()
	}
	return &Replacer{
		checker:      checker,
		log:          logger,
		backupSuffix: ".backup." + strconv.FormatInt(time.Now().Unix(), 10),
		rename:       os.Rename,
	}
}

// BackupPath returns the run-scoped backup path for target.
func (r *Replacer) BackupPath(target string) string {
	return target + r.backupSuffix
}

// Replace writes content to target atomically. On any failure after the temp
// write, the temp file is renamed to a .failed marker (best effort) and, if a
// backup was already taken, the backup is restored to target. The returned
// backup path is empty when target did not previously exist.
func (r *Replacer) Replace(content []byte, target string) (string, error) {
	tmp := target + ".tmp." + ulid.Make().String()

	mode := os.FileMode(0o644)
	if st, err := os.Stat(target); err == nil {
		mode = st.Mode().Perm()
	}
	if err := os.WriteFile(tmp, content, mode); err != nil {
		return "", fmt.Errorf("write temp file: %w", err)
	}

	if missing := r.checker.Missing(string(content)); len(missing) > 0 {
		return "", r.fail(tmp, "", target, &IntegrityError{Missing: missing})
	}

	backup := ""
	if _, err := os.Stat(target); err == nil {
		backup = r.BackupPath(target)
		if err := r.rename(target, backup); err != nil {
			return "", r.fail(tmp, "", target, fmt.Errorf("backup %s: %w", target, err))
		}
	}

	if err := r.rename(tmp, target); err != nil {
		return "", r.fail(tmp, backup, target, fmt.Errorf("commit %s: %w", target, err))
	}

	r.log.Info("program file replaced",
		zap.String("target", target),
		zap.String("backup", backup),
		zap.String("digest", Digest(content)))
	return backup, nil
}

// fail retains the temp file as a forensic artifact and restores the backup.
// The .failed rename is allowed to fail without escalation; a failed restore
// is not.
func (r *Replacer) fail(tmp, backup, target string, cause error) error {
	if _, err := os.Stat(tmp); err == nil {
		_ = r.rename(tmp, tmp+".failed")
	}
	if backup != "" {
		if _, err := os.Stat(backup); err == nil {
			if rerr := r.rename(backup, target); rerr != nil {
				return fmt.Errorf("restore backup after failed replace: %v (cause: %w)", rerr, cause)
			}
		}
	}
	return cause
}

// Digest returns the hex-encoded blake3 digest of content.
func Digest(content []byte) string {
	sum := blake3.Sum256(content)
	return hex.EncodeToString(sum[:])
}
