// Package environment answers whether the process may keep state on local
// disk between runs.
package environment

import (
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/shirou/gopsutil/v4/disk"
)

// Probe reports whether persistent local storage is available.
type Probe interface {
	PersistentStorage() bool
}

// Static is a Probe with a fixed answer.
type Static bool

func (s Static) PersistentStorage() bool {
	return bool(s)
}

// EphemeralEnvVar forces the no-storage mode when set to a true value.
const EphemeralEnvVar = "MEALASSIST_EPHEMERAL"

// serverless platforms whose filesystems are read-only or wiped between
// invocations.
var ephemeralPlatformVars = []string{
	"VERCEL",
	"AWS_LAMBDA_FUNCTION_NAME",
	"NETLIFY",
	"FUNCTION_TARGET",
}

// Detector probes the real execution environment once and caches the answer.
type Detector struct {
	StateDir   string
	Getenv     func(string) string
	Partitions func() ([]disk.PartitionStat, error)

	once   sync.Once
	result bool
}

func NewDetector(stateDir string) *Detector {
	return &Detector{
		StateDir: stateDir,
		Getenv:   os.Getenv,
		Partitions: func() ([]disk.PartitionStat, error) {
			return disk.Partitions(false)
		},
	}
}

func (d *Detector) PersistentStorage() bool {
	d.once.Do(func() {
		d.result = d.detect()
	})
	return d.result
}

func (d *Detector) detect() bool {
	forced, err := strconv.ParseBool(d.Getenv(EphemeralEnvVar))
	if err == nil {
		return !forced
	}
	for _, name := range ephemeralPlatformVars {
		if d.Getenv(name) != "" {
			return false
		}
	}
	return !d.readOnlyMount()
}

// readOnlyMount finds the longest mountpoint containing the state directory
// and checks whether it is mounted read-only. When partitions cannot be listed
// storage is assumed to be writable.
func (d *Detector) readOnlyMount() bool {
	if d.Partitions == nil {
		return false
	}
	partitions, err := d.Partitions()
	if err != nil {
		return false
	}
	dir, err := filepath.Abs(d.StateDir)
	if err != nil {
		return false
	}

	var best *disk.PartitionStat
	for i, p := range partitions {
		if !containsPath(p.Mountpoint, dir) {
			continue
		}
		if best == nil || len(p.Mountpoint) > len(best.Mountpoint) {
			best = &partitions[i]
		}
	}
	if best == nil {
		return false
	}
	return slices.Contains(best.Opts, "ro")
}

func containsPath(mountpoint, dir string) bool {
	if mountpoint == "/" {
		return true
	}
	return dir == mountpoint || strings.HasPrefix(dir, mountpoint+string(filepath.Separator))
}
