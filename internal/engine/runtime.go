package engine

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// versionTimeout bounds one "java -version" check.
const versionTimeout = 10 * time.Second

// runtimeCandidates are tried after PATH and JAVA_HOME.
var runtimeCandidates = []string{
	"/usr/bin/java",
	"/opt/java/openjdk/bin/java",
	"/usr/lib/jvm/default-java/bin/java",
	"/Library/Java/JavaVirtualMachines/Current/Contents/Home/bin/java",
}

// RuntimeFinder locates a usable Java executable.
type RuntimeFinder func(ctx context.Context) (string, error)

// FindJava returns a java executable that runs "-version" successfully.
// explicit, when set, is the only candidate.
func FindJava(ctx context.Context, explicit string) (string, error) {
	var candidates []string
	if explicit != "" {
		candidates = []string{explicit}
	} else {
		if p, err := exec.LookPath("java"); err == nil {
			candidates = append(candidates, p)
		}
		if home := os.Getenv("JAVA_HOME"); home != "" {
			candidates = append(candidates, filepath.Join(home, "bin", "java"))
		}
		candidates = append(candidates, runtimeCandidates...)
	}

	seen := make(map[string]bool)
	for _, c := range candidates {
		if seen[c] {
			continue
		}
		seen[c] = true
		if verifyJava(ctx, c) == nil {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w (tried %d candidates)", ErrRuntimeNotFound, len(seen))
}

func verifyJava(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()
	return exec.CommandContext(ctx, path, "-version").Run()
}
