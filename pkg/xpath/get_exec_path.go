package xpath

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// GetExecPath resolves an executable the way a shell would, additionally
// accepting paths relative to the working directory.
func GetExecPath(execPathUnprocessed string) (string, error) {
	execPath, err := Expand(execPathUnprocessed)
	if err != nil {
		return "", err
	}
	resolved, err := exec.LookPath(execPath)
	switch {
	case err == nil:
		return resolved, nil
	case errors.Is(err, exec.ErrDot):
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("unable to get current working directory: %w", err)
		}
		return exec.LookPath(filepath.Join(wd, execPath))
	default:
		return "", err
	}
}
